package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voicebook/models"
	"voicebook/services/dialogue"
	"voicebook/utils"

	speechapi "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

var (
	ErrInvalidAudio = errors.New("invalid audio")
	ErrNoSpeech     = errors.New("no speech recognized")
	// ErrRecognizerUnavailable is the speech-side CollaboratorUnavailable.
	ErrRecognizerUnavailable = errors.New("speech recognizer unavailable")
)

var languageCodes = map[models.Language]string{
	models.LanguageFrench:  "fr-FR",
	models.LanguageEnglish: "en-US",
}

// RecognizeFunc performs one synchronous recognition.
type RecognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// Transcriber turns one uploaded WAV turn into an utterance with a language hint.
type Transcriber struct {
	Recognize RecognizeFunc
	Logger    *zap.Logger
}

// NewGoogleTranscriber dials Cloud Speech-to-Text. The returned close func
// releases the client.
func NewGoogleTranscriber(ctx context.Context, credentialsFile string) (*Transcriber, func() error, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := speechapi.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize speech client: %w", err)
	}
	t := &Transcriber{
		Recognize: func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return client.Recognize(ctx, req)
		},
	}
	return t, client.Close, nil
}

// Transcribe recognizes audio in the call's current language, letting the
// recognizer pick the other supported language when it fits better.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, current models.Language) (dialogue.Utterance, error) {
	header, err := parseWaveHeader(audio)
	if err != nil {
		return dialogue.Utterance{}, err
	}

	primary, ok := languageCodes[current]
	if !ok {
		primary = languageCodes[models.LanguageFrench]
	}
	var alternatives []string
	for lang, code := range languageCodes {
		if lang != current && code != primary {
			alternatives = append(alternatives, code)
		}
	}

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(header.SampleRate),
			AudioChannelCount:          int32(header.NumChannels),
			LanguageCode:               primary,
			AlternativeLanguageCodes:   alternatives,
			EnableAutomaticPunctuation: true,
			Model:                      "phone_call",
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio[wavHeaderSize:]},
		},
	}

	resp, err := t.Recognize(ctx, req)
	if err != nil {
		t.logger().Warn("speech recognition failed", zap.Error(err))
		return dialogue.Utterance{}, fmt.Errorf("%w: %v", ErrRecognizerUnavailable, err)
	}

	var transcript strings.Builder
	var hint models.Language
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		transcript.WriteString(alts[0].GetTranscript())
		transcript.WriteString(" ")
		if hint == "" {
			hint, _ = models.ParseLanguage(result.GetLanguageCode())
		}
	}
	text := strings.TrimSpace(transcript.String())
	if text == "" {
		return dialogue.Utterance{}, ErrNoSpeech
	}
	return dialogue.Utterance{Text: text, LanguageHint: hint}, nil
}

func (t *Transcriber) logger() *zap.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return utils.GetLogger()
}
