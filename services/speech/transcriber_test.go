package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"voicebook/models"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func wav(t *testing.T, rate uint32, channels uint16, samples int) []byte {
	t.Helper()
	dataSize := uint32(samples) * uint32(channels) * 2
	h := waveHeader{
		FileSize:      36 + dataSize,
		FmtSize:       16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    rate,
		ByteRate:      rate * uint32(channels) * 2,
		BlockAlign:    channels * 2,
		BitsPerSample: 16,
		DataSize:      dataSize,
	}
	copy(h.RiffTag[:], "RIFF")
	copy(h.WaveTag[:], "WAVE")
	copy(h.FmtTag[:], "fmt ")
	copy(h.DataTag[:], "data")

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, h))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

func TestTranscribeBuildsBilingualRequest(t *testing.T) {
	var got *speechpb.RecognizeRequest
	tr := &Transcriber{
		Logger: zap.NewNop(),
		Recognize: func(_ context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			got = req
			return &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "I would like Thursday"}}, LanguageCode: "en-us"},
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "please"}}, LanguageCode: "en-us"},
			}}, nil
		},
	}

	u, err := tr.Transcribe(context.Background(), wav(t, 16000, 1, 1600), models.LanguageFrench)
	require.NoError(t, err)
	assert.Equal(t, "I would like Thursday please", u.Text)
	assert.Equal(t, models.LanguageEnglish, u.LanguageHint)

	require.NotNil(t, got)
	assert.Equal(t, "fr-FR", got.Config.LanguageCode)
	assert.Equal(t, []string{"en-US"}, got.Config.AlternativeLanguageCodes)
	assert.Equal(t, int32(16000), got.Config.SampleRateHertz)
	assert.Len(t, got.Audio.GetContent(), 3200)
}

func TestTranscribeErrors(t *testing.T) {
	silent := &Transcriber{Logger: zap.NewNop(), Recognize: func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return &speechpb.RecognizeResponse{}, nil
	}}
	_, err := silent.Transcribe(context.Background(), wav(t, 16000, 1, 100), models.LanguageFrench)
	assert.ErrorIs(t, err, ErrNoSpeech)

	_, err = silent.Transcribe(context.Background(), []byte("not audio"), models.LanguageFrench)
	assert.ErrorIs(t, err, ErrInvalidAudio)

	_, err = silent.Transcribe(context.Background(), wav(t, 16000, 1, 16000*61), models.LanguageFrench)
	assert.ErrorIs(t, err, ErrInvalidAudio)

	down := &Transcriber{Logger: zap.NewNop(), Recognize: func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return nil, errors.New("unavailable")
	}}
	_, err = down.Transcribe(context.Background(), wav(t, 8000, 1, 100), models.LanguageEnglish)
	assert.ErrorIs(t, err, ErrRecognizerUnavailable)
}
