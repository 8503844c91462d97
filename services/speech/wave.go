package speech

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	MaxDuration = 60 * time.Second
	MaxFileSize = 5 * 1024 * 1024
	wavHeaderSize = 44
)

type waveHeader struct {
	RiffTag       [4]byte
	FileSize      uint32
	WaveTag       [4]byte
	FmtTag        [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataTag       [4]byte
	DataSize      uint32
}

// Duration of the PCM payload.
func (h waveHeader) Duration() time.Duration {
	if h.ByteRate == 0 {
		return 0
	}
	return time.Duration(float64(h.DataSize) / float64(h.ByteRate) * float64(time.Second))
}

// parseWaveHeader accepts canonical 16-bit PCM WAV files only.
func parseWaveHeader(data []byte) (waveHeader, error) {
	var h waveHeader
	if len(data) < wavHeaderSize {
		return h, fmt.Errorf("%w: %d bytes is shorter than a WAV header", ErrInvalidAudio, len(data))
	}
	if err := binary.Read(bytes.NewReader(data[:wavHeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	switch {
	case string(h.RiffTag[:]) != "RIFF" || string(h.WaveTag[:]) != "WAVE":
		return h, fmt.Errorf("%w: not a RIFF/WAVE file", ErrInvalidAudio)
	case h.AudioFormat != 1 || h.BitsPerSample != 16:
		return h, fmt.Errorf("%w: need 16-bit PCM, got format %d with %d bits", ErrInvalidAudio, h.AudioFormat, h.BitsPerSample)
	case h.NumChannels == 0 || h.NumChannels > 2:
		return h, fmt.Errorf("%w: %d channels", ErrInvalidAudio, h.NumChannels)
	case h.SampleRate < 8000 || h.SampleRate > 48000:
		return h, fmt.Errorf("%w: sample rate %d", ErrInvalidAudio, h.SampleRate)
	}
	if h.Duration() > MaxDuration {
		return h, fmt.Errorf("%w: %s is longer than %s", ErrInvalidAudio, h.Duration().Round(time.Second), MaxDuration)
	}
	return h, nil
}
