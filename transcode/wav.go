package transcode

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

// wavPCMFormat is the WAVE_FORMAT_PCM tag
const wavPCMFormat = 1

// decodeWAV reads integer PCM WAV through go-audio and scales samples by 2^(bits-1)
func decodeWAV(r io.ReadSeeker) (*AudioData, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrInvalidAudio)
	}

	if dec.WavAudioFormat != wavPCMFormat {
		return nil, fmt.Errorf("%w: WAV format tag %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, bitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV samples: %w", err)
	}

	pcm := make([]float64, len(buf.Data))
	if bitDepth == 8 {
		// 8-bit WAV is unsigned with a 128 offset
		for i, v := range buf.Data {
			pcm[i] = float64(v-128) / 128.0
		}
	} else {
		scale := float64(int64(1) << (bitDepth - 1))
		for i, v := range buf.Data {
			pcm[i] = float64(v) / scale
		}
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Format:     FormatWAV,
	}, nil
}
