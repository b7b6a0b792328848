package transcode

import (
	"fmt"
	"io"

	"github.com/go-audio/aiff"
)

// decodeAIFF reads big-endian signed PCM AIFF through go-audio
func decodeAIFF(r io.ReadSeeker) (*AudioData, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a FORM/AIFF file", ErrInvalidAudio)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read AIFF samples: %w", err)
	}
	if buf.Format == nil {
		return nil, fmt.Errorf("%w: missing AIFF COMM chunk", ErrInvalidAudio)
	}

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit AIFF", ErrUnsupportedFormat, bitDepth)
	}

	scale := float64(int64(1) << (bitDepth - 1))
	pcm := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		pcm[i] = float64(v) / scale
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Format:     FormatAIFF,
	}, nil
}
