package transcode

import (
	"encoding/binary"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// go-mp3 always emits 16-bit little-endian stereo
const mp3Channels = 2

func decodeMP3(r io.Reader) (*AudioData, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAudio, err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to read MP3 samples: %w", err)
	}

	pcm := make([]float64, len(raw)/2)
	for i := range pcm {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		pcm[i] = float64(v) / 32768.0
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: dec.SampleRate(),
		Channels:   mp3Channels,
		Format:     FormatMP3,
	}, nil
}
