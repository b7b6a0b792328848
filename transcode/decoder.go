package transcode

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-dcase/logging"
)

// Container formats understood by the decoder
const (
	FormatWAV    = "wav"
	FormatMP3    = "mp3"
	FormatVorbis = "ogg"
	FormatAIFF   = "aiff"
)

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64     `json:"-"` // Samples in [-1, 1], interleaved when Channels > 1
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Format     string        `json:"format"`
	Path       string        `json:"path,omitempty"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	Mono        bool          `json:"mono"`         // Average channels into one
	MaxDuration time.Duration `json:"max_duration"` // Truncate longer streams, 0 = no limit
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		Mono:        true,
		MaxDuration: 0,
	}
}

// Decoder turns WAV, AIFF, MP3 and Ogg Vorbis files into float64 PCM at their native rate
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// FormatFromPath maps a file extension to a container format
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	case ".ogg", ".oga":
		return FormatVorbis, nil
	case ".aif", ".aiff":
		return FormatAIFF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// DecodeFile decodes an audio file and returns PCM data
func (d *Decoder) DecodeFile(filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	format, err := FormatFromPath(filename)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	data, err := d.Decode(f, format)
	if err != nil {
		logger.Debug("Audio decode failed", logging.Fields{"error": err.Error()})
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	data.Path = filename

	logger.Debug("Audio decoded", logging.Fields{
		"format":      data.Format,
		"sample_rate": data.SampleRate,
		"channels":    data.Channels,
		"samples":     len(data.PCM),
	})

	return data, nil
}

// Decode reads a whole stream of the given format
func (d *Decoder) Decode(r io.ReadSeeker, format string) (*AudioData, error) {
	var (
		data *AudioData
		err  error
	)

	switch format {
	case FormatWAV:
		data, err = decodeWAV(r)
	case FormatMP3:
		data, err = decodeMP3(r)
	case FormatVorbis:
		data, err = decodeVorbis(r)
	case FormatAIFF:
		data, err = decodeAIFF(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	if data.SampleRate <= 0 || data.Channels <= 0 {
		return nil, fmt.Errorf("%w: %d Hz, %d channels", ErrInvalidAudio, data.SampleRate, data.Channels)
	}

	if d.config.MaxDuration > 0 {
		maxFrames := int(d.config.MaxDuration.Seconds() * float64(data.SampleRate))
		if maxSamples := maxFrames * data.Channels; len(data.PCM) > maxSamples {
			data.PCM = data.PCM[:maxSamples]
		}
	}

	if d.config.Mono && data.Channels > 1 {
		data.PCM = DownmixToMono(data.PCM, data.Channels)
		data.Channels = 1
	}

	if len(data.PCM) == 0 {
		return nil, ErrEmptyAudio
	}

	frames := len(data.PCM) / data.Channels
	data.Duration = time.Duration(frames) * time.Second / time.Duration(data.SampleRate)
	return data, nil
}

// DownmixToMono averages interleaved channels; a trailing partial frame is dropped
func DownmixToMono(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	inv := 1.0 / float64(channels)

	for f := range frames {
		sum := 0.0
		for c := range channels {
			sum += interleaved[f*channels+c]
		}
		mono[f] = sum * inv
	}
	return mono
}
