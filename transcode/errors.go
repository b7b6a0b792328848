package transcode

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrInvalidAudio      = errors.New("invalid audio stream")
	ErrEmptyAudio        = errors.New("audio stream holds no samples")
)
