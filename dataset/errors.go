package dataset

import "errors"

var (
	ErrMalformedIndex      = errors.New("malformed dataset index")
	ErrMalformedAnnotation = errors.New("malformed annotation file")
	ErrMissingLabel        = errors.New("annotation has no majority vote label")
)
