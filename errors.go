package mobi

import "errors"

var (
	ErrInvalidHeader          = errors.New("mobi: invalid header")
	ErrUnsupportedCompression = errors.New("mobi: unsupported compression")
	ErrEncrypted              = errors.New("mobi: encrypted content")
	ErrInvalidTrailer         = errors.New("mobi: invalid trailing entry")
	ErrLimitExceeded          = errors.New("mobi: limit exceeded")
	ErrValidation             = errors.New("mobi: validation failed")
)
