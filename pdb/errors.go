package pdb

import "errors"

var (
	ErrMalformedContainer   = errors.New("pdb: malformed container")
	ErrTruncatedRecord      = errors.New("pdb: record index out of range")
	ErrNonUTF8String        = errors.New("pdb: string field is not valid UTF-8")
	ErrMissingRequiredField = errors.New("pdb: missing required field")
	ErrInvalidField         = errors.New("pdb: invalid field")
	ErrTimestampRange       = errors.New("pdb: timestamp out of range")
)
