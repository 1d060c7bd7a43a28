package las

import (
	"errors"
)

var (
	ErrTruncatedStream    = errors.New("truncated las stream")
	ErrInvalidFormat      = errors.New("invalid las format")
	ErrUnsupportedVersion = errors.New("unsupported las version")
	ErrUnsupportedFormat  = errors.New("unsupported point data record format")
	ErrIndexOutOfRange    = errors.New("point index out of range")
	ErrReaderClosed       = errors.New("las reader closed")
)

// Reasons for ErrInvalidFormat. Each of them matches ErrInvalidFormat with errors.Is.
var (
	ErrBadSignature = &formatError{reason: "bad file signature"}
	ErrVLROverrun   = &formatError{reason: "variable length records overrun point data"}
	ErrRecordLength = &formatError{reason: "point data record length too small for format"}
	ErrHeaderSize   = &formatError{reason: "header size inconsistent with version or point data offset"}
)

type formatError struct {
	reason string
}

func (e *formatError) Error() string {
	return ErrInvalidFormat.Error() + ": " + e.reason
}

func (e *formatError) Is(target error) bool {
	return target == ErrInvalidFormat
}
