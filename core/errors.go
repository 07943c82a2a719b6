package core

import "github.com/pkg/errors"

// Error kinds. Call sites wrap these with context, so test with errors.Is.
var (
	// ErrIO covers unreadable sources, failed writes and hard size ceilings.
	ErrIO = errors.New("i/o failure")
	// ErrInvalidArgument is returned before any mutation happens.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNullArgument is the zero-value form of ErrInvalidArgument.
	ErrNullArgument = errors.New("null argument")
	// ErrTypeMismatch means a value does not parse as the tag's declared type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnknownTag is returned for attribute names missing from the dictionary.
	ErrUnknownTag = errors.New("unknown tag")
	// ErrInvalidFormat is returned when no container can be recognised at all.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrUnsupportedFormat is returned for operations a container cannot do.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrRangesNotTracked means the store was opened without range tracking.
	ErrRangesNotTracked = errors.New("byte ranges were not tracked")
)
