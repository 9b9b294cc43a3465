package docdex

import "errors"

var (
	// ErrNameRequired is returned when an index name is blank or unsafe.
	ErrNameRequired = errors.New("index name is required")
	// ErrDocIDRequired is returned when a document id is blank.
	ErrDocIDRequired = errors.New("document id is required")
	// ErrBodyRequired is returned when a document body is nil.
	ErrBodyRequired = errors.New("document body is required")
	// ErrMappingRequired is returned by CreateIndex when the mapping is empty.
	ErrMappingRequired = errors.New("index mapping is required")
	// ErrUnorderable is returned when a sort touches a field whose values
	// cannot be ordered (objects, arrays, or mixed incompatible types).
	ErrUnorderable = errors.New("field value is not orderable")
)
