package srsmap

import "errors"

var (
	// ErrEmbeddingUnavailable is returned when neither the configured
	// embedding model nor the fallback model can be reached.
	ErrEmbeddingUnavailable = errors.New("srsmap: embedding backend unavailable")

	// ErrUnknownCategory is returned when assigning content to a label
	// that is not part of the canonical category set.
	ErrUnknownCategory = errors.New("srsmap: unknown target category")

	// ErrRunNotFound is returned when a mapping run ID does not exist.
	ErrRunNotFound = errors.New("srsmap: run not found")

	// ErrQuestionNotFound is returned when a question ID does not exist.
	ErrQuestionNotFound = errors.New("srsmap: question not found")

	// ErrUnsupportedFormat is returned for unrecognized input file formats.
	ErrUnsupportedFormat = errors.New("srsmap: unsupported document format")

	// ErrLLMUnavailable is returned when the chat LLM is unreachable.
	ErrLLMUnavailable = errors.New("srsmap: LLM provider unavailable")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("srsmap: store is closed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("srsmap: invalid configuration")
)
