package models

import "errors"

var (
	// ErrExtraction means no text could be recovered from an uploaded file.
	ErrExtraction = errors.New("text extraction failed")
	// ErrConfiguration is fatal at construction time, never per request.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrGateway wraps failures of the embedding or generation providers.
	ErrGateway = errors.New("provider call failed")
	// ErrRetrievalUnavailable means the vector store could not be queried.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrNoChunksProcessed means every chunk of a large document failed to embed.
	ErrNoChunksProcessed = errors.New("no chunks could be processed")
)
