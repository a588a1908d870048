// Package errs defines the typed error taxonomy shared across the engine,
// so callers can branch on error kind with errors.As instead of string
// matching.
package errs

import "fmt"

// SourceErrorKind classifies a connector-level failure.
type SourceErrorKind string

const (
	SourceAuth      SourceErrorKind = "auth"
	SourceNotFound  SourceErrorKind = "not_found"
	SourceTransient SourceErrorKind = "transient"
	SourcePermanent SourceErrorKind = "permanent"
)

// StoreErrorKind classifies a vector/lexical/graph store failure.
type StoreErrorKind string

const (
	StoreTransient StoreErrorKind = "transient"
	StorePermanent StoreErrorKind = "permanent"
)

// ProviderUnavailable indicates a network-level failure reaching an LLM or
// embedding provider.
type ProviderUnavailable struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
}
func (e *ProviderUnavailable) Unwrap() error { return e.Err }

// AuthError indicates bad credentials for an LLM, embedding, or connector
// provider.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error for %s: %v", e.Provider, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

// ModelNotFound indicates a configured model id the provider does not
// recognize.
type ModelNotFound struct {
	Provider string
	Model    string
}

func (e *ModelNotFound) Error() string {
	return fmt.Sprintf("model %q not found for provider %s", e.Model, e.Provider)
}

// SourceError is raised by a connector. Transient kinds are retried by the
// ingestion manager; permanent kinds mark the file failed but the run
// continues.
type SourceError struct {
	Kind SourceErrorKind
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source error (%s) for %s: %v", e.Kind, e.Path, e.Err)
}
func (e *SourceError) Unwrap() error { return e.Err }

// ParseTimeout is a file-level error: the parser abandoned the document
// after parse_timeout_s.
type ParseTimeout struct {
	Path    string
	Timeout string
}

func (e *ParseTimeout) Error() string {
	return fmt.Sprintf("parse timeout (%s) for %s", e.Timeout, e.Path)
}

// ParseFailure is a file-level error: the parser permanently failed after
// exhausting retries.
type ParseFailure struct {
	Path string
	Err  error
}

func (e *ParseFailure) Error() string { return fmt.Sprintf("parse failed for %s: %v", e.Path, e.Err) }
func (e *ParseFailure) Unwrap() error  { return e.Err }

// EmbeddingError wraps a failure from the embedder.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding error: %v", e.Err) }
func (e *EmbeddingError) Unwrap() error  { return e.Err }

// StoreError is raised by a vector/lexical/graph store implementation.
type StoreError struct {
	Kind  StoreErrorKind
	Store string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error (%s) in %s: %v", e.Kind, e.Store, e.Err)
}
func (e *StoreError) Unwrap() error { return e.Err }

// KGExtractionError is a file-level error from the triple extractor.
type KGExtractionError struct {
	Err error
}

func (e *KGExtractionError) Error() string { return fmt.Sprintf("kg extraction error: %v", e.Err) }
func (e *KGExtractionError) Unwrap() error  { return e.Err }

// RetrievalError is raised when every enabled retrieval modality fails.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("retrieval error: %v", e.Err) }
func (e *RetrievalError) Unwrap() error  { return e.Err }

// Cancelled indicates a run was cancelled via its cancel token. It is
// surfaced as a terminal run phase, never re-thrown to callers of the
// cancel endpoint.
type Cancelled struct {
	RunID string
}

func (e *Cancelled) Error() string { return fmt.Sprintf("run %s cancelled", e.RunID) }

// DimensionMismatch is a configuration-time error: the embedder's declared
// dimension does not match the vector store's configured dimension.
type DimensionMismatch struct {
	EmbedderDim int
	StoreDim    int
}

func (e *DimensionMismatch) Error() string {
	return fmt.Sprintf("embedder dimension %d != vector store dimension %d; delete existing index or change embedding model", e.EmbedderDim, e.StoreDim)
}
