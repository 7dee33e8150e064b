package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code, so that
// errors.Is(err, ErrEngineNotReady) matches instances built with a cause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeIngestion          = "INGESTION_ERROR"
	ErrCodeEmbeddingProvider  = "EMBEDDING_PROVIDER_ERROR"
	ErrCodeGenerationProvider = "GENERATION_PROVIDER_ERROR"
	ErrCodeEngineNotReady     = "ENGINE_NOT_READY"
	ErrCodeStoreCorrupt       = "STORE_CORRUPT"
	ErrCodeDimensionMismatch  = "DIMENSION_MISMATCH"
)

// Validation errors
var (
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidChunkSize  = NewDomainError(ErrCodeValidation, "chunk size must be at least 1")
	ErrDuplicateChunkID  = NewDomainError(ErrCodeValidation, "duplicate chunk id")
	ErrDimensionMismatch = NewDomainError(ErrCodeDimensionMismatch, "embedding dimension mismatch")
)

// Pipeline errors
var (
	ErrIngestion          = NewDomainError(ErrCodeIngestion, "document ingestion failed")
	ErrEmbeddingProvider  = NewDomainError(ErrCodeEmbeddingProvider, "embedding provider failed")
	ErrGenerationProvider = NewDomainError(ErrCodeGenerationProvider, "generation provider failed")
	ErrEngineNotReady     = NewDomainError(ErrCodeEngineNotReady, "engine not ready")
	ErrStoreCorrupt       = NewDomainError(ErrCodeStoreCorrupt, "embedding store is corrupt")
	ErrStoreNotFound      = NewDomainError(ErrCodeNotFound, "embedding store not found")
)

// IngestionError wraps a per-document extraction failure.
func IngestionError(document string, err error) error {
	return NewDomainErrorWithCause(ErrCodeIngestion, fmt.Sprintf("failed to ingest %q", document), err)
}

// EmbeddingProviderError wraps a failed remote embedding call.
func EmbeddingProviderError(err error) error {
	return NewDomainErrorWithCause(ErrCodeEmbeddingProvider, "embedding provider failed", err)
}

// GenerationProviderError wraps a failed remote completion call.
func GenerationProviderError(err error) error {
	return NewDomainErrorWithCause(ErrCodeGenerationProvider, "generation provider failed", err)
}

// StoreCorruptError wraps a deserialization failure.
func StoreCorruptError(err error) error {
	return NewDomainErrorWithCause(ErrCodeStoreCorrupt, "embedding store is corrupt", err)
}

// Code returns the DomainError code carried by err, or "" if there is none.
func Code(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
