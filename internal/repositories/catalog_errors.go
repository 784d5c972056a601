package repositories

import (
	"errors"
	"fmt"
)

// CatalogErrorCode enumerates repository error causes for catalog and settings lookups.
type CatalogErrorCode string

const (
	// CatalogErrorUnknown represents an unspecified failure.
	CatalogErrorUnknown CatalogErrorCode = "catalog_unknown"
	// CatalogErrorItemNotFound indicates the item document is missing.
	CatalogErrorItemNotFound CatalogErrorCode = "catalog_item_not_found"
	// CatalogErrorSourceUnavailable indicates the configuration source could not be reached.
	CatalogErrorSourceUnavailable CatalogErrorCode = "catalog_source_unavailable"
)

// ErrItemNotFound is matched by errors.Is for any missing catalog item.
var ErrItemNotFound = errors.New("catalog: item not found")

// CatalogError wraps catalog failures with machine readable codes.
type CatalogError struct {
	Op      string
	Code    CatalogErrorCode
	Message string
	Err     error
}

var _ RepositoryError = (*CatalogError)(nil)

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *CatalogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches ErrItemNotFound for not-found codes.
func (e *CatalogError) Is(target error) bool {
	return e != nil && target == ErrItemNotFound && e.Code == CatalogErrorItemNotFound
}

// IsNotFound reports whether the item was missing.
func (e *CatalogError) IsNotFound() bool {
	return e != nil && e.Code == CatalogErrorItemNotFound
}

// IsUnavailable reports whether the backing source could not be reached.
func (e *CatalogError) IsUnavailable() bool {
	return e != nil && e.Code == CatalogErrorSourceUnavailable
}

// NewCatalogError constructs a typed catalog error.
func NewCatalogError(op string, code CatalogErrorCode, message string, err error) *CatalogError {
	if message == "" {
		message = string(code)
	}
	return &CatalogError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
