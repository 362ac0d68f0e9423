package sales

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConflict           = errors.New("conflict")
)

const (
	KindUser    = "user"
	KindProduct = "product"
	KindClient  = "client"
	KindOrder   = "order"
)

type NotFoundError struct {
	Kind string
	ID   ID
}

func NotFound(kind string, id ID) error { return &NotFoundError{Kind: kind, ID: id} }

func (e *NotFoundError) Error() string        { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type InsufficientStockError struct {
	ProductID ID
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %s (%s) exceeds available stock: requested=%d available=%d",
		e.ProductID, e.Name, e.Requested, e.Available)
}
func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type AlreadyExistsError struct {
	Kind string
	Key  string
}

func (e *AlreadyExistsError) Error() string        { return fmt.Sprintf("%s %s already exists", e.Kind, e.Key) }
func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

type InvalidInputError struct {
	Field  string
	Reason string
}

func invalid(field, reason string) error { return &InvalidInputError{Field: field, Reason: reason} }

func (e *InvalidInputError) Error() string        { return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason) }
func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// ConflictError means the stored record changed after it was read.
type ConflictError struct {
	Kind string
	ID   ID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently, reload and retry", e.Kind, e.ID)
}
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
