package graph

import (
	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/pkg/errors"
)

const (
	CodeNotFound           = "NOT_FOUND"
	CodeNotAuthorized      = "NOT_AUTHORIZED"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL"
)

// Error is a resolver error carrying extensions.code for clients.
type Error struct {
	Code    string
	Message string
	Fields  map[string]interface{}
	cause   error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": e.Code}
	for k, v := range e.Fields {
		ext[k] = v
	}
	return ext
}

// wrap maps domain errors to client-facing ones. Anything unknown becomes INTERNAL
// and its message is not exposed.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var (
		nf  *sales.NotFoundError
		ins *sales.InsufficientStockError
		ae  *sales.AlreadyExistsError
		ce  *sales.ConflictError
		inv *sales.InvalidInputError
	)
	e := &Error{Message: err.Error(), cause: err}
	switch {
	case errors.As(err, &ins):
		e.Code = CodeInsufficientStock
		e.Fields = map[string]interface{}{
			"productId": ins.ProductID.String(),
			"requested": ins.Requested,
			"available": ins.Available,
		}
	case errors.As(err, &nf):
		e.Code = CodeNotFound
		e.Fields = map[string]interface{}{"kind": nf.Kind, "id": nf.ID.String()}
	case errors.Is(err, sales.ErrNotFound):
		e.Code = CodeNotFound
	case errors.Is(err, sales.ErrNotAuthorized):
		e.Code = CodeNotAuthorized
		e.Message = "you don't have permission for this resource"
	case errors.As(err, &ae):
		e.Code = CodeAlreadyExists
		e.Fields = map[string]interface{}{"kind": ae.Kind}
	case errors.As(err, &ce):
		e.Code = CodeConflict
		e.Fields = map[string]interface{}{"kind": ce.Kind, "id": ce.ID.String()}
	case errors.As(err, &inv):
		e.Code = CodeInvalidInput
		e.Fields = map[string]interface{}{"field": inv.Field}
	case errors.Is(err, sales.ErrInvalidCredentials):
		e.Code = CodeInvalidCredentials
		e.Message = "invalid email or password"
	default:
		e.Code = CodeInternal
		e.Message = "internal error"
	}
	return e
}
