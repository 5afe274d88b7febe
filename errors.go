package cartstore

import (
	"errors"
	"fmt"

	"goflare.io/cartstore/models"
	"goflare.io/cartstore/models/enum"
)

var (
	ErrOutOfStock    = errors.New("requested quantity is out of stock")
	ErrNotFound      = errors.New("product is not in the cart")
	ErrRemoteFailure = errors.New("stock service request failed")
	ErrUnexpected    = errors.New("unexpected cart failure")
)

// User-facing messages.
const (
	MessageOutOfStock          = "requested quantity is out of stock"
	MessageAddProductFailed    = "failed to add product"
	MessageRemoveProductFailed = "failed to remove product"
	MessageUpdateAmountFailed  = "failed to update product quantity"
)

// Error is returned by every failed Store operation. The cart is left exactly as
// it was before the call.
type Error struct {
	Op        enum.Operation
	Kind      enum.FailureKind
	ProductID int
	Err       error
}

func newError(op enum.Operation, kind enum.FailureKind, productID int, err error) *Error {
	return &Error{Op: op, Kind: kind, ProductID: productID, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s product %d: %s: %v", e.Op, e.ProductID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets callers match on the kind sentinels, e.g. errors.Is(err, ErrRemoteFailure).
func (e *Error) Is(target error) bool {
	switch target {
	case ErrOutOfStock:
		return e.Kind == enum.FailureKindOutOfStock
	case ErrNotFound:
		return e.Kind == enum.FailureKindNotFound
	case ErrRemoteFailure:
		return e.Kind == enum.FailureKindRemoteFailure
	case ErrUnexpected:
		return e.Kind == enum.FailureKindUnexpected
	}
	return false
}

// KindOf returns the failure kind of err. Errors that did not come from a Store
// operation are Unexpected.
func KindOf(err error) enum.FailureKind {
	var cartErr *Error
	if errors.As(err, &cartErr) {
		return cartErr.Kind
	}
	return enum.FailureKindUnexpected
}

// Message returns the text shown to the user. Out of stock has its own message,
// every other kind collapses to the generic message of the operation.
func Message(op enum.Operation, kind enum.FailureKind) string {
	if kind == enum.FailureKindOutOfStock {
		return MessageOutOfStock
	}
	switch op {
	case enum.OperationAddProduct:
		return MessageAddProductFailed
	case enum.OperationRemoveProduct:
		return MessageRemoveProductFailed
	case enum.OperationUpdateProductAmount:
		return MessageUpdateAmountFailed
	default:
		return "cart operation failed"
	}
}

// NotificationFor converts an operation error into the notification shown to the user.
func NotificationFor(op enum.Operation, productID int, err error) models.Notification {
	kind := KindOf(err)
	return models.Notification{
		Operation: op,
		Kind:      kind,
		ProductID: productID,
		Message:   Message(op, kind),
	}
}
