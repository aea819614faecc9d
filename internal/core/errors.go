package core

import "fmt"

// Domain error taxonomy. Services return these for business-rule failures;
// infrastructure failures are wrapped with fmt.Errorf("...: %w", err) and
// surface as internal errors. The web adapter matches the types with
// errors.As to pick an HTTP status.

// ValidationError reports malformed or missing input: an empty recipe, a
// non-positive payment amount, a missing customer on a credit close.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a business-rule violation with no side effects:
// a second OPEN order on a table, editing a non-open order, deleting a
// recipe that has sales history.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func Conflictf(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func NotFoundf(format string, args ...any) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError blocks a settlement when an ingredient's ledger
// cannot cover the quantity a sale needs. It identifies the exact shortfall
// so the caller can report which ingredient ran out.
type InsufficientStockError struct {
	IngredientID   int
	IngredientName string
	Day            string
	Available      int
	Required       int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s on %s: available %d, required %d",
		e.IngredientName, e.Day, e.Available, e.Required)
}
