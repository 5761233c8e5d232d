package services

import "fmt"

// ValidationError indicates malformed or missing input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError indicates a referenced entity does not exist.
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// InsufficientStockError indicates an order or adjustment would drive a
// product's stock below zero. The whole operation is rejected.
type InsufficientStockError struct {
	ProductID uint
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// NotTrackableError indicates a stock operation targeted a product without
// inventory tracking.
type NotTrackableError struct {
	ProductID uint
}

func (e *NotTrackableError) Error() string {
	return fmt.Sprintf("product %d is not stock-tracked", e.ProductID)
}

// InvalidTransitionError indicates a status change that the state machine
// does not permit.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// ConflictError indicates the request conflicts with existing state, such
// as a duplicate table number.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// Actor identifies who performed a mutation, for the audit trail.
type Actor struct {
	UserID    string
	IPAddress string
}

// SystemActor is used for mutations not tied to a request.
var SystemActor = Actor{UserID: "system"}
