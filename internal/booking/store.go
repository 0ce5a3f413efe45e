package booking

import (
	"context"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-tour/internal/pricing"
)

// Store is the narrow persistence contract the aggregate engine writes
// through. Implementations honor the consistency contract; they never
// recompute totals.
type Store interface {
	// UpsertCustomer resolves a customer by exact email match, overwriting
	// name and phone, and inserting on first sight.
	UpsertCustomer(ctx context.Context, email, name, phone string) (uuid.UUID, error)
	UpdateCustomer(ctx context.Context, id uuid.UUID, name, phone string) error

	InsertBooking(ctx context.Context, b *Booking) (uuid.UUID, error)
	UpdateBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	DeleteBooking(ctx context.Context, id uuid.UUID) error
	ReferenceExists(ctx context.Context, reference string) (bool, error)

	InsertLineItem(ctx context.Context, bookingID uuid.UUID, line *LineItem) (uuid.UUID, error)
	// ReplaceLineItems deletes all existing line items for the booking and
	// inserts the submitted set atomically.
	ReplaceLineItems(ctx context.Context, bookingID uuid.UUID, lines []LineItem) error
}

// CatalogTour is the read-only catalog projection the engine needs.
type CatalogTour struct {
	ID        uuid.UUID
	Name      string
	BasePrice pricing.Money
}

// Catalog looks up tours for the base-price fallback and notifications.
type Catalog interface {
	Tour(ctx context.Context, id uuid.UUID) (CatalogTour, error)
}

// Invalidator drops cached booking projections after successful writes.
// Calls are fire-and-forget.
type Invalidator interface {
	Invalidate(ctx context.Context, scope string)
}

// LineFailure records one failed line-item insert during append-tolerant
// creation.
type LineFailure struct {
	Index int
	Err   error
}

// InsertReport summarises the line-item insert loop for observability. It is
// never surfaced to the end user.
type InsertReport struct {
	Requested int
	Persisted int
	Failures  []LineFailure
}

// Partial reports whether fewer line items were persisted than submitted.
func (r InsertReport) Partial() bool {
	return r.Persisted < r.Requested
}
