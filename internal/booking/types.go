package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-tour/internal/pricing"
)

// Status enumerates the payment lifecycle of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed" // deposit paid
	StatusPaid      Status = "paid"      // fully paid
	StatusRefunded  Status = "refunded"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPaid, StatusRefunded:
		return true
	}
	return false
}

// Customer is identified by email (case-sensitive exact match). Name and phone
// are overwritten on every subsequent booking for the same email.
type Customer struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Phone string    `json:"phone,omitempty"`
}

// Booking is the aggregate root for one customer purchase, possibly spanning
// several tours.
type Booking struct {
	ID              uuid.UUID     `json:"id"`
	Reference       string        `json:"reference"`
	CustomerID      uuid.UUID     `json:"customerId"`
	Status          Status        `json:"status"`
	Notes           string        `json:"notes,omitempty"`
	PaymentLocation string        `json:"paymentLocation,omitempty"`
	OtherInfo       string        `json:"otherInfo,omitempty"`
	MarketingSource string        `json:"marketingSource,omitempty"`
	Commission      pricing.Money `json:"commission"`

	// Derived totals, computed by the aggregate engine at write time. Deposit
	// sums the replicated per-line deposits, consistent with how TotalPayment
	// sums line prices.
	Deposit          pricing.Money `json:"deposit"`
	TotalPayment     pricing.Money `json:"totalPayment"`
	RemainingBalance pricing.Money `json:"remainingBalance"`
	TotalNet         pricing.Money `json:"totalNet"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Lines []LineItem `json:"lineItems,omitempty"`
}

// LineItem is one tour/date/passenger-mix/price entry owned exclusively by a
// booking. Passenger counts, deposit and ship on non-primary lines mirror the
// primary line after synchronization.
type LineItem struct {
	ID        uuid.UUID `json:"id"`
	BookingID uuid.UUID `json:"bookingId"`
	TourID    uuid.UUID `json:"tourId"`
	TourDate  time.Time `json:"tourDate"`

	Adults   int `json:"adults"`
	Children int `json:"children"`
	TotalPax int `json:"totalPax"`

	AdultPrice    float64 `json:"adultPrice"`
	ChildrenPrice float64 `json:"childrenPrice"`

	Price            pricing.Money `json:"price"`
	Deposit          pricing.Money `json:"deposit"`
	RemainingBalance pricing.Money `json:"remainingBalance"`

	ShipID  *uuid.UUID `json:"shipId,omitempty"`
	GuideID *uuid.UUID `json:"guideId,omitempty"`
	Notes   string     `json:"notes,omitempty"`

	// CatalogPrice is the tour's base price captured at assembly time, used
	// as the pricing fallback when both per-person prices are zero. It is not
	// persisted.
	CatalogPrice pricing.Money `json:"-"`
}
