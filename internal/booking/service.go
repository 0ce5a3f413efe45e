package booking

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-tour/internal/common"
	"github.com/noah-isme/backend-tour/internal/events"
	"github.com/noah-isme/backend-tour/internal/notify"
	"github.com/noah-isme/backend-tour/internal/obs"
	"github.com/noah-isme/backend-tour/internal/pricing"
	"github.com/noah-isme/backend-tour/internal/refgen"
)

// CacheScope is the invalidation scope for booking read projections.
const CacheScope = "bookings"

// referenceAttempts bounds the re-generation loop when a freshly generated
// reference collides with an existing one.
const referenceAttempts = 3

// Service is the booking aggregate engine. It sequences customer resolution,
// totals computation and persistence for the two entry flows, Create
// (append-tolerant) and Update (replace-all).
type Service struct {
	Store   Store
	Catalog Catalog
	Refs    refgen.Generator
	Events  *events.Bus
	Cache   Invalidator
	Logger  zerolog.Logger
}

// CreateResult reports a successful creation. Report captures partial
// line-item persistence for monitoring; it is not a user-facing failure.
type CreateResult struct {
	ID        uuid.UUID
	Reference string
	Report    InsertReport
}

// Create runs the append-tolerant creation flow. Customer resolution and the
// booking row insert are fatal; line-item inserts after that are not — a
// failure on line k leaves lines 1..k-1 persisted and still reports success.
func (s *Service) Create(ctx context.Context, draft *Draft) (CreateResult, error) {
	if err := draft.Validate(); err != nil {
		return CreateResult{}, err
	}

	customerID, err := s.Store.UpsertCustomer(ctx, draft.Customer.Email, draft.Customer.Name, draft.Customer.Phone)
	if err != nil {
		s.countCreate("customer_error")
		return CreateResult{}, classify(err, "resolve customer")
	}

	lines, primaryTour, err := s.prepareLines(ctx, draft)
	if err != nil {
		s.countCreate("invalid")
		return CreateResult{}, err
	}
	commission := pricing.Round(draft.Commission)
	totals := pricing.Aggregate(toPricingLines(lines), commission)

	reference := s.uniqueReference(ctx)

	b := &Booking{
		Reference:        reference,
		CustomerID:       customerID,
		Status:           draft.status(),
		Notes:            draft.Notes,
		PaymentLocation:  draft.PaymentLocation,
		OtherInfo:        draft.OtherInfo,
		MarketingSource:  draft.MarketingSource,
		Commission:       commission,
		Deposit:          totals.Deposit,
		TotalPayment:     totals.TotalPayment,
		RemainingBalance: totals.RemainingBalance,
		TotalNet:         totals.TotalNet,
	}
	bookingID, err := s.Store.InsertBooking(ctx, b)
	if err != nil {
		s.countCreate("booking_error")
		return CreateResult{}, classify(err, "persist booking")
	}
	b.ID = bookingID

	stored := applyCommission(lines, commission)
	report := InsertReport{Requested: len(stored)}
	for i := range stored {
		stored[i].BookingID = bookingID
		if _, insErr := s.Store.InsertLineItem(ctx, bookingID, &stored[i]); insErr != nil {
			report.Failures = append(report.Failures, LineFailure{Index: i, Err: insErr})
			if obs.BookingLineFailures != nil {
				obs.BookingLineFailures.Inc()
			}
			s.Logger.Warn().Err(insErr).
				Str("reference", reference).
				Int("line_index", i).
				Int("persisted", report.Persisted).
				Msg("line item insert failed; booking left partial")
			break
		}
		report.Persisted++
	}
	if report.Partial() && obs.BookingLinePartialTotal != nil {
		obs.BookingLinePartialTotal.Inc()
	}

	s.countCreate("ok")
	s.dispatchSideEffects(ctx, events.TopicBookingCreated, b, draft, lines, primaryTour)
	return CreateResult{ID: bookingID, Reference: reference, Report: report}, nil
}

// Update runs the replace-all flow. Every persistence failure here is fatal;
// the line-item replacement runs inside one storage transaction so a failed
// insert cannot leave a booking without line items.
func (s *Service) Update(ctx context.Context, id uuid.UUID, draft *Draft) error {
	if err := draft.Validate(); err != nil {
		return err
	}

	existing, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		s.countUpdate("not_found")
		return classify(err, "load booking")
	}

	if err := s.Store.UpdateCustomer(ctx, existing.CustomerID, draft.Customer.Name, draft.Customer.Phone); err != nil {
		s.countUpdate("customer_error")
		return classify(err, "update customer")
	}

	lines, primaryTour, err := s.prepareLines(ctx, draft)
	if err != nil {
		s.countUpdate("invalid")
		return err
	}
	commission := pricing.Round(draft.Commission)
	totals := pricing.Aggregate(toPricingLines(lines), commission)

	b := &Booking{
		ID:               existing.ID,
		Reference:        existing.Reference,
		CustomerID:       existing.CustomerID,
		Status:           draft.status(),
		Notes:            draft.Notes,
		PaymentLocation:  draft.PaymentLocation,
		OtherInfo:        draft.OtherInfo,
		MarketingSource:  draft.MarketingSource,
		Commission:       commission,
		Deposit:          totals.Deposit,
		TotalPayment:     totals.TotalPayment,
		RemainingBalance: totals.RemainingBalance,
		TotalNet:         totals.TotalNet,
		CreatedAt:        existing.CreatedAt,
	}
	if err := s.Store.UpdateBooking(ctx, b); err != nil {
		s.countUpdate("booking_error")
		return classify(err, "persist booking")
	}

	stored := applyCommission(lines, commission)
	for i := range stored {
		stored[i].BookingID = id
	}
	if err := s.Store.ReplaceLineItems(ctx, id, stored); err != nil {
		s.countUpdate("line_error")
		return classify(err, "replace line items")
	}

	s.countUpdate("ok")
	s.dispatchSideEffects(ctx, events.TopicBookingUpdated, b, draft, lines, primaryTour)
	return nil
}

// Get loads a booking aggregate with its line items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		return nil, classify(err, "load booking")
	}
	return b, nil
}

// Delete removes a booking and, by composition, its line items.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Store.GetBooking(ctx, id); err != nil {
		return classify(err, "load booking")
	}
	if err := s.Store.DeleteBooking(ctx, id); err != nil {
		return classify(err, "delete booking")
	}
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, CacheScope)
	}
	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, events.TopicBookingDeleted, id, nil); err != nil {
			s.Logger.Warn().Err(err).Msg("booking delete event dispatch failed")
		}
	}
	return nil
}

// prepareLines assembles the draft lines, resolves the catalog fallback price
// where needed and applies the synchronization rule. It also resolves the
// primary line's tour for notification payloads, tolerating lookup failures
// when the tour is not needed for pricing.
func (s *Service) prepareLines(ctx context.Context, draft *Draft) ([]LineItem, CatalogTour, error) {
	lines, err := draft.assembleLines()
	if err != nil {
		return nil, CatalogTour{}, err
	}
	var primaryTour CatalogTour
	for i := range lines {
		needsFallback := lines[i].AdultPrice == 0 && lines[i].ChildrenPrice == 0
		if !needsFallback && i != 0 {
			continue
		}
		tour, lookupErr := s.Catalog.Tour(ctx, lines[i].TourID)
		if lookupErr != nil {
			if needsFallback {
				return nil, CatalogTour{}, classify(lookupErr, "resolve tour price")
			}
			continue
		}
		lines[i].CatalogPrice = tour.BasePrice
		if i == 0 {
			primaryTour = tour
		}
	}
	return Synchronize(lines, 0), primaryTour, nil
}

// uniqueReference generates a reference and retries a bounded number of times
// when it collides with a persisted one. Lookup failures fall back to the
// last generated value; the storage unique constraint is the final guard.
func (s *Service) uniqueReference(ctx context.Context) string {
	ref := s.Refs.Generate()
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		exists, err := s.Store.ReferenceExists(ctx, ref)
		if err != nil || !exists {
			break
		}
		ref = s.Refs.Generate()
	}
	return ref
}

// dispatchSideEffects emits the domain event and invalidates cached booking
// projections. Everything here is best-effort; failures are logged and
// swallowed.
func (s *Service) dispatchSideEffects(ctx context.Context, topic string, b *Booking, draft *Draft, lines []LineItem, primaryTour CatalogTour) {
	if s.Events != nil {
		payload := notify.BookingNotification{
			Reference:     b.Reference,
			CustomerName:  draft.Customer.Name,
			CustomerEmail: draft.Customer.Email,
			TourName:      primaryTour.Name,
			TotalAmount:   b.TotalPayment,
			Status:        string(b.Status),
		}
		if len(lines) > 0 {
			payload.TourDate = lines[0].TourDate.Format("2006-01-02")
			payload.Passengers = lines[0].TotalPax
		}
		if _, err := s.Events.Emit(ctx, topic, b.ID, payload); err != nil {
			if obs.BookingNotifyTotal != nil {
				obs.BookingNotifyTotal.WithLabelValues("error").Inc()
			}
			s.Logger.Warn().Err(err).Str("reference", b.Reference).Msg("booking event dispatch failed")
		} else if obs.BookingNotifyTotal != nil {
			obs.BookingNotifyTotal.WithLabelValues("ok").Inc()
		}
	}
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, CacheScope)
	}
}

func (s *Service) countCreate(result string) {
	if obs.BookingCreateTotal != nil {
		obs.BookingCreateTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) countUpdate(result string) {
	if obs.BookingUpdateTotal != nil {
		obs.BookingUpdateTotal.WithLabelValues(result).Inc()
	}
}

// applyCommission computes the per-line commission shares and stores the
// adjusted remaining balance on a copy of the lines. The booking level
// remaining balance subtracts the full commission once and is untouched here.
func applyCommission(lines []LineItem, commission pricing.Money) []LineItem {
	out := make([]LineItem, len(lines))
	copy(out, lines)
	prices := make([]pricing.Money, len(lines))
	for i := range lines {
		prices[i] = lines[i].Price
	}
	shares := pricing.AllocateCommission(prices, commission)
	for i := range out {
		out[i].RemainingBalance = pricing.AdjustedRemaining(out[i].RemainingBalance, shares[i])
	}
	return out
}

func toPricingLines(lines []LineItem) []pricing.Line {
	out := make([]pricing.Line, len(lines))
	for i, l := range lines {
		out[i] = pricing.Line{Price: l.Price, Deposit: l.Deposit}
	}
	return out
}

func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.NewAppError(common.CodeTimeout, op+" timed out", http.StatusGatewayTimeout, err)
	}
	return common.NewAppError(common.CodeUnavailable, op+" failed", http.StatusServiceUnavailable, err)
}
