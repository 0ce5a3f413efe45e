// Package store implements booking persistence on PostgreSQL via pgx.
package store

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-tour/internal/booking"
	"github.com/noah-isme/backend-tour/internal/common"
	"github.com/noah-isme/backend-tour/internal/events"
	"github.com/noah-isme/backend-tour/internal/resilience"
	"github.com/noah-isme/backend-tour/internal/tours"
)

const uniqueViolation = "23505"

// Store wraps a pgx pool with per-query timeouts and bounded retries on
// idempotent operations. Writes that are not safe to repeat run exactly once.
type Store struct {
	Pool          *pgxpool.Pool
	QueryTimeout  time.Duration
	RetryAttempts int
	RetryBase     time.Duration
	Logger        zerolog.Logger
}

// New constructs a Store with sane defaults for unset knobs.
func New(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{
		Pool:          pool,
		QueryTimeout:  5 * time.Second,
		RetryAttempts: 3,
		RetryBase:     100 * time.Millisecond,
		Logger:        logger,
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// retry runs fn with backoff. Only used for reads and the idempotent customer
// upsert; repeating those cannot duplicate data.
func (s *Store) retry(ctx context.Context, fn func(context.Context) error) error {
	attempts := s.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return resilience.Retry(ctx, attempts, s.RetryBase, fn)
}

// UpsertCustomer resolves a customer by exact email match. Name and phone are
// overwritten on every call so the latest booking wins.
func (s *Store) UpsertCustomer(ctx context.Context, email, name, phone string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.retry(ctx, func(ctx context.Context) error {
		qctx, cancel := s.withTimeout(ctx)
		defer cancel()
		return s.Pool.QueryRow(qctx, `
			INSERT INTO customers (email, name, phone)
			VALUES ($1, $2, $3)
			ON CONFLICT (email) DO UPDATE
			SET name = EXCLUDED.name, phone = EXCLUDED.phone, updated_at = now()
			RETURNING id`,
			email, name, phone,
		).Scan(&id)
	})
	if err != nil {
		return uuid.Nil, s.wrap(err, "upsert customer")
	}
	return id, nil
}

// UpdateCustomer overwrites name and phone for a known customer id.
func (s *Store) UpdateCustomer(ctx context.Context, id uuid.UUID, name, phone string) error {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tag, err := s.Pool.Exec(qctx, `
		UPDATE customers SET name = $2, phone = $3, updated_at = now()
		WHERE id = $1`,
		id, name, phone,
	)
	if err != nil {
		return s.wrap(err, "update customer")
	}
	if tag.RowsAffected() == 0 {
		return common.NewAppError(common.CodeNotFound, "customer not found", http.StatusNotFound, nil)
	}
	return nil
}

// InsertBooking persists the booking header with its precomputed totals.
func (s *Store) InsertBooking(ctx context.Context, b *booking.Booking) (uuid.UUID, error) {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var id uuid.UUID
	err := s.Pool.QueryRow(qctx, `
		INSERT INTO bookings (
			reference, customer_id, status, notes, payment_location, other_info,
			marketing_source, commission, deposit, total_payment,
			remaining_balance, total_net
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		b.Reference, b.CustomerID, string(b.Status), b.Notes, b.PaymentLocation,
		b.OtherInfo, b.MarketingSource, b.Commission, b.Deposit, b.TotalPayment,
		b.RemainingBalance, b.TotalNet,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, s.wrap(err, "insert booking")
	}
	return id, nil
}

// UpdateBooking overwrites the booking header. Reference and customer id are
// immutable after creation and deliberately absent from the SET list.
func (s *Store) UpdateBooking(ctx context.Context, b *booking.Booking) error {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tag, err := s.Pool.Exec(qctx, `
		UPDATE bookings SET
			status = $2, notes = $3, payment_location = $4, other_info = $5,
			marketing_source = $6, commission = $7, deposit = $8,
			total_payment = $9, remaining_balance = $10, total_net = $11,
			updated_at = now()
		WHERE id = $1`,
		b.ID, string(b.Status), b.Notes, b.PaymentLocation, b.OtherInfo,
		b.MarketingSource, b.Commission, b.Deposit, b.TotalPayment,
		b.RemainingBalance, b.TotalNet,
	)
	if err != nil {
		return s.wrap(err, "update booking")
	}
	if tag.RowsAffected() == 0 {
		return common.NewAppError(common.CodeNotFound, "booking not found", http.StatusNotFound, nil)
	}
	return nil
}

// GetBooking loads a booking with its line items ordered by creation.
func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	var b booking.Booking
	var notFound bool
	err := s.retry(ctx, func(ctx context.Context) error {
		qctx, cancel := s.withTimeout(ctx)
		defer cancel()
		var status string
		if err := s.Pool.QueryRow(qctx, `
			SELECT id, reference, customer_id, status, notes, payment_location,
			       other_info, marketing_source, commission, deposit,
			       total_payment, remaining_balance, total_net, created_at, updated_at
			FROM bookings WHERE id = $1`,
			id,
		).Scan(
			&b.ID, &b.Reference, &b.CustomerID, &status, &b.Notes,
			&b.PaymentLocation, &b.OtherInfo, &b.MarketingSource, &b.Commission,
			&b.Deposit, &b.TotalPayment, &b.RemainingBalance, &b.TotalNet,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			// a missing row is a final answer, not a transient fault
			if errors.Is(err, pgx.ErrNoRows) {
				notFound = true
				return nil
			}
			return err
		}
		b.Status = booking.Status(status)
		lines, err := s.lineItems(qctx, id)
		if err != nil {
			return err
		}
		b.Lines = lines
		return nil
	})
	if err != nil {
		return nil, s.wrap(err, "load booking")
	}
	if notFound {
		return nil, common.NewAppError(common.CodeNotFound, "booking not found", http.StatusNotFound, nil)
	}
	return &b, nil
}

func (s *Store) lineItems(ctx context.Context, bookingID uuid.UUID) ([]booking.LineItem, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, booking_id, tour_id, tour_date, adults, children, total_pax,
		       adult_price, children_price, price, deposit, remaining_balance,
		       ship_id, guide_id, notes
		FROM tour_line_items
		WHERE booking_id = $1
		ORDER BY created_at, id`,
		bookingID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []booking.LineItem
	for rows.Next() {
		var l booking.LineItem
		if err := rows.Scan(
			&l.ID, &l.BookingID, &l.TourID, &l.TourDate, &l.Adults, &l.Children,
			&l.TotalPax, &l.AdultPrice, &l.ChildrenPrice, &l.Price, &l.Deposit,
			&l.RemainingBalance, &l.ShipID, &l.GuideID, &l.Notes,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// DeleteBooking removes the booking; line items cascade at the schema level.
func (s *Store) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tag, err := s.Pool.Exec(qctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return s.wrap(err, "delete booking")
	}
	if tag.RowsAffected() == 0 {
		return common.NewAppError(common.CodeNotFound, "booking not found", http.StatusNotFound, nil)
	}
	return nil
}

// ReferenceExists reports whether a reference code is already taken.
func (s *Store) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := s.retry(ctx, func(ctx context.Context) error {
		qctx, cancel := s.withTimeout(ctx)
		defer cancel()
		return s.Pool.QueryRow(qctx,
			`SELECT EXISTS (SELECT 1 FROM bookings WHERE reference = $1)`,
			reference,
		).Scan(&exists)
	})
	if err != nil {
		return false, s.wrap(err, "check reference")
	}
	return exists, nil
}

// InsertLineItem persists one line item. Not retried: a repeat after an
// ambiguous failure would duplicate the line.
func (s *Store) InsertLineItem(ctx context.Context, bookingID uuid.UUID, line *booking.LineItem) (uuid.UUID, error) {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var id uuid.UUID
	err := s.Pool.QueryRow(qctx, insertLineSQL,
		bookingID, line.TourID, line.TourDate, line.Adults, line.Children,
		line.TotalPax, line.AdultPrice, line.ChildrenPrice, line.Price,
		line.Deposit, line.RemainingBalance, line.ShipID, line.GuideID, line.Notes,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, s.wrap(err, "insert line item")
	}
	return id, nil
}

const insertLineSQL = `
	INSERT INTO tour_line_items (
		booking_id, tour_id, tour_date, adults, children, total_pax,
		adult_price, children_price, price, deposit, remaining_balance,
		ship_id, guide_id, notes
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING id`

// ReplaceLineItems deletes every existing line item for the booking and
// inserts the submitted set inside one transaction, so a failed insert rolls
// back the delete and never leaves the booking without lines.
func (s *Store) ReplaceLineItems(ctx context.Context, bookingID uuid.UUID, lines []booking.LineItem) error {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.Pool.Begin(qctx)
	if err != nil {
		return s.wrap(err, "replace line items")
	}
	defer func() { _ = tx.Rollback(qctx) }()

	if _, err := tx.Exec(qctx, `DELETE FROM tour_line_items WHERE booking_id = $1`, bookingID); err != nil {
		return s.wrap(err, "replace line items")
	}
	for i := range lines {
		l := &lines[i]
		if _, err := tx.Exec(qctx, insertLineSQL,
			bookingID, l.TourID, l.TourDate, l.Adults, l.Children, l.TotalPax,
			l.AdultPrice, l.ChildrenPrice, l.Price, l.Deposit,
			l.RemainingBalance, l.ShipID, l.GuideID, l.Notes,
		); err != nil {
			return s.wrap(err, "replace line items")
		}
	}
	if err := tx.Commit(qctx); err != nil {
		return s.wrap(err, "replace line items")
	}
	return nil
}

// ListTours returns the active catalog.
func (s *Store) ListTours(ctx context.Context) ([]tours.Tour, error) {
	var list []tours.Tour
	err := s.retry(ctx, func(ctx context.Context) error {
		qctx, cancel := s.withTimeout(ctx)
		defer cancel()
		rows, err := s.Pool.Query(qctx, `
			SELECT id, name, description, base_price, active
			FROM tours WHERE active ORDER BY name`)
		if err != nil {
			return err
		}
		defer rows.Close()
		list = list[:0]
		for rows.Next() {
			var t tours.Tour
			if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.BasePrice, &t.Active); err != nil {
				return err
			}
			list = append(list, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, s.wrap(err, "list tours")
	}
	return list, nil
}

// GetTour returns one tour by id; unknown ids map to tours.ErrNotFound.
func (s *Store) GetTour(ctx context.Context, id uuid.UUID) (tours.Tour, error) {
	var t tours.Tour
	var notFound bool
	err := s.retry(ctx, func(ctx context.Context) error {
		qctx, cancel := s.withTimeout(ctx)
		defer cancel()
		err := s.Pool.QueryRow(qctx, `
			SELECT id, name, description, base_price, active
			FROM tours WHERE id = $1`,
			id,
		).Scan(&t.ID, &t.Name, &t.Description, &t.BasePrice, &t.Active)
		if errors.Is(err, pgx.ErrNoRows) {
			notFound = true
			return nil
		}
		return err
	})
	if err != nil {
		return tours.Tour{}, s.wrap(err, "load tour")
	}
	if notFound {
		return tours.Tour{}, tours.ErrNotFound
	}
	return t, nil
}

// InsertDomainEvent appends one event row for the aggregate.
func (s *Store) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.DomainEvent, error) {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ev := events.DomainEvent{Topic: topic, AggregateID: aggregateID, Payload: payload}
	err := s.Pool.QueryRow(qctx, `
		INSERT INTO domain_events (topic, aggregate_id, payload)
		VALUES ($1, $2, $3)
		RETURNING id, occurred_at`,
		topic, aggregateID, payload,
	).Scan(&ev.ID, &ev.OccurredAt)
	if err != nil {
		return events.DomainEvent{}, s.wrap(err, "insert domain event")
	}
	return ev, nil
}

// wrap classifies storage errors for the service layer.
func (s *Store) wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NewAppError(common.CodeNotFound, op+": not found", http.StatusNotFound, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.NewAppError(common.CodeTimeout, op+" timed out", http.StatusGatewayTimeout, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return common.NewAppError(common.CodeConstraint, op+": already exists", http.StatusConflict, err)
	}
	s.Logger.Error().Err(err).Str("op", op).Msg("storage operation failed")
	return common.NewAppError(common.CodeUnavailable, op+" failed", http.StatusServiceUnavailable, err)
}
