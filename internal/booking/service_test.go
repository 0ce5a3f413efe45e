package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-tour/internal/common"
	"github.com/noah-isme/backend-tour/internal/events"
	"github.com/noah-isme/backend-tour/internal/pricing"
	"github.com/noah-isme/backend-tour/internal/refgen"
)

type fakeStore struct {
	customers map[string]uuid.UUID

	bookings map[uuid.UUID]*Booking
	lines    map[uuid.UUID][]LineItem
	refs     map[string]bool

	upsertErr       error
	insertBookErr   error
	failLineIndex   int
	lineInsertCalls int

	updatedCustomerID uuid.UUID
	replacedLines     []LineItem
	replaceCalls      int
	deleteCalls       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers:     map[string]uuid.UUID{},
		bookings:      map[uuid.UUID]*Booking{},
		lines:         map[uuid.UUID][]LineItem{},
		refs:          map[string]bool{},
		failLineIndex: -1,
	}
}

func (f *fakeStore) UpsertCustomer(_ context.Context, email, _, _ string) (uuid.UUID, error) {
	if f.upsertErr != nil {
		return uuid.Nil, f.upsertErr
	}
	id, ok := f.customers[email]
	if !ok {
		id = uuid.New()
		f.customers[email] = id
	}
	return id, nil
}

func (f *fakeStore) UpdateCustomer(_ context.Context, id uuid.UUID, _, _ string) error {
	f.updatedCustomerID = id
	return nil
}

func (f *fakeStore) InsertBooking(_ context.Context, b *Booking) (uuid.UUID, error) {
	if f.insertBookErr != nil {
		return uuid.Nil, f.insertBookErr
	}
	id := uuid.New()
	saved := *b
	saved.ID = id
	f.bookings[id] = &saved
	f.refs[b.Reference] = true
	return id, nil
}

func (f *fakeStore) UpdateBooking(_ context.Context, b *Booking) error {
	saved := *b
	f.bookings[b.ID] = &saved
	return nil
}

func (f *fakeStore) GetBooking(_ context.Context, id uuid.UUID) (*Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, common.NewAppError(common.CodeNotFound, "booking not found", 404, nil)
	}
	out := *b
	out.Lines = append([]LineItem(nil), f.lines[id]...)
	return &out, nil
}

func (f *fakeStore) DeleteBooking(_ context.Context, id uuid.UUID) error {
	f.deleteCalls++
	delete(f.bookings, id)
	delete(f.lines, id)
	return nil
}

func (f *fakeStore) ReferenceExists(_ context.Context, reference string) (bool, error) {
	return f.refs[reference], nil
}

func (f *fakeStore) InsertLineItem(_ context.Context, bookingID uuid.UUID, line *LineItem) (uuid.UUID, error) {
	idx := f.lineInsertCalls
	f.lineInsertCalls++
	if idx == f.failLineIndex {
		return uuid.Nil, errors.New("insert failed")
	}
	id := uuid.New()
	saved := *line
	saved.ID = id
	f.lines[bookingID] = append(f.lines[bookingID], saved)
	return id, nil
}

func (f *fakeStore) ReplaceLineItems(_ context.Context, bookingID uuid.UUID, lines []LineItem) error {
	f.replaceCalls++
	f.replacedLines = append([]LineItem(nil), lines...)
	f.lines[bookingID] = append([]LineItem(nil), lines...)
	return nil
}

type fakeCatalog struct {
	tours map[uuid.UUID]CatalogTour
}

func (f *fakeCatalog) Tour(_ context.Context, id uuid.UUID) (CatalogTour, error) {
	t, ok := f.tours[id]
	if !ok {
		return CatalogTour{}, errors.New("tour not found")
	}
	return t, nil
}

type fakeEventStore struct {
	inserted []events.DomainEvent
	err      error
}

func (f *fakeEventStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.DomainEvent, error) {
	if f.err != nil {
		return events.DomainEvent{}, f.err
	}
	ev := events.DomainEvent{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload, OccurredAt: time.Now()}
	f.inserted = append(f.inserted, ev)
	return ev, nil
}

type recordingInvalidator struct {
	scopes []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, scope string) {
	r.scopes = append(r.scopes, scope)
}

func newTestService(store *fakeStore, catalog *fakeCatalog) (*Service, *fakeEventStore, *recordingInvalidator) {
	evStore := &fakeEventStore{}
	inv := &recordingInvalidator{}
	n := -1
	svc := &Service{
		Store:   store,
		Catalog: catalog,
		Refs: refgen.Generator{
			Prefix: "TOUR",
			Now:    func() time.Time { return time.Date(2025, 8, 4, 10, 0, 0, 0, time.UTC) },
			Intn:   func(int) int { n++; return n },
		},
		Events: &events.Bus{Store: evStore},
		Cache:  inv,
		Logger: zerolog.Nop(),
	}
	return svc, evStore, inv
}

func twoLineDraft(tour1, tour2 uuid.UUID) *Draft {
	return &Draft{
		Customer:   CustomerDraft{Name: "Ana Martín", Email: "ana@example.com", Phone: "+34600111222"},
		Status:     "confirmed",
		Commission: 15,
		Lines: []LineItemDraft{
			{
				TourID:        tour1.String(),
				TourDate:      "2025-08-10",
				Adults:        2,
				Children:      1,
				AdultPrice:    50,
				ChildrenPrice: 25,
				Deposit:       30,
			},
			{
				TourID:   tour2.String(),
				TourDate: "2025-08-11",
			},
		},
	}
}

func TestCreateComputesAggregate(t *testing.T) {
	tour1, tour2 := uuid.New(), uuid.New()
	store := newFakeStore()
	catalog := &fakeCatalog{tours: map[uuid.UUID]CatalogTour{
		tour1: {ID: tour1, Name: "Caldera Classic", BasePrice: 120},
		tour2: {ID: tour2, Name: "Sunset Cruise", BasePrice: 80},
	}}
	svc, evStore, inv := newTestService(store, catalog)

	res, err := svc.Create(context.Background(), twoLineDraft(tour1, tour2))
	require.NoError(t, err)
	require.False(t, res.Report.Partial())
	require.Equal(t, 2, res.Report.Persisted)

	b := store.bookings[res.ID]
	require.NotNil(t, b)
	// line 1: 2*50 + 1*25 = 125; line 2 falls back to the catalog price 80.
	require.Equal(t, pricing.Money(205), b.TotalPayment)
	// the primary deposit is replicated, not divided.
	require.Equal(t, pricing.Money(60), b.Deposit)
	// (95 + 50) - 15 commission, subtracted once at booking level.
	require.Equal(t, pricing.Money(130), b.RemainingBalance)
	require.Equal(t, pricing.Money(190), b.TotalNet)
	require.Equal(t, StatusConfirmed, b.Status)

	lines := store.lines[res.ID]
	require.Len(t, lines, 2)
	// synchronization mirrors passenger mix and deposit onto the second line.
	require.Equal(t, 2, lines[1].Adults)
	require.Equal(t, 1, lines[1].Children)
	require.Equal(t, pricing.Money(30), lines[1].Deposit)
	require.Equal(t, pricing.Money(80), lines[1].Price)
	// per-line remaining carries the allocated commission share: 9 and 6.
	require.Equal(t, pricing.Money(86), lines[0].RemainingBalance)
	require.Equal(t, pricing.Money(44), lines[1].RemainingBalance)

	require.Len(t, evStore.inserted, 1)
	require.Equal(t, events.TopicBookingCreated, evStore.inserted[0].Topic)
	require.Contains(t, inv.scopes, CacheScope)
}

func TestCreateValidatesBeforeAnyIO(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store, &fakeCatalog{})

	_, err := svc.Create(context.Background(), &Draft{
		Customer: CustomerDraft{Name: "Ana", Email: "ana@example.com"},
	})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeValidation, appErr.Code)
	require.Empty(t, store.customers)
	require.Empty(t, store.bookings)
}

func TestCreateStopsAtFirstLineFailure(t *testing.T) {
	tour := uuid.New()
	store := newFakeStore()
	store.failLineIndex = 1
	catalog := &fakeCatalog{tours: map[uuid.UUID]CatalogTour{tour: {ID: tour, Name: "Caldera Classic", BasePrice: 100}}}
	svc, _, _ := newTestService(store, catalog)

	draft := &Draft{
		Customer:   CustomerDraft{Name: "Ana", Email: "ana@example.com"},
		Commission: 0,
		Lines: []LineItemDraft{
			{TourID: tour.String(), TourDate: "2025-08-10", Adults: 1, AdultPrice: 100, Deposit: 20},
			{TourID: tour.String(), TourDate: "2025-08-11"},
			{TourID: tour.String(), TourDate: "2025-08-12"},
		},
	}
	res, err := svc.Create(context.Background(), draft)
	require.NoError(t, err)
	require.True(t, res.Report.Partial())
	require.Equal(t, 3, res.Report.Requested)
	require.Equal(t, 1, res.Report.Persisted)
	require.Len(t, res.Report.Failures, 1)
	require.Equal(t, 1, res.Report.Failures[0].Index)
	// the loop stops at the first failure; the third line is never attempted.
	require.Equal(t, 2, store.lineInsertCalls)
	require.Len(t, store.lines[res.ID], 1)
}

func TestCreateRegeneratesReferenceOnCollision(t *testing.T) {
	tour := uuid.New()
	store := newFakeStore()
	catalog := &fakeCatalog{tours: map[uuid.UUID]CatalogTour{tour: {ID: tour, BasePrice: 100}}}
	svc, _, _ := newTestService(store, catalog)

	// the deterministic Intn sequence yields -0000 first; mark it taken.
	store.refs["TOUR-250804-0000"] = true

	draft := &Draft{
		Customer: CustomerDraft{Name: "Ana", Email: "ana@example.com"},
		Lines:    []LineItemDraft{{TourID: tour.String(), TourDate: "2025-08-10", Adults: 1, AdultPrice: 100}},
	}
	res, err := svc.Create(context.Background(), draft)
	require.NoError(t, err)
	require.Equal(t, "TOUR-250804-0001", res.Reference)
}

func TestCreateCustomerFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("connection refused")
	svc, _, _ := newTestService(store, &fakeCatalog{})

	tour := uuid.New()
	draft := &Draft{
		Customer: CustomerDraft{Name: "Ana", Email: "ana@example.com"},
		Lines:    []LineItemDraft{{TourID: tour.String(), TourDate: "2025-08-10", Adults: 1, AdultPrice: 100}},
	}
	_, err := svc.Create(context.Background(), draft)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeUnavailable, appErr.Code)
	require.Empty(t, store.bookings)
}

func TestCreateFallbackLookupFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store, &fakeCatalog{tours: map[uuid.UUID]CatalogTour{}})

	tour := uuid.New()
	draft := &Draft{
		Customer: CustomerDraft{Name: "Ana", Email: "ana@example.com"},
		Lines:    []LineItemDraft{{TourID: tour.String(), TourDate: "2025-08-10", Adults: 2}},
	}
	_, err := svc.Create(context.Background(), draft)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeUnavailable, appErr.Code)
	require.Empty(t, store.bookings)
}

func TestUpdateReplacesAllLineItems(t *testing.T) {
	tour1, tour2 := uuid.New(), uuid.New()
	store := newFakeStore()
	catalog := &fakeCatalog{tours: map[uuid.UUID]CatalogTour{
		tour1: {ID: tour1, Name: "Caldera Classic", BasePrice: 120},
		tour2: {ID: tour2, Name: "Sunset Cruise", BasePrice: 80},
	}}
	svc, evStore, _ := newTestService(store, catalog)

	res, err := svc.Create(context.Background(), twoLineDraft(tour1, tour2))
	require.NoError(t, err)
	require.Len(t, store.lines[res.ID], 2)
	existing := store.bookings[res.ID]

	update := &Draft{
		Customer:   CustomerDraft{Name: "Ana Martín", Email: "ana@example.com"},
		Status:     "paid",
		Commission: 10,
		Lines: []LineItemDraft{
			{TourID: tour1.String(), TourDate: "2025-08-12", Adults: 3, AdultPrice: 40, Deposit: 25},
		},
	}
	require.NoError(t, svc.Update(context.Background(), res.ID, update))

	require.Equal(t, 1, store.replaceCalls)
	require.Len(t, store.replacedLines, 1)
	require.Equal(t, existing.CustomerID, store.updatedCustomerID)

	b := store.bookings[res.ID]
	require.Equal(t, res.Reference, b.Reference)
	require.Equal(t, StatusPaid, b.Status)
	require.Equal(t, pricing.Money(120), b.TotalPayment)
	require.Equal(t, pricing.Money(25), b.Deposit)
	require.Equal(t, pricing.Money(85), b.RemainingBalance)
	require.Equal(t, pricing.Money(110), b.TotalNet)
	// single line absorbs the whole commission: 95 - 10.
	require.Equal(t, pricing.Money(85), store.replacedLines[0].RemainingBalance)

	require.Equal(t, events.TopicBookingUpdated, evStore.inserted[len(evStore.inserted)-1].Topic)
}

func TestUpdateUnknownBooking(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store, &fakeCatalog{})

	tour := uuid.New()
	draft := &Draft{
		Customer: CustomerDraft{Name: "Ana", Email: "ana@example.com"},
		Lines:    []LineItemDraft{{TourID: tour.String(), TourDate: "2025-08-10", Adults: 1, AdultPrice: 50}},
	}
	err := svc.Update(context.Background(), uuid.New(), draft)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeNotFound, appErr.Code)
	require.Equal(t, 0, store.replaceCalls)
}

func TestCreateSideEffectFailuresAreSwallowed(t *testing.T) {
	tour := uuid.New()
	store := newFakeStore()
	catalog := &fakeCatalog{tours: map[uuid.UUID]CatalogTour{tour: {ID: tour, BasePrice: 100}}}
	svc, evStore, _ := newTestService(store, catalog)
	evStore.err = errors.New("events table unavailable")

	draft := &Draft{
		Customer: CustomerDraft{Name: "Ana", Email: "ana@example.com"},
		Lines:    []LineItemDraft{{TourID: tour.String(), TourDate: "2025-08-10", Adults: 1, AdultPrice: 100}},
	}
	res, err := svc.Create(context.Background(), draft)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.ID)
}

func TestDeleteRemovesBookingAndInvalidates(t *testing.T) {
	tour := uuid.New()
	store := newFakeStore()
	catalog := &fakeCatalog{tours: map[uuid.UUID]CatalogTour{tour: {ID: tour, BasePrice: 100}}}
	svc, _, inv := newTestService(store, catalog)

	draft := &Draft{
		Customer: CustomerDraft{Name: "Ana", Email: "ana@example.com"},
		Lines:    []LineItemDraft{{TourID: tour.String(), TourDate: "2025-08-10", Adults: 1, AdultPrice: 100}},
	}
	res, err := svc.Create(context.Background(), draft)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), res.ID))
	require.Equal(t, 1, store.deleteCalls)
	require.Empty(t, store.bookings)

	err = svc.Delete(context.Background(), res.ID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeNotFound, appErr.Code)

	require.GreaterOrEqual(t, len(inv.scopes), 2)
}
