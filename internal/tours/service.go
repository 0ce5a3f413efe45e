// Package tours exposes the read-only tour catalog consumed by bookings.
package tours

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-tour/internal/booking"
	"github.com/noah-isme/backend-tour/internal/cache"
	"github.com/noah-isme/backend-tour/internal/common"
	"github.com/noah-isme/backend-tour/internal/pricing"
)

// Tour is the public catalog payload.
type Tour struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	BasePrice   pricing.Money `json:"basePrice"`
	Active      bool          `json:"active"`
}

// Querier defines the storage queries used by the catalog service.
type Querier interface {
	ListTours(ctx context.Context) ([]Tour, error)
	GetTour(ctx context.Context, id uuid.UUID) (Tour, error)
}

// ErrNotFound is returned by queriers for unknown tour ids.
var ErrNotFound = errors.New("tours: not found")

// Service orchestrates catalog queries and caching.
type Service struct {
	Queries Querier
	Cache   *cache.Cache
}

const (
	listCacheKey      = "tours:list"
	detailCachePrefix = "tours:detail:"
)

// List returns all active tours, served from cache when possible.
func (s *Service) List(ctx context.Context) ([]Tour, error) {
	if s == nil || s.Queries == nil {
		return nil, errors.New("tours service not configured")
	}
	var cached []Tour
	if found, err := s.Cache.GetJSON(ctx, listCacheKey, &cached); err == nil && found {
		return cached, nil
	}
	list, err := s.Queries.ListTours(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.Cache.SetJSON(ctx, listCacheKey, list)
	return list, nil
}

// Get returns one tour by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Tour, error) {
	if s == nil || s.Queries == nil {
		return Tour{}, errors.New("tours service not configured")
	}
	key := detailCachePrefix + id.String()
	var cached Tour
	if found, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && found {
		return cached, nil
	}
	tour, err := s.Queries.GetTour(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Tour{}, common.NewAppError(common.CodeNotFound, "tour not found", http.StatusNotFound, err)
		}
		return Tour{}, err
	}
	_ = s.Cache.SetJSON(ctx, key, tour)
	return tour, nil
}

// Tour implements the booking.Catalog collaborator, used for the base-price
// fallback and notification payloads.
func (s *Service) Tour(ctx context.Context, id uuid.UUID) (booking.CatalogTour, error) {
	tour, err := s.Get(ctx, id)
	if err != nil {
		return booking.CatalogTour{}, err
	}
	parsed, err := uuid.Parse(tour.ID)
	if err != nil {
		return booking.CatalogTour{}, err
	}
	return booking.CatalogTour{ID: parsed, Name: tour.Name, BasePrice: tour.BasePrice}, nil
}
