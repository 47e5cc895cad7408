package catalog

import (
	"errors"
	"fmt"
	"sync"

	"courtbook/pkg/config"
	"courtbook/pkg/model"
)

var (
	ErrUnknownCourt = errors.New("unknown court")
	ErrUnknownSport = errors.New("unknown sport")
	ErrInvalidPrice = errors.New("price per hour must be positive")
)

// Catalog is the configured set of courts and sports. Courts are fixed for
// the life of the process; sport prices may be replaced, which only affects
// bookings created afterwards.
type Catalog struct {
	mu     sync.RWMutex
	courts []model.Court
	sports []model.Sport
}

func New(courts []model.Court, sports []model.Sport) (*Catalog, error) {
	if len(courts) == 0 {
		return nil, errors.New("catalog needs at least one court")
	}
	if len(sports) == 0 {
		return nil, errors.New("catalog needs at least one sport")
	}

	seen := make(map[string]bool)
	for _, c := range courts {
		if seen["court:"+c.ID] {
			return nil, fmt.Errorf("duplicate court id %q", c.ID)
		}
		seen["court:"+c.ID] = true
	}
	for _, s := range sports {
		if seen["sport:"+s.ID] {
			return nil, fmt.Errorf("duplicate sport id %q", s.ID)
		}
		if s.PricePerHour <= 0 {
			return nil, fmt.Errorf("sport %q: %w", s.ID, ErrInvalidPrice)
		}
		seen["sport:"+s.ID] = true
	}

	return &Catalog{
		courts: append([]model.Court(nil), courts...),
		sports: append([]model.Sport(nil), sports...),
	}, nil
}

func FromConfig(cfg *config.Config) (*Catalog, error) {
	return New(cfg.Courts, cfg.Sports)
}

func (c *Catalog) Courts() []model.Court {
	return append([]model.Court(nil), c.courts...)
}

func (c *Catalog) Sports() []model.Sport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Sport(nil), c.sports...)
}

func (c *Catalog) Court(id string) (model.Court, error) {
	for _, court := range c.courts {
		if court.ID == id {
			return court, nil
		}
	}
	return model.Court{}, fmt.Errorf("%w: %s", ErrUnknownCourt, id)
}

func (c *Catalog) Sport(id string) (model.Sport, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, sport := range c.sports {
		if sport.ID == id {
			return sport, nil
		}
	}
	return model.Sport{}, fmt.Errorf("%w: %s", ErrUnknownSport, id)
}

// SetSportPrice replaces the hourly price of a sport.
func (c *Catalog) SetSportPrice(id string, pricePerHour int64) (model.Sport, error) {
	if pricePerHour <= 0 {
		return model.Sport{}, ErrInvalidPrice
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.sports {
		if c.sports[i].ID == id {
			c.sports[i].PricePerHour = pricePerHour
			return c.sports[i], nil
		}
	}
	return model.Sport{}, fmt.Errorf("%w: %s", ErrUnknownSport, id)
}
