package model

import (
	"fmt"
	"time"
)

// PlayerMode selects which co-op mode a player-count filter applies to.
type PlayerMode string

// Supported player modes.
const (
	ModeCouch  PlayerMode = "couch"
	ModeLAN    PlayerMode = "lan"
	ModeOnline PlayerMode = "online"
)

// FilterCriteria narrows a catalog query. Zero FromDate/ToDate pointers mean
// the corresponding bound is not applied; games without a release date are
// excluded whenever either bound is set.
type FilterCriteria struct {
	CountryCode     string
	MinPlayers      int
	MaxPlayers      int
	PlayerMode      PlayerMode
	FreeGames       bool
	UnreleasedGames bool
	FromDate        *time.Time
	ToDate          *time.Time
	MinReviews      int
	Tags            []string
}

// Validate rejects criteria that must never reach the store.
func (c FilterCriteria) Validate() error {
	if c.MinPlayers < 1 || c.MaxPlayers < 1 {
		return fmt.Errorf("player counts must be greater than 0")
	}
	if c.MinPlayers > c.MaxPlayers {
		return fmt.Errorf("min players %d exceeds max players %d", c.MinPlayers, c.MaxPlayers)
	}
	switch c.PlayerMode {
	case ModeCouch, ModeLAN, ModeOnline:
	default:
		return fmt.Errorf("unknown player mode %q", c.PlayerMode)
	}
	if c.FromDate != nil && c.ToDate != nil && c.FromDate.After(*c.ToDate) {
		return fmt.Errorf("from date %s is after to date %s",
			c.FromDate.Format("2006-01-02"), c.ToDate.Format("2006-01-02"))
	}
	if len(c.CountryCode) != 2 {
		return fmt.Errorf("country code %q is not a 2-letter code", c.CountryCode)
	}
	if c.MinReviews < 0 {
		return fmt.Errorf("min reviews must not be negative")
	}
	return nil
}

// ScoringWeights tunes the composite score. HighPrice is the price, in whole
// currency units, that counts as fully expensive.
type ScoringWeights struct {
	Rating    float64
	Price     float64
	Sale      float64
	Reviews   float64
	HighPrice float64
}

// Validate rejects weights the score formula cannot evaluate.
func (w ScoringWeights) Validate() error {
	if w.HighPrice <= 0 {
		return fmt.Errorf("high price must be greater than 0")
	}
	return nil
}

// Pagination is an offset/limit window over an ordered result set.
type Pagination struct {
	Offset int
	Limit  int
}

// Validate rejects negative offsets and non-positive limits.
func (p Pagination) Validate() error {
	if p.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	if p.Limit < 1 {
		return fmt.Errorf("limit must be greater than 0")
	}
	return nil
}
