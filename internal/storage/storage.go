// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"coopgames/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	// UpsertGame inserts or updates a game keyed by its Steam id.
	UpsertGame(ctx context.Context, game *model.Game) error

	// SaveCountryData upserts prices and rewrites delistings for the given
	// games in one transaction. A game's previous delistings are cleared
	// before the new set is written.
	SaveCountryData(ctx context.Context, data map[string]*model.CountryData) error

	// QueryGames returns the filtered, scored, sorted, paginated view plus
	// the total count of matching records before pagination.
	QueryGames(ctx context.Context, criteria model.FilterCriteria, weights model.ScoringWeights, page model.Pagination) ([]model.Game, int, error)

	AllAppIDs(ctx context.Context) ([]string, error)
	CountGames(ctx context.Context) (int, error)

	// LastFullScrape returns nil before the first completed full crawl.
	LastFullScrape(ctx context.Context) (*time.Time, error)
	SetLastFullScrape(ctx context.Context, t time.Time) error

	Close() error
}
