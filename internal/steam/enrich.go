// Package steam enriches catalog candidates with Steam store metadata and
// tracks per-country pricing and availability.
package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"coopgames/internal/catalog"
	"coopgames/internal/model"
)

// Default upstream endpoints. Overridable for tests.
const (
	defaultDetailsURL = "https://store.steampowered.com/api/appdetails"
	defaultReviewsURL = "https://store.steampowered.com/appreviews/"
	defaultTagsURL    = "https://steamspy.com/api.php"
	releaseDateLayout = "2 Jan, 2006"
)

// Fetcher performs retrying HTTP GETs.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
}

// GameWriter persists enriched games one at a time, so a pipeline failure
// cannot lose entries enriched before it.
type GameWriter interface {
	UpsertGame(ctx context.Context, game *model.Game) error
}

// Enricher fills in store metadata, review aggregates, and tags for each
// candidate, sequentially to respect upstream rate limits.
type Enricher struct {
	fetcher Fetcher
	store   GameWriter
	delay   time.Duration
	log     *slog.Logger

	detailsURL string
	reviewsURL string
	tagsURL    string
}

// NewEnricher creates an Enricher that sleeps delay between candidates.
// The delay dominates total pipeline wall-clock time.
func NewEnricher(fetcher Fetcher, store GameWriter, delay time.Duration, log *slog.Logger) *Enricher {
	return &Enricher{
		fetcher:    fetcher,
		store:      store,
		delay:      delay,
		log:        log,
		detailsURL: defaultDetailsURL,
		reviewsURL: defaultReviewsURL,
		tagsURL:    defaultTagsURL,
	}
}

// Enrich processes each candidate in order and persists it immediately
// after. Candidates whose store detail cannot be fetched are persisted with
// the removed flag set and no further enrichment. Returns how many
// candidates were enriched and how many ended up removed.
func (e *Enricher) Enrich(ctx context.Context, cands []catalog.Candidate, progress func(string)) (enriched, removed int, err error) {
	total := len(cands)
	for i := range cands {
		if err := ctx.Err(); err != nil {
			return enriched, removed, err
		}
		progress(fmt.Sprintf("Getting Steam data (%d/%d, %d removed)", i+1, total, removed))

		c := &cands[i]
		e.enrichOne(ctx, c)
		if c.Status == catalog.StatusRemoved {
			removed++
		} else {
			enriched++
		}

		now := time.Now().UTC()
		c.Game.UpdatedAt = now
		if err := e.store.UpsertGame(ctx, &c.Game); err != nil {
			return enriched, removed, fmt.Errorf("persist %s: %w", c.Game.SteamID, err)
		}

		if i < total-1 {
			select {
			case <-ctx.Done():
				return enriched, removed, ctx.Err()
			case <-time.After(e.delay):
			}
		}
	}
	return enriched, removed, nil
}

func (e *Enricher) enrichOne(ctx context.Context, c *catalog.Candidate) {
	game := &c.Game
	if err := e.addStoreData(ctx, game); err != nil {
		e.log.Info("no store data, marking removed", "steam_id", game.SteamID, "title", game.Title, "error", err)
		c.Status = catalog.StatusRemoved
		game.Removed = true
		return
	}
	if err := e.addRating(ctx, game); err != nil {
		e.log.Warn("review fetch failed", "steam_id", game.SteamID, "error", err)
	}
	if err := e.addTags(ctx, game); err != nil {
		e.log.Warn("tag fetch failed", "steam_id", game.SteamID, "error", err)
	}
	c.Status = catalog.StatusEnriched
	game.Removed = false
}

type detailEntry struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type detailData struct {
	HeaderImage      string `json:"header_image"`
	ShortDescription string `json:"short_description"`
	ReleaseDate      struct {
		ComingSoon bool   `json:"coming_soon"`
		Date       string `json:"date"`
	} `json:"release_date"`
}

func (e *Enricher) addStoreData(ctx context.Context, game *model.Game) error {
	body, err := e.fetcher.Get(ctx, e.detailsURL, url.Values{"appids": {game.SteamID}})
	if err != nil {
		return err
	}

	var envelope map[string]detailEntry
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("parse detail response: %w", err)
	}
	entry, ok := envelope[game.SteamID]
	if !ok || !entry.Success {
		return fmt.Errorf("no detail data for app %s", game.SteamID)
	}
	var data detailData
	if err := json.Unmarshal(entry.Data, &data); err != nil {
		return fmt.Errorf("parse detail data: %w", err)
	}

	game.HeaderImage = data.HeaderImage
	game.ShortDescription = data.ShortDescription

	// Unparsable release info means "not released yet", never a pipeline
	// failure.
	if data.ReleaseDate.ComingSoon {
		game.ReleaseStatus = model.StatusUnreleased
		game.ReleaseDate = nil
		return nil
	}
	released, err := time.Parse(releaseDateLayout, data.ReleaseDate.Date)
	if err != nil {
		game.ReleaseStatus = model.StatusUnreleased
		game.ReleaseDate = nil
		return nil
	}
	game.ReleaseStatus = model.StatusReleased
	game.ReleaseDate = &released
	return nil
}

type reviewsResponse struct {
	QuerySummary struct {
		TotalPositive int `json:"total_positive"`
		TotalReviews  int `json:"total_reviews"`
	} `json:"query_summary"`
}

func (e *Enricher) addRating(ctx context.Context, game *model.Game) error {
	params := url.Values{
		"json":          {"1"},
		"num_per_page":  {"1"},
		"language":      {"all"},
		"purchase_type": {"all"},
	}
	body, err := e.fetcher.Get(ctx, e.reviewsURL+game.SteamID, params)
	if err != nil {
		return err
	}

	var resp reviewsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parse reviews response: %w", err)
	}

	game.ReviewCount = resp.QuerySummary.TotalReviews
	if game.ReviewCount == 0 {
		game.Rating = 0
		return nil
	}
	game.Rating = float64(resp.QuerySummary.TotalPositive) / float64(game.ReviewCount)
	return nil
}

type tagsResponse struct {
	Tags json.RawMessage `json:"tags"`
}

func (e *Enricher) addTags(ctx context.Context, game *model.Game) error {
	params := url.Values{"request": {"appdetails"}, "appid": {game.SteamID}}
	body, err := e.fetcher.Get(ctx, e.tagsURL, params)
	if err != nil {
		return err
	}

	var resp tagsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parse tags response: %w", err)
	}

	// SteamSpy returns an empty array instead of an object when an app has
	// no tags; either way the game keeps an empty tag set.
	var tags map[string]int
	if err := json.Unmarshal(resp.Tags, &tags); err != nil {
		return nil
	}
	game.Tags = make([]string, 0, len(tags))
	for tag := range tags {
		game.Tags = append(game.Tags, tag)
	}
	sort.Strings(game.Tags)
	return nil
}
