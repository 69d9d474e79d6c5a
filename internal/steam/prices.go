package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"coopgames/internal/model"
)

// PriceStore is the storage surface the price synchronizer needs.
type PriceStore interface {
	AllAppIDs(ctx context.Context) ([]string, error)
	SaveCountryData(ctx context.Context, data map[string]*model.CountryData) error
}

// Syncer sweeps per-country price and delisting data across the entire
// persisted catalog in fixed-size batches.
type Syncer struct {
	fetcher   Fetcher
	store     PriceStore
	countries []string
	batchSize int
	delay     time.Duration
	log       *slog.Logger

	detailsURL string
}

// NewSyncer creates a Syncer querying the given countries. batchSize bounds
// how many app ids go into one upstream request; delay separates consecutive
// upstream requests, with no trailing sleep once the sweep is done.
func NewSyncer(fetcher Fetcher, store PriceStore, countries []string, batchSize int, delay time.Duration, log *slog.Logger) *Syncer {
	return &Syncer{
		fetcher:    fetcher,
		store:      store,
		countries:  countries,
		batchSize:  batchSize,
		delay:      delay,
		log:        log,
		detailsURL: defaultDetailsURL,
	}
}

// Sync fetches price data for every stored game in every configured country.
// Results are committed per batch; a game's delisting set is rewritten from
// the current run, so the last sync wins.
func (s *Syncer) Sync(ctx context.Context, progress func(string)) error {
	ids, err := s.store.AllAppIDs(ctx)
	if err != nil {
		return fmt.Errorf("list app ids: %w", err)
	}

	s.log.Info("starting price sync", "games", len(ids), "countries", len(s.countries))
	for start := 0; start < len(ids); start += s.batchSize {
		progress(fmt.Sprintf("Getting prices (%d/%d)", start, len(ids)))

		end := min(start+s.batchSize, len(ids))
		batch := ids[start:end]

		data, err := s.syncBatch(ctx, batch)
		if err != nil {
			return err
		}
		if err := s.store.SaveCountryData(ctx, data); err != nil {
			return fmt.Errorf("save country data: %w", err)
		}

		if end < len(ids) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}
	return nil
}

type priceEntry struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type priceData struct {
	PriceOverview *struct {
		Initial int64 `json:"initial"`
		Final   int64 `json:"final"`
	} `json:"price_overview"`
}

func (s *Syncer) syncBatch(ctx context.Context, batch []string) (map[string]*model.CountryData, error) {
	data := make(map[string]*model.CountryData, len(batch))
	for _, id := range batch {
		data[id] = model.NewCountryData()
	}

	for i, country := range s.countries {
		params := url.Values{
			"appids":  {strings.Join(batch, ",")},
			"cc":      {country},
			"filters": {"price_overview"},
		}
		body, err := s.fetcher.Get(ctx, s.detailsURL, params)
		if err != nil {
			return nil, fmt.Errorf("price batch for %s: %w", country, err)
		}

		var envelope map[string]priceEntry
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("parse price batch for %s: %w", country, err)
		}

		for _, id := range batch {
			entry, ok := envelope[id]
			if !ok || !entry.Success {
				// No data upstream is treated as unavailable in this
				// country, not as a transient gap.
				data[id].Delisted[country] = true
				continue
			}
			var pd priceData
			if err := json.Unmarshal(entry.Data, &pd); err != nil || pd.PriceOverview == nil {
				// Listed but not priced: free-to-play or unpriced title.
				continue
			}
			data[id].Prices[country] = model.Price{
				Initial: pd.PriceOverview.Initial,
				Final:   pd.PriceOverview.Final,
			}
		}

		if i < len(s.countries)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}
	return data, nil
}
