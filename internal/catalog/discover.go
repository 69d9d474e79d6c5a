// Package catalog discovers candidate games from the Co-Optimus catalog and
// reconciles their store identifiers.
package catalog

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"coopgames/internal/model"
)

const (
	// startYear is the first year the upstream catalog has entries for.
	startYear = 1988
	// pageCeiling is the upstream page size. A year returning exactly this
	// many entries was truncated, not complete.
	pageCeiling = 40

	steamStoreURL = "https://store.steampowered.com/app/"
)

// Status tracks a candidate through the scrape pipeline. It is local to a
// single run; only the persisted Removed flag on the game survives it.
type Status string

// Pipeline-local candidate statuses.
const (
	StatusPending  Status = "pending"
	StatusRemoved  Status = "removed"
	StatusEnriched Status = "enriched"
)

// Candidate is a catalog entry flowing through the scrape pipeline.
type Candidate struct {
	Game   model.Game
	Status Status
}

// Fetcher performs retrying HTTP GETs.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
}

// Discoverer walks the upstream catalog and yields candidate entries.
type Discoverer struct {
	fetcher Fetcher
	baseURL string
	log     *slog.Logger
	now     func() time.Time
}

// NewDiscoverer creates a Discoverer fetching from baseURL.
func NewDiscoverer(fetcher Fetcher, baseURL string, log *slog.Logger) *Discoverer {
	return &Discoverer{
		fetcher: fetcher,
		baseURL: baseURL,
		log:     log,
		now:     time.Now,
	}
}

// DiscoverAll crawls the whole catalog year by year. A year that hits the
// page ceiling is re-fetched month by month and the concatenation replaces
// the truncated yearly page.
func (d *Discoverer) DiscoverAll(ctx context.Context) ([]Candidate, error) {
	var all []Candidate
	endYear := d.now().Year()
	for year := startYear; year <= endYear; year++ {
		yearly, err := d.fetchYear(ctx, year)
		if err != nil {
			return nil, err
		}
		if len(yearly) == pageCeiling {
			d.log.Info("year page truncated, re-fetching by month", "year", year)
			yearly, err = d.fetchYearByMonth(ctx, year)
			if err != nil {
				return nil, err
			}
		}
		d.log.Debug("discovered year", "year", year, "count", len(yearly))
		all = append(all, yearly...)
	}
	return all, nil
}

// DiscoverRecent re-fetches only the current year, month by month. It is the
// cheap approximation of "changed since the last full crawl".
func (d *Discoverer) DiscoverRecent(ctx context.Context) ([]Candidate, error) {
	return d.fetchYearByMonth(ctx, d.now().Year())
}

func (d *Discoverer) fetchYear(ctx context.Context, year int) ([]Candidate, error) {
	return d.fetchPage(ctx, url.Values{"releaseyear": {strconv.Itoa(year)}})
}

func (d *Discoverer) fetchYearByMonth(ctx context.Context, year int) ([]Candidate, error) {
	var yearly []Candidate
	for month := 1; month <= 12; month++ {
		monthly, err := d.fetchPage(ctx, url.Values{
			"releaseyear":  {strconv.Itoa(year)},
			"releasemonth": {strconv.Itoa(month)},
		})
		if err != nil {
			return nil, err
		}
		yearly = append(yearly, monthly...)
	}
	return yearly, nil
}

func (d *Discoverer) fetchPage(ctx context.Context, params url.Values) ([]Candidate, error) {
	params.Set("search", "true")
	params.Set("systemName", "pc")

	body, err := d.fetcher.Get(ctx, d.baseURL, params)
	if err != nil {
		return nil, fmt.Errorf("catalog page: %w", err)
	}

	var doc gamesDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog page: %w", err)
	}

	var cands []Candidate
	for _, entry := range doc.Games {
		// Entries without a Steam id are not tracked on the storefront.
		if entry.Steam == "" {
			continue
		}
		game, err := parseEntry(entry)
		if err != nil {
			d.log.Warn("skipping unparsable catalog entry", "title", entry.Title, "error", err)
			continue
		}
		cands = append(cands, Candidate{Game: game, Status: StatusPending})
	}
	return cands, nil
}

type gamesDoc struct {
	XMLName xml.Name    `xml:"games"`
	Games   []gameEntry `xml:"game"`
}

type gameEntry struct {
	ID     string `xml:"id"`
	Title  string `xml:"title"`
	Steam  string `xml:"steam"`
	Local  string `xml:"local"`
	LAN    string `xml:"lan"`
	Online string `xml:"online"`
	URL    string `xml:"url"`
}

func parseEntry(entry gameEntry) (model.Game, error) {
	couch, err := parsePlayers(entry.Local)
	if err != nil {
		return model.Game{}, fmt.Errorf("couch players: %w", err)
	}
	lan, err := parsePlayers(entry.LAN)
	if err != nil {
		return model.Game{}, fmt.Errorf("lan players: %w", err)
	}
	online, err := parsePlayers(entry.Online)
	if err != nil {
		return model.Game{}, fmt.Errorf("online players: %w", err)
	}
	return model.Game{
		CoopID:        entry.ID,
		SteamID:       entry.Steam,
		Title:         entry.Title,
		CouchPlayers:  couch,
		LANPlayers:    lan,
		OnlinePlayers: online,
		CooptimusURL:  entry.URL,
		SteamURL:      steamStoreURL + entry.Steam,
		ReleaseStatus: model.StatusUnknown,
	}, nil
}

func parsePlayers(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
