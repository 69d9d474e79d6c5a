package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"coopgames/internal/catalog"
	"coopgames/internal/model"
	"coopgames/internal/steam"
	"coopgames/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pipelineFetcher serves all upstream endpoints of one pipeline run: the
// catalog XML feed, Steam app details and reviews, SteamSpy tags, and the
// batched price endpoint.
type pipelineFetcher struct {
	catalogXML      map[string]string
	catalogRequests []string
	delisted        map[string]bool
}

func (f *pipelineFetcher) Get(_ context.Context, rawURL string, params url.Values) ([]byte, error) {
	switch {
	case strings.Contains(rawURL, "games.php"):
		key := params.Get("releaseyear")
		if month := params.Get("releasemonth"); month != "" {
			key += "-" + month
		}
		f.catalogRequests = append(f.catalogRequests, key)
		body, ok := f.catalogXML[key]
		if !ok {
			body = "<games></games>"
		}
		return []byte(body), nil

	case params.Get("filters") == "price_overview":
		var parts []string
		for _, id := range strings.Split(params.Get("appids"), ",") {
			if f.delisted[id] {
				parts = append(parts, fmt.Sprintf(`"%s": {"success": false}`, id))
				continue
			}
			parts = append(parts, fmt.Sprintf(
				`"%s": {"success": true, "data": {"price_overview": {"initial": 1999, "final": 999}}}`, id))
		}
		return []byte("{" + strings.Join(parts, ",") + "}"), nil

	case strings.Contains(rawURL, "appdetails"):
		id := params.Get("appids")
		return []byte(fmt.Sprintf(`{"%s": {"success": true, "data": {
			"header_image": "https://cdn.test/%s.jpg",
			"short_description": "A co-op game.",
			"release_date": {"coming_soon": false, "date": "12 Sep, 2011"}
		}}}`, id, id)), nil

	case strings.Contains(rawURL, "appreviews"):
		return []byte(`{"query_summary": {"total_positive": 90, "total_reviews": 100}}`), nil

	case strings.Contains(rawURL, "api.php"):
		return []byte(`{"tags": {"Co-op": 50, "Action": 10}}`), nil
	}
	return nil, fmt.Errorf("unexpected request: %s", rawURL)
}

func catalogEntry(coopID, steamID, title string) string {
	return fmt.Sprintf(`<game>
		<id>%s</id>
		<title>%s</title>
		<steam>%s</steam>
		<local>4</local>
		<lan></lan>
		<online>8</online>
		<url>https://www.co-optimus.com/game/%s.html</url>
	</game>`, coopID, title, steamID, coopID)
}

func newPipeline(t *testing.T, fetcher *pipelineFetcher) (*Scraper, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := testLogger()
	rec, err := catalog.LoadReconciler([]byte("remap:\n  \"111\": \"550\"\nignore: []\n"), log)
	if err != nil {
		t.Fatalf("load reconciler: %v", err)
	}
	disc := catalog.NewDiscoverer(fetcher, "https://api.co-optimus.com/games.php", log)
	enricher := steam.NewEnricher(fetcher, store, 0, log)
	syncer := steam.NewSyncer(fetcher, store, []string{"SE"}, 200, 0, log)
	return New(disc, rec, enricher, syncer, store, log), store
}

func defaultQuery() (model.FilterCriteria, model.ScoringWeights, model.Pagination) {
	criteria := model.FilterCriteria{
		CountryCode:     "SE",
		MinPlayers:      1,
		MaxPlayers:      100,
		PlayerMode:      model.ModeOnline,
		FreeGames:       true,
		UnreleasedGames: true,
	}
	weights := model.ScoringWeights{Rating: 0.7, Price: 0.3, HighPrice: 20}
	return criteria, weights, model.Pagination{Offset: 0, Limit: 40}
}

func TestRunFullPipeline(t *testing.T) {
	ctx := context.Background()
	fetcher := &pipelineFetcher{
		catalogXML: map[string]string{
			"2011": "<games>" +
				catalogEntry("1", "440", "Lane Raiders") +
				catalogEntry("2", "111", "Stale Listing") +
				"</games>",
		},
		delisted: map[string]bool{"550": true},
	}
	scr, store := newPipeline(t, fetcher)

	var phases []string
	if err := scr.Run(ctx, func(p string) { phases = append(phases, p) }); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// First run has no recorded crawl, so every year gets a yearly page.
	wantRequests := time.Now().Year() - 1988 + 1
	if len(fetcher.catalogRequests) != wantRequests {
		t.Errorf("catalog requests = %d, want %d", len(fetcher.catalogRequests), wantRequests)
	}
	if fetcher.catalogRequests[0] != "1988" {
		t.Errorf("first catalog request = %q, want 1988", fetcher.catalogRequests[0])
	}

	count, err := store.CountGames(ctx)
	if err != nil {
		t.Fatalf("CountGames() error = %v", err)
	}
	if count != 2 {
		t.Errorf("stored games = %d, want 2", count)
	}

	criteria, weights, page := defaultQuery()
	games, total, err := store.QueryGames(ctx, criteria, weights, page)
	if err != nil {
		t.Fatalf("QueryGames() error = %v", err)
	}
	// The remapped entry (111 -> 550) is delisted in SE, leaving one result.
	if total != 1 || len(games) != 1 {
		t.Fatalf("query returned %d games (total %d), want 1", len(games), total)
	}
	g := games[0]
	if g.SteamID != "440" || g.Title != "Lane Raiders" {
		t.Errorf("unexpected game: %s (%s)", g.Title, g.SteamID)
	}
	if g.Rating != 0.9 || g.ReviewCount != 100 {
		t.Errorf("rating = %v, reviews = %d", g.Rating, g.ReviewCount)
	}
	if g.Price == nil || g.Price.Final != 999 {
		t.Errorf("price = %+v", g.Price)
	}
	if g.ReleaseDate == nil || !g.ReleaseDate.Equal(time.Date(2011, 9, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("release date = %v", g.ReleaseDate)
	}

	last, err := store.LastFullScrape(ctx)
	if err != nil {
		t.Fatalf("LastFullScrape() error = %v", err)
	}
	if last == nil {
		t.Error("full scrape time not recorded")
	}

	if len(phases) < 2 || phases[0] != "Finding games" {
		t.Fatalf("phases = %v", phases)
	}
	if phases[1] != "Removing duplicates (2)" {
		t.Errorf("dedupe phase = %q", phases[1])
	}
}

func TestRunIncrementalDiscovery(t *testing.T) {
	ctx := context.Background()
	fetcher := &pipelineFetcher{catalogXML: map[string]string{}}
	scr, store := newPipeline(t, fetcher)

	if err := store.SetLastFullScrape(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("seed scrape time: %v", err)
	}

	if err := scr.Run(ctx, func(string) {}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// A completed full crawl switches discovery to the current year only,
	// fetched month by month.
	if len(fetcher.catalogRequests) != 12 {
		t.Fatalf("catalog requests = %d, want 12", len(fetcher.catalogRequests))
	}
	year := strconv.Itoa(time.Now().Year())
	for i, key := range fetcher.catalogRequests {
		want := year + "-" + strconv.Itoa(i+1)
		if key != want {
			t.Errorf("request %d = %q, want %q", i, key, want)
		}
	}
}
