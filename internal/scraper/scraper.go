// Package scraper runs the full ingestion pipeline: catalog discovery,
// identifier reconciliation, metadata enrichment, and country price sync.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coopgames/internal/catalog"
	"coopgames/internal/steam"
	"coopgames/internal/storage"
)

// Scraper wires the pipeline stages together against one storage backend.
type Scraper struct {
	discoverer *catalog.Discoverer
	reconciler *catalog.Reconciler
	enricher   *steam.Enricher
	syncer     *steam.Syncer
	store      storage.Storage
	log        *slog.Logger
}

// New creates a Scraper from its pipeline stages.
func New(d *catalog.Discoverer, r *catalog.Reconciler, e *steam.Enricher, s *steam.Syncer, store storage.Storage, log *slog.Logger) *Scraper {
	return &Scraper{
		discoverer: d,
		reconciler: r,
		enricher:   e,
		syncer:     s,
		store:      store,
		log:        log,
	}
}

// Run executes one pipeline pass. The first run (and any run before a full
// crawl has completed) walks the whole catalog; later runs only re-fetch the
// current year. progress receives human-readable phase labels.
func (s *Scraper) Run(ctx context.Context, progress func(string)) error {
	progress("Finding games")
	last, err := s.store.LastFullScrape(ctx)
	if err != nil {
		return fmt.Errorf("read last scrape: %w", err)
	}

	var cands []catalog.Candidate
	if last == nil {
		s.log.Info("no previous full crawl, discovering entire catalog")
		cands, err = s.discoverer.DiscoverAll(ctx)
	} else {
		s.log.Info("incremental discovery", "last_full_scrape", *last)
		cands, err = s.discoverer.DiscoverRecent(ctx)
	}
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	progress(fmt.Sprintf("Removing duplicates (%d)", len(cands)))
	cands = s.reconciler.Apply(cands)
	s.log.Info("candidates after reconciliation", "count", len(cands))

	enriched, removed, err := s.enricher.Enrich(ctx, cands, progress)
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	s.log.Info("enrichment done", "enriched", enriched, "removed", removed)

	if err := s.syncer.Sync(ctx, progress); err != nil {
		return fmt.Errorf("price sync: %w", err)
	}

	if err := s.store.SetLastFullScrape(ctx, time.Now().UTC()); err != nil {
		return fmt.Errorf("persist scrape time: %w", err)
	}
	return nil
}
