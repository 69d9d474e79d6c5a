package catalog

import (
	_ "embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// reconcileYAML holds the static identifier tables: remappings for Steam ids
// the catalog still lists under a stale number, and ids of titles known to
// be permanently defunct.
//
//go:embed reconcile.yaml
var reconcileYAML []byte

// Reconciler normalizes store identifiers, drops permanently defunct
// entries, and deduplicates candidates by their final identifier.
type Reconciler struct {
	remap  map[string]string
	ignore map[string]bool
	log    *slog.Logger
}

type reconcileTables struct {
	Remap  map[string]string `yaml:"remap"`
	Ignore []string          `yaml:"ignore"`
}

// NewReconciler loads the embedded identifier tables.
func NewReconciler(log *slog.Logger) (*Reconciler, error) {
	return LoadReconciler(reconcileYAML, log)
}

// LoadReconciler builds a Reconciler from a YAML tables document.
func LoadReconciler(data []byte, log *slog.Logger) (*Reconciler, error) {
	var tables reconcileTables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("parse reconcile tables: %w", err)
	}
	ignore := make(map[string]bool, len(tables.Ignore))
	for _, id := range tables.Ignore {
		ignore[id] = true
	}
	return &Reconciler{remap: tables.Remap, ignore: ignore, log: log}, nil
}

// Apply remaps stale identifiers, marks ignored entries removed and drops
// them, and deduplicates by final identifier keeping the first occurrence.
// Candidates are in discovery order, so the earliest-seen listing wins.
func (r *Reconciler) Apply(cands []Candidate) []Candidate {
	seen := make(map[string]bool, len(cands))
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if mapped, ok := r.remap[c.Game.SteamID]; ok {
			r.log.Debug("remapped stale steam id", "from", c.Game.SteamID, "to", mapped)
			c.Game.SteamID = mapped
			c.Game.SteamURL = steamStoreURL + mapped
		}
		if r.ignore[c.Game.SteamID] {
			c.Status = StatusRemoved
			continue
		}
		if seen[c.Game.SteamID] {
			continue
		}
		seen[c.Game.SteamID] = true
		out = append(out, c)
	}
	return out
}
