package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"coopgames/internal/model"
	"coopgames/internal/score"
	"coopgames/migrations"
)

const (
	timeLayout = "2006-01-02T15:04:05Z"
	dateLayout = "2006-01-02"
)

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// UpsertGame inserts or updates a game keyed by its Steam id.
func (s *SQLite) UpsertGame(ctx context.Context, game *model.Game) error {
	tags, err := json.Marshal(game.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	if game.Tags == nil {
		tags = []byte("[]")
	}
	var releaseDate *string
	if game.ReleaseDate != nil {
		v := game.ReleaseDate.Format(dateLayout)
		releaseDate = &v
	}
	now := time.Now().UTC().Format(timeLayout)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO games (
		     steam_id, coop_id, title, couch_players, lan_players, online_players,
		     cooptimus_url, steam_url, header_image, short_description, tags,
		     rating, review_count, release_status, release_date, removed, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(steam_id) DO UPDATE SET
		     coop_id = excluded.coop_id,
		     title = excluded.title,
		     couch_players = excluded.couch_players,
		     lan_players = excluded.lan_players,
		     online_players = excluded.online_players,
		     cooptimus_url = excluded.cooptimus_url,
		     steam_url = excluded.steam_url,
		     header_image = excluded.header_image,
		     short_description = excluded.short_description,
		     tags = excluded.tags,
		     rating = excluded.rating,
		     review_count = excluded.review_count,
		     release_status = excluded.release_status,
		     release_date = excluded.release_date,
		     removed = excluded.removed,
		     updated_at = excluded.updated_at`,
		game.SteamID, game.CoopID, game.Title,
		game.CouchPlayers, game.LANPlayers, game.OnlinePlayers,
		game.CooptimusURL, game.SteamURL, game.HeaderImage, game.ShortDescription,
		string(tags), game.Rating, game.ReviewCount, string(game.ReleaseStatus),
		releaseDate, boolToInt(game.Removed), now,
	)
	if err != nil {
		return fmt.Errorf("upsert game: %w", err)
	}
	game.UpdatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// SaveCountryData upserts prices and rewrites delistings for the given
// games in one transaction.
func (s *SQLite) SaveCountryData(ctx context.Context, data map[string]*model.CountryData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for steamID, cd := range data {
		for country, price := range cd.Prices {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO game_prices (steam_id, country_code, initial_price, final_price)
				 VALUES (?, ?, ?, ?)`,
				steamID, country, price.Initial, price.Final,
			); err != nil {
				return fmt.Errorf("upsert price: %w", err)
			}
		}

		// Delistings are not additive across runs; the last sync wins.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM game_delistings WHERE steam_id = ?`, steamID,
		); err != nil {
			return fmt.Errorf("clear delistings: %w", err)
		}
		for country, delisted := range cd.Delisted {
			if !delisted {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO game_delistings (steam_id, country_code) VALUES (?, ?)`,
				steamID, country,
			); err != nil {
				return fmt.Errorf("insert delisting: %w", err)
			}
		}
	}
	return tx.Commit()
}

// QueryGames filters in SQL, then scores, sorts, and paginates in Go. Ties
// keep storage iteration order.
func (s *SQLite) QueryGames(ctx context.Context, criteria model.FilterCriteria, weights model.ScoringWeights, page model.Pagination) ([]model.Game, int, error) {
	if err := criteria.Validate(); err != nil {
		return nil, 0, fmt.Errorf("invalid criteria: %w", err)
	}
	if err := weights.Validate(); err != nil {
		return nil, 0, fmt.Errorf("invalid weights: %w", err)
	}
	if err := page.Validate(); err != nil {
		return nil, 0, fmt.Errorf("invalid pagination: %w", err)
	}

	where, args := buildWhere(criteria)
	query := `SELECT g.id, g.steam_id, g.coop_id, g.title,
	                 g.couch_players, g.lan_players, g.online_players,
	                 g.cooptimus_url, g.steam_url, g.header_image, g.short_description,
	                 g.tags, g.rating, g.review_count, g.release_status, g.release_date,
	                 g.removed, g.updated_at,
	                 gp.initial_price, gp.final_price
	          FROM games g
	          LEFT JOIN game_prices gp
	            ON gp.steam_id = g.steam_id AND gp.country_code = ?
	          WHERE ` + where + `
	          ORDER BY g.id`
	allArgs := append([]any{criteria.CountryCode}, args...)

	rows, err := s.db.QueryContext(ctx, query, allArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query games: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var games []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, 0, err
		}
		games = append(games, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan games: %w", err)
	}

	for i := range games {
		var price model.Price
		if games[i].Price != nil {
			price = *games[i].Price
		}
		games[i].Score = score.Compute(&games[i], price, weights)
	}
	sort.SliceStable(games, func(i, j int) bool {
		return games[i].Score > games[j].Score
	})

	total := len(games)
	if page.Offset >= total {
		return []model.Game{}, total, nil
	}
	end := min(page.Offset+page.Limit, total)
	return games[page.Offset:end], total, nil
}

func buildWhere(c model.FilterCriteria) (string, []any) {
	conds := []string{
		"g.removed = 0",
		"g.steam_id NOT IN (SELECT steam_id FROM game_delistings WHERE country_code = ?)",
	}
	args := []any{c.CountryCode}

	var playerCol string
	switch c.PlayerMode {
	case model.ModeCouch:
		playerCol = "g.couch_players"
	case model.ModeLAN:
		playerCol = "g.lan_players"
	default:
		playerCol = "g.online_players"
	}
	conds = append(conds, playerCol+" BETWEEN ? AND ?")
	args = append(args, c.MinPlayers, c.MaxPlayers)

	if !c.FreeGames {
		conds = append(conds,
			`EXISTS (SELECT 1 FROM game_prices p
			         WHERE p.steam_id = g.steam_id AND p.country_code = ? AND p.final_price > 0)`)
		args = append(args, c.CountryCode)
	}
	if !c.UnreleasedGames {
		conds = append(conds, "g.release_status = ?")
		args = append(args, string(model.StatusReleased))
	}
	if c.MinReviews > 0 {
		conds = append(conds, "g.review_count >= ?")
		args = append(args, c.MinReviews)
	}
	for _, tag := range c.Tags {
		conds = append(conds, "lower(g.tags) LIKE ?")
		args = append(args, `%"`+strings.ToLower(tag)+`"%`)
	}
	// A NULL release_date never satisfies a date bound, so games without a
	// release date drop out whenever a date filter is set.
	if c.FromDate != nil {
		conds = append(conds, "g.release_date >= ?")
		args = append(args, c.FromDate.Format(dateLayout))
	}
	if c.ToDate != nil {
		conds = append(conds, "g.release_date <= ?")
		args = append(args, c.ToDate.Format(dateLayout))
	}

	return strings.Join(conds, " AND "), args
}

// AllAppIDs returns every stored Steam id in insertion order.
func (s *SQLite) AllAppIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT steam_id FROM games ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query app ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan app id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountGames returns the total number of stored games.
func (s *SQLite) CountGames(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return count, nil
}

// LastFullScrape returns the persisted completion time of the last full
// crawl, or nil before the first one.
func (s *SQLite) LastFullScrape(ctx context.Context) (*time.Time, error) {
	var v sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT last_full_scrape FROM scrape_state WHERE id = 1`).Scan(&v)
	if err != nil {
		return nil, fmt.Errorf("read scrape state: %w", err)
	}
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil, fmt.Errorf("parse scrape timestamp: %w", err)
	}
	return &t, nil
}

// SetLastFullScrape persists the completion time of a full crawl.
func (s *SQLite) SetLastFullScrape(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scrape_state SET last_full_scrape = ? WHERE id = 1`,
		t.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("write scrape state: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanGame(row scannable) (*model.Game, error) {
	var g model.Game
	var tags string
	var status string
	var releaseDate, updated sql.NullString
	var removed int
	var initial, final sql.NullInt64

	err := row.Scan(&g.ID, &g.SteamID, &g.CoopID, &g.Title,
		&g.CouchPlayers, &g.LANPlayers, &g.OnlinePlayers,
		&g.CooptimusURL, &g.SteamURL, &g.HeaderImage, &g.ShortDescription,
		&tags, &g.Rating, &g.ReviewCount, &status, &releaseDate,
		&removed, &updated, &initial, &final)
	if err != nil {
		return nil, fmt.Errorf("scan game: %w", err)
	}

	g.ReleaseStatus = model.ReleaseStatus(status)
	g.Removed = removed == 1
	if err := json.Unmarshal([]byte(tags), &g.Tags); err != nil {
		return nil, fmt.Errorf("parse tags for %s: %w", g.SteamID, err)
	}
	if releaseDate.Valid {
		t, err := time.Parse(dateLayout, releaseDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse release date for %s: %w", g.SteamID, err)
		}
		g.ReleaseDate = &t
	}
	if updated.Valid {
		g.UpdatedAt, _ = time.Parse(timeLayout, updated.String)
	}
	if initial.Valid {
		g.Price = &model.Price{Initial: initial.Int64, Final: final.Int64}
	}
	return &g, nil
}
