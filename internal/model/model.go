// Package model defines the domain types used across the application.
package model

import "time"

// ReleaseStatus describes what is known about a game's release.
type ReleaseStatus string

// Supported release statuses.
const (
	StatusReleased   ReleaseStatus = "released"
	StatusUnreleased ReleaseStatus = "unreleased"
	StatusUnknown    ReleaseStatus = "unknown"
)

// Game is a catalog entry merged from the co-op catalog and Steam metadata.
// SteamID is the unique key across the persisted catalog; CoopID is the
// identifier assigned by the upstream catalog.
type Game struct {
	ID               int64
	CoopID           string
	SteamID          string
	Title            string
	CouchPlayers     int
	LANPlayers       int
	OnlinePlayers    int
	CooptimusURL     string
	SteamURL         string
	HeaderImage      string
	ShortDescription string
	Tags             []string
	Rating           float64
	ReviewCount      int
	ReleaseStatus    ReleaseStatus
	ReleaseDate      *time.Time
	Removed          bool
	UpdatedAt        time.Time

	// Price and Score are populated per country on query results; they are
	// not attributes of the persisted game row.
	Price *Price
	Score float64
}

// Released reports whether the game has shipped.
func (g *Game) Released() bool {
	return g.ReleaseStatus == StatusReleased
}

// Price holds a game's store price in minor currency units (cents).
type Price struct {
	Initial int64
	Final   int64
}

// SaleFraction returns the discount as a fraction of the initial price,
// or 0 when the initial price is unknown.
func (p Price) SaleFraction() float64 {
	if p.Initial <= 0 {
		return 0
	}
	return 1 - float64(p.Final)/float64(p.Initial)
}

// CountryData aggregates one price-sync pass for a single game: the prices
// found per country and the countries the game is delisted in.
type CountryData struct {
	Prices   map[string]Price
	Delisted map[string]bool
}

// NewCountryData returns an empty CountryData with initialized maps.
func NewCountryData() *CountryData {
	return &CountryData{
		Prices:   make(map[string]Price),
		Delisted: make(map[string]bool),
	}
}
