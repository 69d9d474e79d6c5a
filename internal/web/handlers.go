package web

import (
	"errors"
	"net/http"

	"coopgames/internal/model"
	"coopgames/internal/scheduler"
)

type priceJSON struct {
	Initial int64 `json:"initial"`
	Final   int64 `json:"final"`
}

type gameJSON struct {
	Title            string     `json:"title"`
	SteamID          string     `json:"steam_id"`
	Score            float64    `json:"score"`
	Price            *priceJSON `json:"price"`
	SteamRating      float64    `json:"steam_rating"`
	NumberOfReviews  int        `json:"number_of_reviews"`
	IsReleased       bool       `json:"is_released"`
	ReleaseDate      *string    `json:"release_date"`
	CouchPlayers     int        `json:"couch_players"`
	LANPlayers       int        `json:"lan_players"`
	OnlinePlayers    int        `json:"online_players"`
	CooptimusURL     string     `json:"cooptimus_url"`
	SteamURL         string     `json:"steam_url"`
	HeaderImage      string     `json:"header_image"`
	ShortDescription string     `json:"short_description"`
	Tags             []string   `json:"tags"`
}

type paginationJSON struct {
	TotalPages int `json:"total_pages"`
	PageSize   int `json:"page_size"`
	TotalGames int `json:"total_games"`
}

type gamesResponse struct {
	Games              []gameJSON     `json:"games"`
	Pagination         paginationJSON `json:"pagination"`
	ScrapingInProgress bool           `json:"scraping_in_progress"`
	LastScrapeHoursAgo *float64       `json:"last_scrape_hours_ago"`
}

type statusResponse struct {
	ScrapingInProgress  bool     `json:"scraping_in_progress"`
	ScrapingState       string   `json:"scraping_state"`
	LastScrapeHoursAgo  *float64 `json:"last_scrape_hours_ago"`
	ScrapeIntervalHours float64  `json:"scrape_interval_hours"`
	NumberOfGames       int      `json:"number_of_games"`
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	req, err := parseGamesRequest(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	games, total, err := s.store.QueryGames(r.Context(), req.criteria, req.weights, req.pagination())
	if err != nil {
		s.log.Error("query games", "error", err)
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	out := make([]gameJSON, 0, len(games))
	for i := range games {
		out = append(out, toGameJSON(&games[i]))
	}

	status := s.scraping.Status()
	s.writeJSON(w, http.StatusOK, gamesResponse{
		Games: out,
		Pagination: paginationJSON{
			TotalPages: (total + pageSize - 1) / pageSize,
			PageSize:   pageSize,
			TotalGames: total,
		},
		ScrapingInProgress: status.InProgress,
		LastScrapeHoursAgo: status.LastScrapeHoursAgo,
	})
}

func (s *Server) handleScrapeStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountGames(r.Context())
	if err != nil {
		s.log.Error("count games", "error", err)
		s.writeError(w, http.StatusInternalServerError, "status unavailable")
		return
	}

	status := s.scraping.Status()
	s.writeJSON(w, http.StatusOK, statusResponse{
		ScrapingInProgress:  status.InProgress,
		ScrapingState:       status.Phase,
		LastScrapeHoursAgo:  status.LastScrapeHoursAgo,
		ScrapeIntervalHours: status.IntervalHours,
		NumberOfGames:       count,
	})
}

func (s *Server) handleScrapeStart(w http.ResponseWriter, r *http.Request) {
	if err := s.scraping.TriggerScrape(r.Context()); err != nil {
		if errors.Is(err, scheduler.ErrScrapeInProgress) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.log.Error("trigger scrape", "error", err)
		s.writeError(w, http.StatusInternalServerError, "trigger failed")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"message":              "Scraping started",
		"scraping_in_progress": true,
	})
}

func toGameJSON(g *model.Game) gameJSON {
	out := gameJSON{
		Title:            g.Title,
		SteamID:          g.SteamID,
		Score:            g.Score,
		SteamRating:      g.Rating,
		NumberOfReviews:  g.ReviewCount,
		IsReleased:       g.Released(),
		CouchPlayers:     g.CouchPlayers,
		LANPlayers:       g.LANPlayers,
		OnlinePlayers:    g.OnlinePlayers,
		CooptimusURL:     g.CooptimusURL,
		SteamURL:         g.SteamURL,
		HeaderImage:      g.HeaderImage,
		ShortDescription: g.ShortDescription,
		Tags:             g.Tags,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if g.ReleaseDate != nil {
		v := g.ReleaseDate.Format(dateLayout)
		out.ReleaseDate = &v
	}
	if g.Price != nil {
		out.Price = &priceJSON{Initial: g.Price.Initial, Final: g.Price.Final}
	}
	return out
}
