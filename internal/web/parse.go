package web

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coopgames/internal/model"
)

// pageSize is the fixed number of games per result page.
const pageSize = 40

const dateLayout = "2006-01-02"

// gamesRequest is a /games query decoded into core value objects.
type gamesRequest struct {
	criteria model.FilterCriteria
	weights  model.ScoringWeights
	page     int
}

// parseGamesRequest translates query parameters into filter criteria and
// scoring weights. Invalid input is rejected here, never silently coerced.
func parseGamesRequest(q url.Values) (*gamesRequest, error) {
	req := &gamesRequest{
		criteria: model.FilterCriteria{
			CountryCode:     "SE",
			MinPlayers:      1,
			MaxPlayers:      100,
			PlayerMode:      model.ModeOnline,
			FreeGames:       true,
			UnreleasedGames: true,
		},
		weights: model.ScoringWeights{
			Rating:    0.7,
			Price:     0.3,
			HighPrice: 20,
		},
		page: 1,
	}

	var err error
	if req.criteria.MinPlayers, err = intParam(q, "min_supported_players", req.criteria.MinPlayers); err != nil {
		return nil, err
	}
	if req.criteria.MaxPlayers, err = intParam(q, "max_supported_players", req.criteria.MaxPlayers); err != nil {
		return nil, err
	}
	if v := q.Get("player_type"); v != "" {
		req.criteria.PlayerMode = model.PlayerMode(strings.ToLower(v))
	}
	if req.criteria.FreeGames, err = boolParam(q, "free_games", req.criteria.FreeGames); err != nil {
		return nil, err
	}
	if req.criteria.UnreleasedGames, err = boolParam(q, "unreleased_games", req.criteria.UnreleasedGames); err != nil {
		return nil, err
	}
	if req.criteria.FromDate, err = dateParam(q, "release_date_from"); err != nil {
		return nil, err
	}
	if req.criteria.ToDate, err = dateParam(q, "release_date_to"); err != nil {
		return nil, err
	}
	if req.criteria.MinReviews, err = intParam(q, "min_reviews", 0); err != nil {
		return nil, err
	}
	if v := q.Get("country_code"); v != "" {
		req.criteria.CountryCode = strings.ToUpper(v)
	}
	if v := q.Get("tags"); v != "" {
		for _, tag := range strings.Split(v, "|") {
			tag = strings.TrimSpace(tag)
			if tag != "" {
				req.criteria.Tags = append(req.criteria.Tags, strings.ToLower(tag))
			}
		}
	}

	if req.weights.Rating, err = floatParam(q, "weight_rating", req.weights.Rating); err != nil {
		return nil, err
	}
	if req.weights.Price, err = floatParam(q, "weight_price", req.weights.Price); err != nil {
		return nil, err
	}
	if req.weights.Sale, err = floatParam(q, "weight_sale", 0); err != nil {
		return nil, err
	}
	if req.weights.Reviews, err = floatParam(q, "weight_reviews", 0); err != nil {
		return nil, err
	}
	if req.weights.HighPrice, err = floatParam(q, "high_price", req.weights.HighPrice); err != nil {
		return nil, err
	}

	if req.page, err = intParam(q, "page", 1); err != nil {
		return nil, err
	}
	if req.page < 1 {
		return nil, fmt.Errorf("page number must be greater than 0")
	}

	if err := req.criteria.Validate(); err != nil {
		return nil, err
	}
	if err := req.weights.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *gamesRequest) pagination() model.Pagination {
	return model.Pagination{Offset: (r.page - 1) * pageSize, Limit: pageSize}
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q", name, v)
	}
	return n, nil
}

func floatParam(q url.Values, name string, def float64) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %q", name, v)
	}
	return f, nil
}

func boolParam(q url.Values, name string, def bool) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %q", name, v)
	}
	return b, nil
}

func dateParam(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("invalid date format for %s, expected YYYY-MM-DD: %q", name, v)
	}
	return &t, nil
}
