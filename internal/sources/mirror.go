package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"boardhub/pkg/models"
)

// Mirror fetches a demo-safe second origin: a JSON array of games served by
// cmd/mirror-server (or any endpoint with the same shape).
type Mirror struct {
	BaseURL string
	Client  *http.Client
}

func NewMirror(baseURL string) *Mirror {
	return &Mirror{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 12 * time.Second},
	}
}

func (s *Mirror) Name() string { return "mirror" }

// mirrorGame is the mirror's own shape; numerics arrive as loose JSON and
// are kept as tokens for the canonicalizer to judge.
type mirrorGame struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Year        json.RawMessage `json:"year"`
	Category    string          `json:"category"`
	URL         string          `json:"url"`
	Image       string          `json:"image"`
	MinPlayers  json.RawMessage `json:"min_players"`
	MaxPlayers  json.RawMessage `json:"max_players"`
	MinTime     json.RawMessage `json:"min_time"`
	MaxTime     json.RawMessage `json:"max_time"`
	MinAge      json.RawMessage `json:"min_age"`
	Weight      json.RawMessage `json:"weight"`
	Rating      json.RawMessage `json:"rating"`
	Description string          `json:"description"`
	Designers   []string        `json:"designers"`
	Artists     []string        `json:"artists"`
	Publishers  []string        `json:"publishers"`
	AltNames    []string        `json:"alt_names"`
	Gallery     []string        `json:"gallery"`
}

func (s *Mirror) FetchAll(ctx context.Context) ([]models.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/games", nil)
	if err != nil {
		return nil, fmt.Errorf("mirror: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mirror: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mirror: read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mirror: status %d: %s", resp.StatusCode, string(body))
	}

	var games []mirrorGame
	if err := json.Unmarshal(body, &games); err != nil {
		return nil, fmt.Errorf("mirror: decode: %w", err)
	}

	out := make([]models.RawRecord, 0, len(games))
	for _, g := range games {
		rec := models.RawRecord{
			Source:      s.Name(),
			SourceID:    strings.TrimSpace(g.ID),
			Name:        strings.TrimSpace(g.Title),
			Year:        rawToken(g.Year),
			Category:    g.Category,
			URL:         g.URL,
			ImageURL:    g.Image,
			PlayersMin:  rawToken(g.MinPlayers),
			PlayersMax:  rawToken(g.MaxPlayers),
			TimeMin:     rawToken(g.MinTime),
			TimeMax:     rawToken(g.MaxTime),
			AgePlus:     rawToken(g.MinAge),
			Weight:      rawToken(g.Weight),
			Rating:      rawToken(g.Rating),
			Description: g.Description,

			GalleryImages:  g.Gallery,
			AlternateNames: g.AltNames,
			Designers:      g.Designers,
			Artists:        g.Artists,
			Publishers:     g.Publishers,
		}
		out = append(out, rec)
	}
	return out, nil
}

// rawToken turns a loose JSON value ("1995", 1995, null) into the text
// token the canonicalizer parses.
func rawToken(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}
