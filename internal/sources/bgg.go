package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"boardhub/pkg/models"
)

// BGG crawls boardgamegeek.com: the category index page gives the category
// list, the geekitem/linkeditems API lists the games per category, and the
// xmlapi2 thing endpoint fills in the per-game detail fields.
type BGG struct {
	BaseURL    string // HTML pages (category index)
	APIBaseURL string // linkeditems + xmlapi2
	Client     *http.Client
	Limiter    *RateLimiter

	Category     string // optional category name filter (case-insensitive)
	Limit        int    // maximum records overall, 0 = no cap
	PagesPerCat  int
	TargetPerCat int
	ShowCount    int
	FetchDetails bool
	FetchGallery bool // gallery + og:image pass, only runs with FetchDetails
	GalleryMax   int
}

func NewBGG(baseURL, apiBaseURL string, qps int) *BGG {
	return &BGG{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIBaseURL:   strings.TrimRight(apiBaseURL, "/"),
		Client:       &http.Client{Timeout: 25 * time.Second},
		Limiter:      NewRateLimiter(qps),
		PagesPerCat:  3,
		TargetPerCat: 50,
		ShowCount:    25,
		FetchDetails: true,
		FetchGallery: true,
		GalleryMax:   12,
	}
}

func (s *BGG) Name() string { return "bgg" }

var categoryHrefRE = regexp.MustCompile(`/boardgamecategory/(\d+)`)

type bggCategory struct {
	ID   int
	Name string
}

// linkedItem mirrors the subset of the linkeditems payload the crawl needs.
// ids and years arrive sometimes quoted, sometimes bare, so the numeric
// fields decode through flexString.
type linkedItem struct {
	ObjectID flexString `json:"objectid"`
	ID       flexString `json:"id"`
	Name     string     `json:"name"`
	Year     flexString `json:"yearpublished"`
	Href     string     `json:"href"`
	URL      string     `json:"url"`
	Subtype  string     `json:"subtype"`
	Type     string     `json:"type"`
	ImageURL string     `json:"imageurl"`
	Images   struct {
		Original string `json:"original"`
	} `json:"images"`
}

type linkedItemsPage struct {
	Items []linkedItem `json:"items"`
}

// flexString accepts a JSON string or number and keeps it as text.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	*f = flexString(s)
	return nil
}

func (f flexString) String() string { return string(f) }

func (s *BGG) FetchAll(ctx context.Context) ([]models.RawRecord, error) {
	cats, err := s.fetchCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("bgg: category index: %w", err)
	}

	var out []models.RawRecord
	seen := map[string]struct{}{} // game ids, global across categories

	for _, cat := range cats {
		if s.Category != "" && !strings.EqualFold(cat.Name, s.Category) {
			continue
		}
		recs, err := s.fetchCategory(ctx, cat, seen, s.remaining(len(out)))
		if err != nil {
			return nil, fmt.Errorf("bgg: category %s: %w", cat.Name, err)
		}
		out = append(out, recs...)
		if s.Limit > 0 && len(out) >= s.Limit {
			break
		}
	}
	return out, nil
}

func (s *BGG) remaining(have int) int {
	if s.Limit <= 0 {
		return 0
	}
	return s.Limit - have
}

func (s *BGG) fetchCategories(ctx context.Context) ([]bggCategory, error) {
	body, err := s.getWithRetry(ctx, s.BaseURL+"/browse/boardgamecategory")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	var cats []bggCategory
	seen := map[int]struct{}{}
	doc.Find(`a[href^="/boardgamecategory/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		m := categoryHrefRE.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id, _ := strconv.Atoi(m[1])
		name := strings.Join(strings.Fields(sel.Text()), " ")
		if name == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		cats = append(cats, bggCategory{ID: id, Name: name})
	})
	return cats, nil
}

// fetchCategory pages through linkeditems for one category. Expansions are
// skipped, and a game already collected under an earlier category is not
// collected again. budget <= 0 means no per-call cap beyond TargetPerCat.
func (s *BGG) fetchCategory(ctx context.Context, cat bggCategory, seen map[string]struct{}, budget int) ([]models.RawRecord, error) {
	var rows []models.RawRecord
	full := func() bool {
		if len(rows) >= s.TargetPerCat {
			return true
		}
		return budget > 0 && len(rows) >= budget
	}

	for page := 1; page <= s.PagesPerCat && !full(); page++ {
		items, err := s.fetchLinkedItemsPage(ctx, cat.ID, page)
		if err != nil {
			return rows, err
		}
		if len(items) == 0 {
			break
		}

		for _, it := range items {
			if full() {
				break
			}
			if isExpansion(it) {
				continue
			}
			gid := gameID(it)
			if gid == "" {
				continue
			}
			if _, ok := seen[gid]; ok {
				continue
			}

			rec := models.RawRecord{
				Source:   s.Name(),
				SourceID: gid,
				Name:     strings.TrimSpace(it.Name),
				Year:     it.Year.String(),
				Category: cat.Name,
				URL:      s.absURL(itemPath(it)),
				ImageURL: pickImage(it),
			}
			if rec.Name == "" {
				continue
			}

			if s.FetchDetails {
				if err := s.fillDetails(ctx, gid, &rec); err != nil {
					// detail fetch is best-effort; the listing row stands
					continue
				}
				if s.FetchGallery {
					s.fillImages(ctx, gid, &rec)
				}
			}

			rows = append(rows, rec)
			seen[gid] = struct{}{}
		}
	}
	return rows, nil
}

func (s *BGG) fetchLinkedItemsPage(ctx context.Context, categoryID, page int) ([]linkedItem, error) {
	q := url.Values{}
	q.Set("ajax", "1")
	q.Set("nosession", "1")
	q.Set("objecttype", "property")
	q.Set("objectid", strconv.Itoa(categoryID))
	q.Set("linkdata_index", "boardgame")
	q.Set("pageid", strconv.Itoa(page))
	q.Set("showcount", strconv.Itoa(s.ShowCount))
	q.Set("sort", "name")
	q.Set("subtype", "boardgamecategory")

	body, err := s.getWithRetry(ctx, s.APIBaseURL+"/api/geekitem/linkeditems?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var payload linkedItemsPage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode linkeditems page %d: %w", page, err)
	}
	return payload.Items, nil
}

var gameHrefIDRE = regexp.MustCompile(`/boardgame(?:expansion)?/(\d+)`)

func gameID(it linkedItem) string {
	if it.ObjectID != "" {
		return it.ObjectID.String()
	}
	if it.ID != "" {
		return it.ID.String()
	}
	for _, v := range []string{it.Href, it.URL} {
		if m := gameHrefIDRE.FindStringSubmatch(v); m != nil {
			return m[1]
		}
	}
	return ""
}

func isExpansion(it linkedItem) bool {
	st := strings.ToLower(it.Subtype)
	if st == "" {
		st = strings.ToLower(it.Type)
	}
	if st == "boardgameexpansion" {
		return true
	}
	return strings.Contains(strings.ToLower(it.Href), "/boardgameexpansion/") ||
		strings.Contains(strings.ToLower(it.URL), "/boardgameexpansion/")
}

func itemPath(it linkedItem) string {
	if it.Href != "" {
		return it.Href
	}
	if it.URL != "" {
		return it.URL
	}
	if gid := gameID(it); gid != "" {
		return "/boardgame/" + gid
	}
	return ""
}

func pickImage(it linkedItem) string {
	if it.Images.Original != "" {
		return it.Images.Original
	}
	return it.ImageURL
}

func (s *BGG) absURL(path string) string {
	switch {
	case path == "":
		return ""
	case strings.HasPrefix(path, "//"):
		return "https:" + path
	case strings.HasPrefix(path, "/"):
		return s.BaseURL + path
	default:
		return path
	}
}

// xmlapi2 thing response, stats included.
type thingItems struct {
	Items []thingItem `xml:"item"`
}

type thingItem struct {
	Names       []thingName `xml:"name"`
	Description string      `xml:"description"`
	Image       string      `xml:"image"`
	MinPlayers  valueAttr   `xml:"minplayers"`
	MaxPlayers  valueAttr   `xml:"maxplayers"`
	MinPlaytime valueAttr   `xml:"minplaytime"`
	MaxPlaytime valueAttr   `xml:"maxplaytime"`
	MinAge      valueAttr   `xml:"minage"`
	Links       []thingLink `xml:"link"`
	Statistics  struct {
		Ratings struct {
			Average       valueAttr `xml:"average"`
			AverageWeight valueAttr `xml:"averageweight"`
		} `xml:"ratings"`
	} `xml:"statistics"`
}

type valueAttr struct {
	Value string `xml:"value,attr"`
}

type thingName struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

type thingLink struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

func (s *BGG) fillDetails(ctx context.Context, gid string, rec *models.RawRecord) error {
	body, err := s.getWithRetry(ctx, s.APIBaseURL+"/xmlapi2/thing?stats=1&id="+url.QueryEscape(gid))
	if err != nil {
		return err
	}

	var things thingItems
	if err := xml.Unmarshal(body, &things); err != nil {
		return fmt.Errorf("decode thing %s: %w", gid, err)
	}
	if len(things.Items) == 0 {
		return fmt.Errorf("thing %s: empty response", gid)
	}
	item := things.Items[0]

	rec.PlayersMin = item.MinPlayers.Value
	rec.PlayersMax = item.MaxPlayers.Value
	rec.TimeMin = item.MinPlaytime.Value
	rec.TimeMax = item.MaxPlaytime.Value
	rec.AgePlus = item.MinAge.Value
	rec.Weight = item.Statistics.Ratings.AverageWeight.Value
	rec.Rating = item.Statistics.Ratings.Average.Value
	rec.Description = strings.Join(strings.Fields(item.Description), " ")
	if rec.ImageURL == "" {
		rec.ImageURL = item.Image
	}

	for _, n := range item.Names {
		if n.Type == "alternate" && n.Value != "" && n.Value != rec.Name {
			rec.AlternateNames = append(rec.AlternateNames, n.Value)
		}
	}
	for _, l := range item.Links {
		switch l.Type {
		case "boardgamedesigner":
			rec.Designers = append(rec.Designers, l.Value)
		case "boardgameartist":
			rec.Artists = append(rec.Artists, l.Value)
		case "boardgamepublisher":
			rec.Publishers = append(rec.Publishers, l.Value)
		}
	}
	return nil
}

// images API response; every entry carries several render sizes and the
// largest available one wins.
type galleryImage struct {
	Large    string `json:"imageurl_lg"`
	Retina   string `json:"imageurl@2x"`
	Standard string `json:"imageurl"`
}

func (g galleryImage) best() string {
	for _, u := range []string{g.Large, g.Retina, g.Standard} {
		if u != "" {
			return u
		}
	}
	return ""
}

type galleryPage struct {
	Images []galleryImage `json:"images"`
}

// fillImages runs after the stat details: one page of the images API for
// the gallery, plus the game page's og:image as an upgrade over the listing
// thumbnail. Both fetches are best-effort and never drop the record.
func (s *BGG) fillImages(ctx context.Context, gid string, rec *models.RawRecord) {
	if imgs, err := s.fetchGallery(ctx, gid); err == nil && len(imgs) > 0 {
		rec.GalleryImages = imgs
	}
	if og, err := s.ogImage(ctx, rec.URL); err == nil && og != "" {
		rec.ImageURL = og
	}
}

func (s *BGG) fetchGallery(ctx context.Context, gid string) ([]string, error) {
	q := url.Values{}
	q.Set("ajax", "1")
	q.Set("foritempage", "1")
	q.Set("nosession", "1")
	q.Set("objecttype", "thing")
	q.Set("objectid", gid)
	q.Set("showcount", strconv.Itoa(s.GalleryMax))
	q.Set("size", "large")
	q.Set("sort", "recent")
	q.Add("galleries[]", "game")

	body, err := s.getWithRetry(ctx, s.APIBaseURL+"/api/images?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var page galleryPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode images for %s: %w", gid, err)
	}

	var out []string
	seen := map[string]struct{}{}
	for _, img := range page.Images {
		u := img.best()
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if len(out) >= s.GalleryMax {
			break
		}
	}
	return out, nil
}

// ogImage pulls the og:image meta tag off the game's HTML page.
func (s *BGG) ogImage(ctx context.Context, pageURL string) (string, error) {
	if pageURL == "" {
		return "", nil
	}
	body, err := s.getWithRetry(ctx, pageURL)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	v, _ := doc.Find(`meta[property="og:image"]`).Attr("content")
	return strings.TrimSpace(v), nil
}

// getWithRetry issues one rate-limited GET with exponential backoff on
// 429/5xx responses and transport errors.
func (s *BGG) getWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		s.Limiter.WaitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")

		resp, err := s.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("bgg status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("bgg: %s: status %d", rawURL, resp.StatusCode)
		}
		return body, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("bgg: %s: request failed", rawURL)
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
