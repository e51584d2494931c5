package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
)

const categoryIndexHTML = `<html><body>
<a href="/boardgamecategory/1009/abstract-strategy">Abstract Strategy</a>
<a href="/boardgamecategory/1019/wargame">Wargame</a>
<a href="/boardgamecategory/1019/wargame">Wargame</a>
<a href="/boardgamesubdomain/5499/family">Family</a>
</body></html>`

// newBGGFixture serves a category index, per-category linkeditems pages and
// xmlapi2 thing responses from one test server.
func newBGGFixture(t *testing.T, pages map[string]string, things map[string]string) *BGG {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/browse/boardgamecategory":
			_, _ = w.Write([]byte(categoryIndexHTML))
		case "/api/geekitem/linkeditems":
			key := r.URL.Query().Get("objectid") + ":" + r.URL.Query().Get("pageid")
			body, ok := pages[key]
			if !ok {
				body = `{"items": []}`
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		case "/xmlapi2/thing":
			body, ok := things[r.URL.Query().Get("id")]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/xml")
			_, _ = w.Write([]byte(body))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	s := NewBGG(srv.URL, srv.URL, 1000)
	s.FetchDetails = false
	s.FetchGallery = false
	return s
}

func TestBGGFetchAllSkipsExpansionsAndDedupesAcrossCategories(t *testing.T) {
	pages := map[string]string{
		// Abstract Strategy page 1: a game, an expansion, a game without id
		"1009:1": `{"items": [
			{"objectid": "13", "name": "Catan", "yearpublished": 1995, "href": "/boardgame/13/catan", "subtype": "boardgame"},
			{"objectid": "926", "name": "Catan: Seafarers", "subtype": "boardgameexpansion"},
			{"name": "Ghost Entry", "subtype": "boardgame"}
		]}`,
		// Wargame page 1 repeats Catan and adds Risk
		"1019:1": `{"items": [
			{"objectid": "13", "name": "Catan", "subtype": "boardgame"},
			{"id": 181, "name": "Risk", "yearpublished": "1959", "href": "/boardgame/181/risk", "subtype": "boardgame"}
		]}`,
	}

	s := newBGGFixture(t, pages, nil)
	recs, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	var names []string
	for _, r := range recs {
		names = append(names, r.Name)
	}
	if !reflect.DeepEqual(names, []string{"Catan", "Risk"}) {
		t.Fatalf("got %v", names)
	}

	catan := recs[0]
	if catan.Source != "bgg" || catan.SourceID != "13" || catan.Year != "1995" {
		t.Fatalf("catan fields: %+v", catan)
	}
	if catan.Category != "Abstract Strategy" {
		t.Fatalf("category = %q", catan.Category)
	}
	if catan.URL != s.BaseURL+"/boardgame/13/catan" {
		t.Fatalf("url = %q", catan.URL)
	}
	if recs[1].SourceID != "181" {
		t.Fatalf("risk id = %q", recs[1].SourceID)
	}
}

func TestBGGFetchAllHonorsCategoryFilterAndLimit(t *testing.T) {
	pages := map[string]string{
		"1019:1": `{"items": [
			{"objectid": "1", "name": "Axis and Allies", "subtype": "boardgame"},
			{"objectid": "2", "name": "Memoir 44", "subtype": "boardgame"},
			{"objectid": "3", "name": "Twilight Struggle", "subtype": "boardgame"}
		]}`,
	}

	s := newBGGFixture(t, pages, nil)
	s.Category = "wargame"
	s.Limit = 2

	recs, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("limit ignored: got %d records", len(recs))
	}
	for _, r := range recs {
		if r.Category != "Wargame" {
			t.Fatalf("category filter leaked: %+v", r)
		}
	}
}

func TestBGGFillDetails(t *testing.T) {
	pages := map[string]string{
		"1009:1": `{"items": [
			{"objectid": "13", "name": "Catan", "yearpublished": 1995, "href": "/boardgame/13/catan", "subtype": "boardgame"}
		]}`,
	}
	things := map[string]string{
		"13": `<?xml version="1.0" encoding="utf-8"?>
<items>
  <item type="boardgame" id="13">
    <name type="primary" value="Catan"/>
    <name type="alternate" value="Die Siedler von Catan"/>
    <description>Trade,  build   and settle.</description>
    <image>https://cf.example/catan.jpg</image>
    <minplayers value="3"/>
    <maxplayers value="4"/>
    <minplaytime value="60"/>
    <maxplaytime value="120"/>
    <minage value="10"/>
    <link type="boardgamedesigner" id="11" value="Klaus Teuber"/>
    <link type="boardgameartist" id="12" value="Volkan Baga"/>
    <link type="boardgamepublisher" id="37" value="KOSMOS"/>
    <link type="boardgamecategory" id="1026" value="Negotiation"/>
    <statistics page="1">
      <ratings>
        <average value="7.1"/>
        <averageweight value="2.3"/>
      </ratings>
    </statistics>
  </item>
</items>`,
	}

	s := newBGGFixture(t, pages, things)
	s.FetchDetails = true

	recs, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}

	r := recs[0]
	if r.PlayersMin != "3" || r.PlayersMax != "4" || r.TimeMin != "60" || r.TimeMax != "120" || r.AgePlus != "10" {
		t.Fatalf("stat tokens: %+v", r)
	}
	if r.Rating != "7.1" || r.Weight != "2.3" {
		t.Fatalf("rating=%q weight=%q", r.Rating, r.Weight)
	}
	if r.Description != "Trade, build and settle." {
		t.Fatalf("description = %q", r.Description)
	}
	if r.ImageURL != "https://cf.example/catan.jpg" {
		t.Fatalf("image = %q", r.ImageURL)
	}
	if !reflect.DeepEqual(r.AlternateNames, []string{"Die Siedler von Catan"}) {
		t.Fatalf("alt names = %v", r.AlternateNames)
	}
	if !reflect.DeepEqual(r.Designers, []string{"Klaus Teuber"}) ||
		!reflect.DeepEqual(r.Artists, []string{"Volkan Baga"}) ||
		!reflect.DeepEqual(r.Publishers, []string{"KOSMOS"}) {
		t.Fatalf("credits: %+v", r)
	}
}

func TestBGGGalleryAndOGImageUpgrade(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/browse/boardgamecategory":
			_, _ = w.Write([]byte(`<a href="/boardgamecategory/1009/abstract">Abstract Strategy</a>`))
		case "/api/geekitem/linkeditems":
			_, _ = w.Write([]byte(`{"items": [
				{"objectid": "13", "name": "Catan", "href": "/boardgame/13/catan", "subtype": "boardgame", "imageurl": "https://cf.example/thumb.jpg"}
			]}`))
		case "/xmlapi2/thing":
			_, _ = w.Write([]byte(`<items><item id="13"><name type="primary" value="Catan"/></item></items>`))
		case "/api/images":
			if r.URL.Query().Get("objectid") != "13" || r.URL.Query().Get("galleries[]") != "game" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(`{"images": [
				{"imageurl_lg": "https://cf.example/a-lg.jpg", "imageurl": "https://cf.example/a.jpg"},
				{"imageurl@2x": "https://cf.example/b-2x.jpg"},
				{"imageurl_lg": "https://cf.example/a-lg.jpg"},
				{"imageurl": "https://cf.example/c.jpg"},
				{"imageurl": "https://cf.example/d.jpg"}
			]}`))
		case "/boardgame/13/catan":
			_, _ = w.Write([]byte(`<html><head><meta property="og:image" content="https://cf.example/og.jpg"/></head></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewBGG(srv.URL, srv.URL, 1000)
	s.GalleryMax = 3

	recs, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}

	r := recs[0]
	want := []string{
		"https://cf.example/a-lg.jpg",
		"https://cf.example/b-2x.jpg",
		"https://cf.example/c.jpg",
	}
	if !reflect.DeepEqual(r.GalleryImages, want) {
		t.Fatalf("gallery = %v, want %v", r.GalleryImages, want)
	}
	if r.ImageURL != "https://cf.example/og.jpg" {
		t.Fatalf("og:image should replace the listing thumbnail, got %q", r.ImageURL)
	}
}

func TestBGGGalleryFailureKeepsListingImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/browse/boardgamecategory":
			_, _ = w.Write([]byte(`<a href="/boardgamecategory/1009/abstract">Abstract Strategy</a>`))
		case "/api/geekitem/linkeditems":
			_, _ = w.Write([]byte(`{"items": [
				{"objectid": "13", "name": "Catan", "href": "/boardgame/13/catan", "subtype": "boardgame", "imageurl": "https://cf.example/thumb.jpg"}
			]}`))
		case "/xmlapi2/thing":
			_, _ = w.Write([]byte(`<items><item id="13"><name type="primary" value="Catan"/></item></items>`))
		default:
			// gallery and page fetches fail hard
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewBGG(srv.URL, srv.URL, 1000)

	recs, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[0].ImageURL != "https://cf.example/thumb.jpg" {
		t.Fatalf("image = %q", recs[0].ImageURL)
	}
	if len(recs[0].GalleryImages) != 0 {
		t.Fatalf("gallery should be empty, got %v", recs[0].GalleryImages)
	}
}

func TestGetWithRetryRecoversFromThrottling(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := NewBGG(srv.URL, srv.URL, 1000)
	body, err := s.getWithRetry(context.Background(), srv.URL+"/anything")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("body = %q", body)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits = %d, want 3", hits.Load())
	}
}

func TestGetWithRetryGivesUpOnHardFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := NewBGG(srv.URL, srv.URL, 1000)
	if _, err := s.getWithRetry(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatal("expected error on 404")
	}
}

func TestFlexString(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "quoted", in: `"1995"`, want: "1995"},
		{name: "bare int", in: `1995`, want: "1995"},
		{name: "null", in: `null`, want: ""},
		{name: "quoted empty", in: `""`, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var f flexString
			if err := json.Unmarshal([]byte(tc.in), &f); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if f.String() != tc.want {
				t.Fatalf("got %q, want %q", f.String(), tc.want)
			}
		})
	}
}

func TestGameID(t *testing.T) {
	cases := []struct {
		name string
		item linkedItem
		want string
	}{
		{name: "objectid wins", item: linkedItem{ObjectID: "13", ID: "99"}, want: "13"},
		{name: "id fallback", item: linkedItem{ID: "99"}, want: "99"},
		{name: "href fallback", item: linkedItem{Href: "/boardgame/181/risk"}, want: "181"},
		{name: "expansion href", item: linkedItem{URL: "https://x/boardgameexpansion/926/seafarers"}, want: "926"},
		{name: "nothing", item: linkedItem{Name: "Ghost"}, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := gameID(tc.item); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsExpansion(t *testing.T) {
	cases := []struct {
		name string
		item linkedItem
		want bool
	}{
		{name: "subtype", item: linkedItem{Subtype: "boardgameexpansion"}, want: true},
		{name: "type fallback", item: linkedItem{Type: "boardgameexpansion"}, want: true},
		{name: "href", item: linkedItem{Subtype: "boardgame", Href: "/boardgameexpansion/926/seafarers"}, want: true},
		{name: "base game", item: linkedItem{Subtype: "boardgame", Href: "/boardgame/13/catan"}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isExpansion(tc.item); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
