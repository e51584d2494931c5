package games

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"

	"boardhub/pkg/database"
	"boardhub/pkg/models"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db := database.MustOpen(database.Config{Path: filepath.Join(t.TempDir(), "data.db")})
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepo(db)
}

func seedGames(t *testing.T, repo *Repo) {
	t.Helper()
	rows := []models.GameRow{
		{ID: 1, Name: "Catan", Year: 1995, Category: "Negotiation", Source: "bgg",
			PlayersMin: 3, PlayersMax: 4, Rating: 7.1, Designers: []string{"Klaus Teuber"}},
		{ID: 2, Name: "Risk", Year: 1959, Category: "Wargame", Source: "bgg",
			PlayersMin: 2, PlayersMax: 6, Rating: 5.6, Designers: []string{"Albert Lamorisse"}},
		{ID: 3, Name: "Azul", Year: 2017, Category: "Abstract", Source: "mirror",
			PlayersMin: 2, PlayersMax: 4, Rating: 7.8, Designers: []string{"Michael Kiesling"}},
	}
	if err := repo.ReplaceAll(context.Background(), rows); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo := newTestRepo(t)
	seedGames(t, repo)

	g, err := repo.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g == nil || g.Name != "Catan" || g.Year != 1995 {
		t.Fatalf("got %+v", g)
	}
	if !reflect.DeepEqual(g.Designers, []string{"Klaus Teuber"}) {
		t.Fatalf("designers = %v", g.Designers)
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	repo := newTestRepo(t)
	seedGames(t, repo)

	g, err := repo.GetByID(context.Background(), 99)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g != nil {
		t.Fatalf("got %+v, want nil", g)
	}
}

func TestListDefaultOrderIsIDAscending(t *testing.T) {
	repo := newTestRepo(t)
	seedGames(t, repo)

	got, err := repo.List(context.Background(), ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].ID >= got[i].ID {
			t.Fatalf("not id-ascending: %d then %d", got[i-1].ID, got[i].ID)
		}
	}
}

func TestListFilters(t *testing.T) {
	repo := newTestRepo(t)
	seedGames(t, repo)
	ctx := context.Background()

	cases := []struct {
		name  string
		query ListQuery
		want  []int64
	}{
		{name: "keyword in name", query: ListQuery{Q: "cat"}, want: []int64{1}},
		{name: "keyword in designers", query: ListQuery{Q: "kiesling"}, want: []int64{3}},
		{name: "category", query: ListQuery{Category: "wargame"}, want: []int64{2}},
		{name: "source", query: ListQuery{Source: "mirror"}, want: []int64{3}},
		{name: "year", query: ListQuery{Year: 1995}, want: []int64{1}},
		{name: "players fits range", query: ListQuery{Players: 5}, want: []int64{2}},
		{name: "players lower bound", query: ListQuery{Players: 2}, want: []int64{2, 3}},
		{name: "no match", query: ListQuery{Q: "monopoly"}, want: []int64{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := repo.List(ctx, tc.query)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			got := make([]int64, 0, len(rows))
			for _, g := range rows {
				got = append(got, g.ID)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}

			total, err := repo.Count(ctx, tc.query)
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if total != len(tc.want) {
				t.Fatalf("count = %d, want %d", total, len(tc.want))
			}
		})
	}
}

func TestListSortAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	seedGames(t, repo)

	rows, err := repo.List(context.Background(), ListQuery{Sort: "rating", Order: "desc"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if rows[0].Name != "Azul" || rows[2].Name != "Risk" {
		t.Fatalf("unexpected order: %s .. %s", rows[0].Name, rows[2].Name)
	}

	// unknown sort column falls back to id
	rows, err = repo.List(context.Background(), ListQuery{Sort: "password_hash"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if rows[0].ID != 1 {
		t.Fatalf("fallback order broken: first id %d", rows[0].ID)
	}
}

func TestListPagination(t *testing.T) {
	repo := newTestRepo(t)
	seedGames(t, repo)
	ctx := context.Background()

	page1, err := repo.List(ctx, ListQuery{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	page2, err := repo.List(ctx, ListQuery{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page1) != 2 || len(page2) != 1 {
		t.Fatalf("pages: %d, %d", len(page1), len(page2))
	}
	if page1[1].ID >= page2[0].ID {
		t.Fatalf("pages overlap: %d then %d", page1[1].ID, page2[0].ID)
	}

	// oversized limit is clamped, nonsense offset is floored
	rows, err := repo.List(ctx, ListQuery{Limit: 100000, Offset: -5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
}

func TestReplaceAllSwapsDataset(t *testing.T) {
	repo := newTestRepo(t)
	seedGames(t, repo)
	ctx := context.Background()

	if err := repo.ReplaceAll(ctx, []models.GameRow{
		{ID: 10, Name: "Carcassonne", Year: 2000},
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	all, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 || all[0].ID != 10 {
		t.Fatalf("got %+v", all)
	}
}

func TestReplaceAllRollsBackOnConflict(t *testing.T) {
	repo := newTestRepo(t)
	seedGames(t, repo)
	ctx := context.Background()

	// duplicate primary key makes the transaction fail
	err := repo.ReplaceAll(ctx, []models.GameRow{
		{ID: 7, Name: "A"},
		{ID: 7, Name: "B"},
	})
	if err == nil {
		t.Fatal("expected insert conflict")
	}

	// old dataset still intact
	var total int
	if err := repo.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&total); err != nil && err != sql.ErrNoRows {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("dataset damaged: %d rows", total)
	}
}
