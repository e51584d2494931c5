package games

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"boardhub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

type ListQuery struct {
	Q        string // keyword search in name/designers
	Category string
	Source   string
	Year     int // 0 = no filter
	Players  int // 0 = no filter; count must fit players_min..players_max
	Sort     string
	Order    string
	Limit    int
	Offset   int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const gameColumns = `id, name, year, category, source, source_id,
	players_min, players_max, time_min, time_max, age_plus,
	weight, rating, description, url, image_url,
	gallery_images, alternate_names, designers, artists, publishers`

func (r *Repo) GetByID(ctx context.Context, id int64) (*models.GameRow, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id)

	g, err := scanGame(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByID: %w", err)
	}
	return g, nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	row := r.DB.QueryRowContext(ctx, sqlStr, args...)
	var total int
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.GameRow, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.GameRow, 0, clampLimit(q.Limit))
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// All returns every game in id order, for dataset export.
func (r *Repo) All(ctx context.Context) ([]models.GameRow, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("all query: %w", err)
	}
	defer rows.Close()

	var out []models.GameRow
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("all scan: %w", err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// ReplaceAll swaps the entire games table for the given rows in one
// transaction. Readers see either the old dataset or the new one, never a
// mix.
func (r *Repo) ReplaceAll(ctx context.Context, rows []models.GameRow) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM games`); err != nil {
		return fmt.Errorf("clear games: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO games (`+gameColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, g := range rows {
		if _, err := stmt.ExecContext(ctx,
			g.ID, g.Name, nullInt(g.Year), nullStr(g.Category), nullStr(g.Source), nullStr(g.SourceID),
			nullInt(g.PlayersMin), nullInt(g.PlayersMax), nullInt(g.TimeMin), nullInt(g.TimeMax), nullInt(g.AgePlus),
			nullFloat(g.Weight), nullFloat(g.Rating), nullStr(g.Description), nullStr(g.URL), nullStr(g.ImageURL),
			jsonList(g.GalleryImages), jsonList(g.AlternateNames), jsonList(g.Designers), jsonList(g.Artists), jsonList(g.Publishers),
		); err != nil {
			return fmt.Errorf("insert game %d: %w", g.ID, err)
		}
	}

	return tx.Commit()
}

// sortColumns whitelists the sortable fields; anything else falls back to
// the dataset's own id order.
var sortColumns = map[string]string{
	"id":     "id",
	"name":   "name",
	"year":   "year",
	"rating": "rating",
}

func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := `SELECT ` + gameColumns + ` FROM games`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM games`
	}

	var where []string
	var args []any

	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(designers) LIKE ?)")
		pat := "%" + strings.ToLower(kw) + "%"
		args = append(args, pat, pat)
	}
	if c := strings.TrimSpace(q.Category); c != "" {
		where = append(where, "LOWER(category) = ?")
		args = append(args, strings.ToLower(c))
	}
	if s := strings.TrimSpace(q.Source); s != "" {
		where = append(where, "LOWER(source) = ?")
		args = append(args, strings.ToLower(s))
	}
	if q.Year > 0 {
		where = append(where, "year = ?")
		args = append(args, q.Year)
	}
	if q.Players > 0 {
		where = append(where, "players_min <= ? AND players_max >= ?")
		args = append(args, q.Players, q.Players)
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		col, ok := sortColumns[strings.ToLower(strings.TrimSpace(q.Sort))]
		if !ok {
			col = "id"
		}
		dir := "ASC"
		if strings.EqualFold(strings.TrimSpace(q.Order), "desc") {
			dir = "DESC"
		}
		sqlStr += " ORDER BY " + col + " " + dir
		if col != "id" {
			// stable tie-break on the dataset order
			sqlStr += ", id ASC"
		}

		sqlStr += " LIMIT ? OFFSET ?"
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, clampLimit(q.Limit), offset)
	}

	return sqlStr, args
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*models.GameRow, error) {
	var (
		g          models.GameRow
		year       sql.NullInt64
		category   sql.NullString
		source     sql.NullString
		sourceID   sql.NullString
		playersMin sql.NullInt64
		playersMax sql.NullInt64
		timeMin    sql.NullInt64
		timeMax    sql.NullInt64
		agePlus    sql.NullInt64
		weight     sql.NullFloat64
		rating     sql.NullFloat64
		desc       sql.NullString
		gameURL    sql.NullString
		imageURL   sql.NullString
		gallery    sql.NullString
		altNames   sql.NullString
		designers  sql.NullString
		artists    sql.NullString
		publishers sql.NullString
	)

	if err := row.Scan(
		&g.ID, &g.Name, &year, &category, &source, &sourceID,
		&playersMin, &playersMax, &timeMin, &timeMax, &agePlus,
		&weight, &rating, &desc, &gameURL, &imageURL,
		&gallery, &altNames, &designers, &artists, &publishers,
	); err != nil {
		return nil, err
	}

	g.Year = int(year.Int64)
	g.Category = category.String
	g.Source = source.String
	g.SourceID = sourceID.String
	g.PlayersMin = int(playersMin.Int64)
	g.PlayersMax = int(playersMax.Int64)
	g.TimeMin = int(timeMin.Int64)
	g.TimeMax = int(timeMax.Int64)
	g.AgePlus = int(agePlus.Int64)
	g.Weight = weight.Float64
	g.Rating = rating.Float64
	g.Description = desc.String
	g.URL = gameURL.String
	g.ImageURL = imageURL.String

	g.GalleryImages = fromJSONList(gallery.String)
	g.AlternateNames = fromJSONList(altNames.String)
	g.Designers = fromJSONList(designers.String)
	g.Artists = fromJSONList(artists.String)
	g.Publishers = fromJSONList(publishers.String)
	return &g, nil
}

func jsonList(vals []string) string {
	if len(vals) == 0 {
		return "[]"
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func fromJSONList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s), &out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}
