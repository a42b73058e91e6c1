package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lox/bill-relevance-ranker/internal/types"
)

const dateLayout = "2006-01-02"

// InsertProjects stores export rows in one transaction and returns how many were
// new. Rows whose norm is already present are skipped. Empty or malformed
// dates are stored as NULL.
func (d *DB) InsertProjects(ctx context.Context, projects []types.Project) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO projects (
			norm, type_description, presented_at, authors, party, summary,
			document_url, page_url, indexing, last_stage, last_stage_at, situation
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range projects {
		result, err := stmt.ExecContext(ctx,
			p.Norm,
			nullString(p.TypeDescription),
			d.nullDate(p.Norm, p.PresentedAt),
			nullString(p.Authors),
			nullString(p.Party),
			nullString(p.Summary),
			nullString(p.DocumentURL),
			nullString(p.PageURL),
			nullString(p.Indexing),
			nullString(p.LastStage),
			d.nullDate(p.Norm, p.LastStageAt),
			nullString(p.Situation),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert project %s: %w", p.Norm, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit projects: %w", err)
	}
	d.logger.Debug("Inserted projects", "rows", len(projects), "inserted", inserted)
	return inserted, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (d *DB) nullDate(norm, s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		d.logger.Debug("Dropping malformed date", "norm", norm, "date", s)
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

type projectQuery struct {
	minYear   int
	maxYear   int
	party     string
	situation string
	keyword   string
	limit     int
}

// ProjectOption narrows ListProjects and CountProjectsBy
type ProjectOption func(*projectQuery)

// WithYearRange keeps projects presented between minYear and maxYear inclusive.
// Zero leaves that side open.
func WithYearRange(minYear, maxYear int) ProjectOption {
	return func(q *projectQuery) {
		q.minYear = minYear
		q.maxYear = maxYear
	}
}

// WithParty keeps projects whose party contains party, case-insensitively
func WithParty(party string) ProjectOption {
	return func(q *projectQuery) {
		q.party = party
	}
}

// WithSituation keeps projects whose situation contains situation, case-insensitively
func WithSituation(situation string) ProjectOption {
	return func(q *projectQuery) {
		q.situation = situation
	}
}

// WithKeyword keeps projects mentioning keyword in their indexing or summary
func WithKeyword(keyword string) ProjectOption {
	return func(q *projectQuery) {
		q.keyword = keyword
	}
}

// WithLimit caps the number of listed projects
func WithLimit(limit int) ProjectOption {
	return func(q *projectQuery) {
		q.limit = limit
	}
}

// likePattern escapes LIKE wildcards in s and wraps it for a contains match
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// where builds the WHERE clause and its arguments; user input only ever
// travels as arguments
func (q projectQuery) where() (string, []any) {
	var conds []string
	var args []any
	if q.minYear > 0 {
		conds = append(conds, "CAST(substr(presented_at, 1, 4) AS INTEGER) >= ?")
		args = append(args, q.minYear)
	}
	if q.maxYear > 0 {
		conds = append(conds, "CAST(substr(presented_at, 1, 4) AS INTEGER) <= ?")
		args = append(args, q.maxYear)
	}
	if q.minYear > 0 || q.maxYear > 0 {
		conds = append(conds, "presented_at IS NOT NULL")
	}
	if q.party != "" {
		conds = append(conds, `party LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(q.party))
	}
	if q.situation != "" {
		conds = append(conds, `situation LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(q.situation))
	}
	if q.keyword != "" {
		conds = append(conds, `(indexing LIKE ? ESCAPE '\' OR summary LIKE ? ESCAPE '\')`)
		args = append(args, likePattern(q.keyword), likePattern(q.keyword))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// ListProjects returns stored projects, most recently presented first
func (d *DB) ListProjects(ctx context.Context, opts ...ProjectOption) ([]types.Project, error) {
	var q projectQuery
	for _, opt := range opts {
		opt(&q)
	}
	where, args := q.where()

	query := `
		SELECT norm, type_description, presented_at, authors, party, summary,
			document_url, page_url, indexing, last_stage, last_stage_at, situation
		FROM projects ` + where + `
		ORDER BY presented_at DESC, norm ASC`
	if q.limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []types.Project
	for rows.Next() {
		var p types.Project
		var description, presentedAt, authors, party, summary, documentURL, pageURL,
			indexing, lastStage, lastStageAt, situation sql.NullString
		err := rows.Scan(&p.Norm, &description, &presentedAt, &authors, &party, &summary,
			&documentURL, &pageURL, &indexing, &lastStage, &lastStageAt, &situation)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.TypeDescription = description.String
		p.PresentedAt = presentedAt.String
		p.Authors = authors.String
		p.Party = party.String
		p.Summary = summary.String
		p.DocumentURL = documentURL.String
		p.PageURL = pageURL.String
		p.Indexing = indexing.String
		p.LastStage = lastStage.String
		p.LastStageAt = lastStageAt.String
		p.Situation = situation.String
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// ProjectCount is the number of projects sharing a value of a grouping column
type ProjectCount struct {
	Value string
	Count int
}

// groupColumns maps public grouping names to SQL expressions; nothing outside
// this map is ever interpolated into a query
var groupColumns = map[string]string{
	"year":        "substr(presented_at, 1, 4)",
	"party":       "party",
	"situation":   "situation",
	"description": "type_description",
	"author":      "authors",
}

// GroupColumns lists the names accepted by CountProjectsBy
func GroupColumns() []string {
	return []string{"year", "party", "situation", "description", "author"}
}

// CountProjectsBy counts projects per distinct value of column, skipping empty
// values. Years are ordered chronologically, other columns by descending count.
func (d *DB) CountProjectsBy(ctx context.Context, column string, opts ...ProjectOption) ([]ProjectCount, error) {
	expr, ok := groupColumns[column]
	if !ok {
		return nil, fmt.Errorf("cannot group projects by %q", column)
	}

	var q projectQuery
	for _, opt := range opts {
		opt(&q)
	}
	where, args := q.where()
	notEmpty := expr + " IS NOT NULL AND " + expr + " <> ''"
	if where == "" {
		where = "WHERE " + notEmpty
	} else {
		where += " AND " + notEmpty
	}

	order := "total DESC, value ASC"
	if column == "year" {
		order = "value ASC"
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+expr+` AS value, COUNT(*) AS total
		FROM projects `+where+`
		GROUP BY value
		ORDER BY `+order, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects by %s: %w", column, err)
	}
	defer rows.Close()

	var counts []ProjectCount
	for rows.Next() {
		var c ProjectCount
		if err := rows.Scan(&c.Value, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counts: %w", err)
	}
	return counts, nil
}
