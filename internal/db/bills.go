package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lox/bill-relevance-ranker/internal/types"
)

// StoreBills inserts or updates bills in one transaction. Updating a bill keeps
// its position in ListBills order.
func (d *DB) StoreBills(ctx context.Context, bills []types.Bill) error {
	if err := types.ValidateCorpus(bills); err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bills (
			id, type_code, type_description, number, year, summary, keywords, indexing,
			presented_at, document_url, page_url,
			situation, last_stage, last_stage_at, last_stage_dispatch,
			author, author_party, co_authors, collected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			type_code = excluded.type_code,
			type_description = excluded.type_description,
			number = excluded.number,
			year = excluded.year,
			summary = excluded.summary,
			keywords = excluded.keywords,
			indexing = excluded.indexing,
			presented_at = excluded.presented_at,
			document_url = excluded.document_url,
			page_url = excluded.page_url,
			situation = excluded.situation,
			last_stage = excluded.last_stage,
			last_stage_at = excluded.last_stage_at,
			last_stage_dispatch = excluded.last_stage_dispatch,
			author = excluded.author,
			author_party = excluded.author_party,
			co_authors = excluded.co_authors,
			collected_at = excluded.collected_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bills {
		coAuthors := b.CoAuthors
		if coAuthors == nil {
			coAuthors = []string{}
		}
		coAuthorsJSON, err := json.Marshal(coAuthors)
		if err != nil {
			return fmt.Errorf("failed to encode co-authors of %s: %w", b.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			b.ID, b.TypeCode, b.TypeDescription, b.Number, b.Year, b.Summary, b.Keywords, b.Indexing,
			b.PresentedAt, b.DocumentURL, b.PageURL,
			b.Status.Situation, b.Status.LastStage, b.Status.LastStageAt, b.Status.LastStageDispatch,
			b.Author, b.AuthorParty, string(coAuthorsJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to store bill %s: %w", b.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bills: %w", err)
	}
	d.logger.Debug("Stored bills", "count", len(bills))
	return nil
}

// ListBills returns the corpus in first-insertion order
func (d *DB) ListBills(ctx context.Context) ([]types.Bill, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, type_code, type_description, number, year, summary, keywords, indexing,
			presented_at, document_url, page_url,
			situation, last_stage, last_stage_at, last_stage_dispatch,
			author, author_party, co_authors
		FROM bills
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer rows.Close()

	var bills []types.Bill
	for rows.Next() {
		var b types.Bill
		var coAuthors string
		err := rows.Scan(
			&b.ID, &b.TypeCode, &b.TypeDescription, &b.Number, &b.Year, &b.Summary, &b.Keywords, &b.Indexing,
			&b.PresentedAt, &b.DocumentURL, &b.PageURL,
			&b.Status.Situation, &b.Status.LastStage, &b.Status.LastStageAt, &b.Status.LastStageDispatch,
			&b.Author, &b.AuthorParty, &coAuthors,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		if err := json.Unmarshal([]byte(coAuthors), &b.CoAuthors); err != nil {
			return nil, fmt.Errorf("failed to decode co-authors of %s: %w", b.ID, err)
		}
		if len(b.CoAuthors) == 0 {
			b.CoAuthors = nil
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bills: %w", err)
	}
	return bills, nil
}

// CountBills returns the number of bills in the corpus
func (d *DB) CountBills(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bills").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bills: %w", err)
	}
	return count, nil
}
