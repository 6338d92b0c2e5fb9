// Package persister writes categorized entries to the destination database,
// one transaction per entity kind.
//
// Each kind has a table of the form:
//
//	CREATE TABLE words (
//	    rank      BIGINT PRIMARY KEY,
//	    term      TEXT NOT NULL,
//	    category  TEXT NOT NULL,
//	    frequency BIGINT NOT NULL
//	);
//
// On PostgreSQL rows are streamed with COPY; on SQLite a prepared INSERT is
// executed per row. Either way the whole batch commits or none of it does.
package persister

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/sqldb"
)

// Batch is the unit of persistence: all categorized entries of one kind.
type Batch struct {
	Kind    frequency.Kind
	Table   string
	Entries []frequency.CategorizedEntry
	// Replace deletes the table's existing rows in the same transaction.
	Replace bool
}

type Persister struct {
	db     *sqldb.Client
	logger *slog.Logger
}

func New(db *sqldb.Client) *Persister {
	return &Persister{
		db:     db,
		logger: slog.Default().With("component", "persister"),
	}
}

// Persist writes the batch in a single transaction. An empty batch without
// Replace is a no-op. Errors are StageErrors wrapping ErrPersist.
func (p *Persister) Persist(ctx context.Context, batch Batch) error {
	if !config.ValidIdentifier(batch.Table) {
		return p.fail(batch, fmt.Errorf("invalid table name %q", batch.Table))
	}
	if len(batch.Entries) == 0 && !batch.Replace {
		p.logger.Debug("empty batch, nothing to persist", "kind", batch.Kind, "table", batch.Table)
		return nil
	}

	err := p.db.InTx(ctx, func(tx *sql.Tx) error {
		if batch.Replace {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+p.db.QuoteIdent(batch.Table)); err != nil {
				return fmt.Errorf("clearing table: %w", err)
			}
		}
		if len(batch.Entries) == 0 {
			return nil
		}
		if p.db.Driver() == config.DriverPostgres {
			return copyRows(ctx, tx, batch)
		}
		return insertRows(ctx, tx, p.db, batch)
	})
	if err != nil {
		return p.fail(batch, err)
	}

	p.logger.Info("batch persisted",
		"kind", batch.Kind,
		"table", batch.Table,
		"rows", len(batch.Entries),
		"replace", batch.Replace,
	)
	return nil
}

func (p *Persister) fail(batch Batch, err error) error {
	return apperrors.Stage(string(batch.Kind), apperrors.StagePersist, batch.Table,
		fmt.Errorf("%w: writing %d rows: %w", apperrors.ErrPersist, len(batch.Entries), err))
}

func copyRows(ctx context.Context, tx *sql.Tx, batch Batch) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(batch.Table, "rank", "term", "category", "frequency"))
	if err != nil {
		return fmt.Errorf("preparing copy: %w", err)
	}
	defer stmt.Close()
	for _, e := range batch.Entries {
		if _, err := stmt.ExecContext(ctx, int64(e.Rank), e.Term, string(e.Category), e.Frequency); err != nil {
			return fmt.Errorf("copying rank %d: %w", e.Rank, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flushing copy: %w", err)
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, db *sqldb.Client, batch Batch) error {
	query := fmt.Sprintf("INSERT INTO %s (rank, term, category, frequency) VALUES (%s, %s, %s, %s)",
		db.QuoteIdent(batch.Table), db.Placeholder(1), db.Placeholder(2), db.Placeholder(3), db.Placeholder(4))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range batch.Entries {
		if _, err := stmt.ExecContext(ctx, int64(e.Rank), e.Term, string(e.Category), e.Frequency); err != nil {
			return fmt.Errorf("inserting rank %d: %w", e.Rank, err)
		}
	}
	return nil
}

// Load returns the persisted rows of table ordered by rank.
func (p *Persister) Load(ctx context.Context, table string) ([]frequency.CategorizedEntry, error) {
	if !config.ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	rows, err := p.db.DB.QueryContext(ctx,
		"SELECT rank, term, category, frequency FROM "+p.db.QuoteIdent(table)+" ORDER BY rank")
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var entries []frequency.CategorizedEntry
	for rows.Next() {
		var (
			e        frequency.CategorizedEntry
			rank     int64
			category string
		)
		if err := rows.Scan(&rank, &e.Term, &category, &e.Frequency); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		e.Rank = int(rank)
		if e.Category, err = frequency.ParseCategory(category); err != nil {
			return nil, fmt.Errorf("row rank %d in %s: %w", rank, table, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
