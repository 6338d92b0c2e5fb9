package persister

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
	rank      BIGINT NOT NULL PRIMARY KEY,
	term      TEXT NOT NULL,
	category  TEXT NOT NULL CHECK (category IN ('popular', 'common', 'rare')),
	frequency BIGINT NOT NULL CHECK (frequency > 0)
)`

// Provision creates the result tables if they do not exist. With recreate,
// existing tables are dropped first. All tables are handled in one
// transaction; failures wrap ErrSetup.
func (p *Persister) Provision(ctx context.Context, tables []string, recreate bool) error {
	for _, table := range tables {
		if !config.ValidIdentifier(table) {
			return fmt.Errorf("%w: invalid table name %q", apperrors.ErrSetup, table)
		}
	}
	err := p.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, table := range tables {
			quoted := p.db.QuoteIdent(table)
			if recreate {
				if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoted); err != nil {
					return fmt.Errorf("dropping %s: %w", table, err)
				}
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(createTableSQL, quoted)); err != nil {
				return fmt.Errorf("creating %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: provisioning tables: %w", apperrors.ErrSetup, err)
	}
	p.logger.Info("result tables provisioned", "tables", tables, "recreate", recreate)
	return nil
}
