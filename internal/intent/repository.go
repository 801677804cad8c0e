package intent

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the catalog repository needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresCatalog reads intent_configurations.
type PostgresCatalog struct {
	pool PgxPool
}

// NewPostgresCatalog returns nil when pool is nil.
func NewPostgresCatalog(pool PgxPool) *PostgresCatalog {
	if pool == nil {
		return nil
	}
	return &PostgresCatalog{pool: pool}
}

const selectActiveIntents = `
	SELECT id, intent_name, display_name, keywords, synonyms, typos, phrases,
	       min_confidence, priority, response_type, is_checkpoint, is_active
	FROM intent_configurations
	WHERE is_active = true
	ORDER BY priority DESC, intent_name ASC
`

// LoadActiveIntents returns active definitions, highest priority first.
func (c *PostgresCatalog) LoadActiveIntents(ctx context.Context) ([]Definition, error) {
	rows, err := c.pool.Query(ctx, selectActiveIntents)
	if err != nil {
		return nil, fmt.Errorf("intent: query catalog: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		var d Definition
		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.DisplayName,
			&d.Keywords,
			&d.Synonyms,
			&d.Typos,
			&d.Phrases,
			&d.MinConfidence,
			&d.Priority,
			&d.ResponseType,
			&d.IsCheckpoint,
			&d.IsActive,
		); err != nil {
			return nil, fmt.Errorf("intent: scan catalog row: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("intent: iterate catalog: %w", err)
	}
	return defs, nil
}
