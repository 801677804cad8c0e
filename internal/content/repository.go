package content

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

// PgxPool is the subset of pgxpool.Pool the repository uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads bot_responses.
type PostgresRepository struct {
	pool   PgxPool
	logger *logging.Logger
}

func NewPostgresRepository(pool PgxPool, logger *logging.Logger) *PostgresRepository {
	if pool == nil {
		panic("content: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresRepository{pool: pool, logger: logger}
}

// ResponsesFor returns the active responses for an intent in send order.
// Rows whose fragmented payload does not validate are skipped.
func (r *PostgresRepository) ResponsesFor(ctx context.Context, intentName string) ([]Response, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT message_text, response_type
		FROM bot_responses
		WHERE intent_name = $1 AND is_active = true
		ORDER BY order_priority ASC
	`, intentName)
	if err != nil {
		return nil, fmt.Errorf("content: query responses for %s: %w", intentName, err)
	}
	defer rows.Close()

	var out []Response
	for rows.Next() {
		var raw []byte
		var responseType string
		if err := rows.Scan(&raw, &responseType); err != nil {
			return nil, fmt.Errorf("content: scan response: %w", err)
		}
		resp, err := decodeRow(raw, responseType)
		if err != nil {
			r.logger.Warn("skipping invalid bot response", "intent", intentName, "error", err)
			continue
		}
		out = append(out, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("content: iterate responses: %w", err)
	}
	return out, nil
}

func decodeRow(raw []byte, responseType string) (Response, error) {
	if responseType == "fragmented" {
		return ParseFragmented(raw)
	}
	// jsonb keeps plain messages as quoted strings
	var body string
	if err := json.Unmarshal(raw, &body); err == nil {
		return Text{Body: body}, nil
	}
	return Text{Body: string(raw)}, nil
}
