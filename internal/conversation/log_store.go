package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wolfman30/whatsapp-leadbot/internal/intent"
)

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// LogRecord is one row of the conversation log.
type LogRecord struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	MessageID        string    `json:"message_id,omitempty"`
	Direction        string    `json:"direction"`
	Text             string    `json:"message_text"`
	DetectedIntent   string    `json:"detected_intent,omitempty"`
	IntentConfidence float64   `json:"intent_confidence,omitempty"`
	WasFallback      bool      `json:"was_fallback"`
	FallbackLevel    int       `json:"fallback_level,omitempty"`
	SentAt           time.Time `json:"sent_at"`
}

// IntentLogEntry is the audit trail for one detection.
type IntentLogEntry struct {
	UserID            uuid.UUID
	ConversationID    uuid.UUID
	Match             intent.Match
	OriginalMessage   string
	NormalizedMessage string
}

// LogStore persists the conversation and intent logs to PostgreSQL.
// A nil *LogStore discards everything.
type LogStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewLogStore returns nil when db is nil.
func NewLogStore(db *sql.DB) *LogStore {
	if db == nil {
		return nil
	}
	return &LogStore{db: db, now: time.Now}
}

// SaveIncoming stores a user message with the detected intent, if any, and
// returns its row id.
func (s *LogStore) SaveIncoming(ctx context.Context, userID uuid.UUID, messageID, text string, match *intent.Match) (uuid.UUID, error) {
	if s == nil || s.db == nil {
		return uuid.Nil, nil
	}
	id := uuid.New()
	var intentName sql.NullString
	var confidence sql.NullFloat64
	if match != nil {
		intentName = sql.NullString{String: match.IntentName, Valid: true}
		confidence = sql.NullFloat64{Float64: match.Confidence, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, message_id, direction, message_text, message_type,
			detected_intent, intent_confidence, was_fallback, sent_at)
		VALUES ($1, $2, $3, $4, $5, 'text', $6, $7, false, $8)
	`, id, userID, nullIfEmpty(messageID), DirectionIncoming, text, intentName, confidence, s.now().UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("conversation: insert incoming message: %w", err)
	}
	return id, nil
}

// SaveOutgoing stores a bot reply.
func (s *LogStore) SaveOutgoing(ctx context.Context, userID uuid.UUID, text string, wasFallback bool, fallbackLevel int) error {
	if s == nil || s.db == nil {
		return nil
	}
	var level sql.NullInt64
	if wasFallback {
		level = sql.NullInt64{Int64: int64(fallbackLevel), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, direction, message_text, message_type, was_fallback, fallback_level, sent_at)
		VALUES ($1, $2, $3, $4, 'text', $5, $6, $7)
	`, uuid.New(), userID, DirectionOutgoing, text, wasFallback, level, s.now().UTC())
	if err != nil {
		return fmt.Errorf("conversation: insert outgoing message: %w", err)
	}
	return nil
}

// SaveIntentLog stores the matched terms and per-token evidence of a detection.
func (s *LogStore) SaveIntentLog(ctx context.Context, entry IntentLogEntry) error {
	if s == nil || s.db == nil {
		return nil
	}
	evidence, err := json.Marshal(entry.Match.Evidence)
	if err != nil {
		return fmt.Errorf("conversation: encode evidence: %w", err)
	}
	var conversationID any
	if entry.ConversationID != uuid.Nil {
		conversationID = entry.ConversationID
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO intents_log (id, user_id, conversation_id, intent_name, confidence_score, detection_method,
			matched_keywords, fuzzy_matches, original_message, normalized_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, uuid.New(), entry.UserID, conversationID, entry.Match.IntentName, entry.Match.Confidence, string(entry.Match.Method),
		pq.Array(entry.Match.MatchedTerms), evidence, entry.OriginalMessage, entry.NormalizedMessage, s.now().UTC())
	if err != nil {
		return fmt.Errorf("conversation: insert intent log: %w", err)
	}
	return nil
}

// Recent returns the latest messages for a user, newest first.
func (s *LogStore) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]LogRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, message_id, direction, message_text, detected_intent, intent_confidence,
		       was_fallback, fallback_level, sent_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY sent_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: query recent: %w", err)
	}
	defer rows.Close()

	var out []LogRecord
	for rows.Next() {
		var rec LogRecord
		var messageID, intentName sql.NullString
		var confidence sql.NullFloat64
		var level sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.UserID, &messageID, &rec.Direction, &rec.Text, &intentName, &confidence,
			&rec.WasFallback, &level, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("conversation: scan recent: %w", err)
		}
		rec.MessageID = messageID.String
		rec.DetectedIntent = intentName.String
		rec.IntentConfidence = confidence.Float64
		rec.FallbackLevel = int(level.Int64)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate recent: %w", err)
	}
	return out, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
