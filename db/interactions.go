package db

import (
	"context"
	"database/sql"
	"time"
)

// Interaction is one appended row of the interaction log. Rows are never
// updated after insert; the table is the durable record of every processed
// turn, including filtered and failed ones.
type Interaction struct {
	ID         int64
	TurnID     string
	Channel    string
	Username   string
	Message    string
	Outcome    string
	Response   string
	Failure    string
	GenLatency time.Duration
	CreatedAt  time.Time
}

// InteractionStore appends and reads interaction rows. Concurrent appends are
// safe; Postgres serializes the inserts so records never interleave.
type InteractionStore struct {
	DB *sql.DB
}

// Insert appends one interaction record.
func (s *InteractionStore) Insert(ctx context.Context, in Interaction) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO interactions (turn_id, channel, username, message, outcome, response, failure, gen_latency_ms)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		in.TurnID, in.Channel, in.Username, in.Message, in.Outcome, in.Response, in.Failure, in.GenLatency.Milliseconds())
	return err
}

// Recent returns up to limit interactions, newest first.
func (s *InteractionStore) Recent(ctx context.Context, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, turn_id, channel, username, message, outcome, response, failure, gen_latency_ms, created_at
		 FROM interactions ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []Interaction
	for rows.Next() {
		var in Interaction
		var latencyMS int64
		if err := rows.Scan(&in.ID, &in.TurnID, &in.Channel, &in.Username, &in.Message, &in.Outcome, &in.Response, &in.Failure, &latencyMS, &in.CreatedAt); err != nil {
			return nil, err
		}
		in.GenLatency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, in)
	}
	return out, rows.Err()
}

// OutcomeCounts returns how many interactions ended in each outcome.
func (s *InteractionStore) OutcomeCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM interactions GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}
