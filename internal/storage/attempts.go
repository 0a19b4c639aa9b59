package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Attempt is one recovery state transition.
type Attempt struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id"`
	Fingerprint string    `json:"fingerprint"`
	Attempt     int       `json:"attempt"`
	State       string    `json:"state"`
	Categories  []string  `json:"categories"`
	Fixes       []string  `json:"fixes"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordAttempt appends a recovery transition.
func (d *DB) RecordAttempt(ctx context.Context, a Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	cats, err := json.Marshal(nonNil(a.Categories))
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	fixes, err := json.Marshal(nonNil(a.Fixes))
	if err != nil {
		return fmt.Errorf("marshal fixes: %w", err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO recovery_attempts (request_id, fingerprint, attempt, state, categories, fixes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.RequestID, a.Fingerprint, a.Attempt, a.State, string(cats), string(fixes), a.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record attempt %s: %w", a.RequestID, err)
	}
	return nil
}

// Attempts returns the transitions recorded for one request, in order.
func (d *DB) Attempts(ctx context.Context, requestID string) ([]Attempt, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, request_id, fingerprint, attempt, state, categories, fixes, created_at
		 FROM recovery_attempts WHERE request_id = ? ORDER BY id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list attempts %s: %w", requestID, err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a           Attempt
			cats, fixes string
			createdMS   int64
		)
		if err := rows.Scan(&a.ID, &a.RequestID, &a.Fingerprint, &a.Attempt, &a.State, &cats, &fixes, &createdMS); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if err := json.Unmarshal([]byte(cats), &a.Categories); err != nil {
			return nil, fmt.Errorf("unmarshal categories: %w", err)
		}
		if err := json.Unmarshal([]byte(fixes), &a.Fixes); err != nil {
			return nil, fmt.Errorf("unmarshal fixes: %w", err)
		}
		a.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, a)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
