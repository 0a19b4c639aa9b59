package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Generation is one finished generate, modify or recover request.
type Generation struct {
	ID              int64         `json:"id"`
	RequestID       string        `json:"request_id"`
	Operation       string        `json:"operation"`
	AppName         string        `json:"app_name"`
	Description     string        `json:"description"`
	Success         bool          `json:"success"`
	FallbackUsed    bool          `json:"fallback_used"`
	HealingApplied  bool          `json:"healing_applied"`
	ValidationScore float64       `json:"validation_score"`
	FileCount       int           `json:"file_count"`
	Duration        time.Duration `json:"duration"`
	Error           string        `json:"error,omitempty"`
	Stages          []string      `json:"stages"`
	Providers       []string      `json:"providers"`
	Errors          []string      `json:"errors"`
	CreatedAt       time.Time     `json:"created_at"`
}

// generationData holds the list fields stored in the data column.
type generationData struct {
	Stages    []string `json:"stages"`
	Providers []string `json:"providers"`
	Errors    []string `json:"errors"`
}

// RecordGeneration inserts g and returns its row ID. A zero CreatedAt is set
// to now.
func (d *DB) RecordGeneration(ctx context.Context, g Generation) (int64, error) {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	data, err := json.Marshal(generationData{Stages: g.Stages, Providers: g.Providers, Errors: g.Errors})
	if err != nil {
		return 0, fmt.Errorf("marshal generation: %w", err)
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO generations (request_id, operation, app_name, description, success, fallback_used,
			healing_applied, validation_score, file_count, duration_ms, error, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.RequestID, g.Operation, g.AppName, g.Description, g.Success, g.FallbackUsed,
		g.HealingApplied, g.ValidationScore, g.FileCount, g.Duration.Milliseconds(), g.Error,
		string(data), g.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("record generation %s: %w", g.RequestID, err)
	}
	return res.LastInsertId()
}

// RecentGenerations returns up to limit generations, newest first.
func (d *DB) RecentGenerations(ctx context.Context, limit int) ([]Generation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, request_id, operation, app_name, description, success, fallback_used, healing_applied,
			validation_score, file_count, duration_ms, error, data, created_at
		 FROM generations ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var out []Generation
	for rows.Next() {
		var (
			g          Generation
			durationMS int64
			createdMS  int64
			data       string
		)
		if err := rows.Scan(&g.ID, &g.RequestID, &g.Operation, &g.AppName, &g.Description, &g.Success,
			&g.FallbackUsed, &g.HealingApplied, &g.ValidationScore, &g.FileCount, &durationMS, &g.Error,
			&data, &createdMS); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		var extra generationData
		if err := json.Unmarshal([]byte(data), &extra); err != nil {
			return nil, fmt.Errorf("unmarshal generation %s: %w", g.RequestID, err)
		}
		g.Stages, g.Providers, g.Errors = extra.Stages, extra.Providers, extra.Errors
		g.Duration = time.Duration(durationMS) * time.Millisecond
		g.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, g)
	}
	return out, rows.Err()
}
