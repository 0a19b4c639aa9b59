package storage

import (
	"context"
	"fmt"
)

// FingerprintCount is how often one error fingerprint reached recovery.
type FingerprintCount struct {
	Fingerprint string `json:"fingerprint"`
	Attempts    int    `json:"attempts"`
	Exhausted   int    `json:"exhausted"`
}

// Stats aggregates the whole history.
type Stats struct {
	Generations     int                `json:"generations"`
	Succeeded       int                `json:"succeeded"`
	Fallbacks       int                `json:"fallbacks"`
	Healed          int                `json:"healed"`
	SuccessRate     float64            `json:"success_rate"`
	AverageScore    float64            `json:"average_validation_score"`
	Attempts        int                `json:"attempts"`
	TopFingerprints []FingerprintCount `json:"top_fingerprints"`
}

// Stats returns success rates and the most frequent recovery fingerprints.
func (d *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(success), 0),
			COALESCE(SUM(fallback_used), 0),
			COALESCE(SUM(healing_applied), 0),
			COALESCE(AVG(validation_score), 0)
		 FROM generations`,
	).Scan(&s.Generations, &s.Succeeded, &s.Fallbacks, &s.Healed, &s.AverageScore)
	if err != nil {
		return s, fmt.Errorf("generation stats: %w", err)
	}
	if s.Generations > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.Generations)
	}

	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recovery_attempts WHERE state = 'ANALYZING'`,
	).Scan(&s.Attempts); err != nil {
		return s, fmt.Errorf("attempt stats: %w", err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT fingerprint,
			SUM(CASE WHEN state = 'ANALYZING' THEN 1 ELSE 0 END) AS attempts,
			SUM(CASE WHEN state = 'EXHAUSTED' THEN 1 ELSE 0 END) AS exhausted
		 FROM recovery_attempts
		 GROUP BY fingerprint
		 ORDER BY attempts DESC, fingerprint
		 LIMIT 5`)
	if err != nil {
		return s, fmt.Errorf("fingerprint stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fc FingerprintCount
		if err := rows.Scan(&fc.Fingerprint, &fc.Attempts, &fc.Exhausted); err != nil {
			return s, fmt.Errorf("scan fingerprint stats: %w", err)
		}
		s.TopFingerprints = append(s.TopFingerprints, fc)
	}
	return s, rows.Err()
}
