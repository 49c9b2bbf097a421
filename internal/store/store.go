package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Store struct {
	DB *sql.DB
}

// AnswerRecord is one answered request kept in the journal.
type AnswerRecord struct {
	ID             string
	RequestID      int
	Query          string
	RefinedQuery   string
	MultipleChoice bool
	Variant        *int
	Reasoning      string
	Sources        []string
	PagesUsed      int
	Duration       time.Duration
	CreatedAt      time.Time
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// RecordAnswer appends rec to the journal. A blank ID gets a fresh uuid.
func (s *Store) RecordAnswer(ctx context.Context, rec AnswerRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	sources := rec.Sources
	if sources == nil {
		sources = []string{}
	}
	var variant sql.NullInt64
	if rec.Variant != nil {
		variant = sql.NullInt64{Int64: int64(*rec.Variant), Valid: true}
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO answers (id, request_id, query, refined_query, multiple_choice, variant, reasoning, sources, pages_used, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())`,
		rec.ID, rec.RequestID, rec.Query, rec.RefinedQuery, rec.MultipleChoice, variant,
		rec.Reasoning, pq.Array(sources), rec.PagesUsed, rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

// RecentAnswers returns up to limit records, newest first.
func (s *Store) RecentAnswers(ctx context.Context, limit int) ([]AnswerRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, request_id, query, refined_query, multiple_choice, variant, reasoning, sources, pages_used, duration_ms, created_at
FROM answers
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var out []AnswerRecord
	for rows.Next() {
		var (
			rec        AnswerRecord
			variant    sql.NullInt64
			sources    pq.StringArray
			durationMS int64
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Query, &rec.RefinedQuery, &rec.MultipleChoice,
			&variant, &rec.Reasoning, &sources, &rec.PagesUsed, &durationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if variant.Valid {
			v := int(variant.Int64)
			rec.Variant = &v
		}
		rec.Sources = []string(sources)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}
