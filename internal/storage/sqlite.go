package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite learned-rule database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS learned_rules (
			pattern_hash TEXT PRIMARY KEY,
			matcher TEXT NOT NULL,
			rewrite TEXT,
			support INTEGER NOT NULL,
			confidence REAL NOT NULL,
			reverts INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rules_support ON learned_rules(support);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveRules upserts proposals in one transaction. Support accumulates
// across batches; confidence keeps the stronger value.
func (s *SQLiteStore) SaveRules(ctx context.Context, rules []engine.LearnedRule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO learned_rules (pattern_hash, matcher, rewrite, support, confidence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pattern_hash) DO UPDATE SET
			matcher=excluded.matcher,
			rewrite=excluded.rewrite,
			support=learned_rules.support + excluded.support,
			confidence=MAX(learned_rules.confidence, excluded.confidence),
			updated_at=excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range rules {
		if _, err := stmt.Exec(r.PatternHash, r.Matcher, r.Rewrite, r.Support, r.Confidence, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadRules returns persisted rules ordered by support, confidence already
// decayed by recorded reverts.
func (s *SQLiteStore) LoadRules(ctx context.Context) ([]engine.LearnedRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern_hash, matcher, rewrite, support, confidence, reverts
		FROM learned_rules ORDER BY support DESC, pattern_hash
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query learned rules: %w", err)
	}
	defer rows.Close()

	var out []engine.LearnedRule
	for rows.Next() {
		var r engine.LearnedRule
		var rewriteCol sql.NullString
		var reverts int
		if err := rows.Scan(&r.PatternHash, &r.Matcher, &rewriteCol, &r.Support, &r.Confidence, &reverts); err != nil {
			return nil, fmt.Errorf("failed to scan learned rule: %w", err)
		}
		r.Rewrite = rewriteCol.String
		r.Confidence = decayed(r.Confidence, reverts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordRevert increments a rule's revert counter.
func (s *SQLiteStore) RecordRevert(ctx context.Context, patternHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE learned_rules SET reverts = reverts + 1, updated_at = ? WHERE pattern_hash = ?
	`, time.Now(), patternHash)
	return err
}

// decayed halves confidence per recorded revert.
func decayed(confidence float64, reverts int) float64 {
	for i := 0; i < reverts; i++ {
		confidence /= 2
	}
	return confidence
}
