package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"pricing-intel-api/pkg/models"
)

// ErrNotFound は対象レコードが存在しないことを表します。
var ErrNotFound = errors.New("record not found")

// PostgresStore は分析ラン履歴とナレッジベース（人手フィードバック）をPostgreSQLに永続化します。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore は接続を開いて疎通を確認し、スキーマを適用した状態で返します。
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	// サーバーレスPostgres（Neon等）はコールドスタートがあるためリトライする
	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id                 UUID PRIMARY KEY,
			name               TEXT        NOT NULL,
			status             TEXT        NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at       TIMESTAMPTZ,
			devices            JSONB       NOT NULL DEFAULT '[]',
			results            JSONB       NOT NULL DEFAULT '[]',
			feedback_submitted BOOLEAN     NOT NULL DEFAULT FALSE
		);

		CREATE TABLE IF NOT EXISTS knowledge_base (
			id                      UUID PRIMARY KEY,
			brand                   TEXT        NOT NULL,
			model                   TEXT        NOT NULL,
			ram                     TEXT        NOT NULL,
			storage                 TEXT        NOT NULL,
			condition_tier          TEXT        NOT NULL,
			recommended_price       INTEGER     NOT NULL,
			human_approved_price    INTEGER     NOT NULL,
			delta                   INTEGER     NOT NULL,
			velocity_category       TEXT        NOT NULL,
			human_velocity_override TEXT,
			feedback_note           TEXT,
			run_id                  UUID        NOT NULL,
			created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created_at        ON runs(created_at);
		CREATE INDEX IF NOT EXISTS idx_knowledge_base_run_id  ON knowledge_base(run_id);
	`)
	return err
}

// CreateRun は新しいランを保存します。
func (s *PostgresStore) CreateRun(run *models.Run) error {
	devices, err := json.Marshal(run.Devices)
	if err != nil {
		return fmt.Errorf("postgres: marshal devices: %w", err)
	}
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("postgres: marshal results: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, name, status, created_at, completed_at, devices, results, feedback_submitted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.ID, run.Name, run.Status, run.CreatedAt, run.CompletedAt, devices, results, run.FeedbackSubmitted)
	if err != nil {
		return fmt.Errorf("postgres: insert run: %w", err)
	}
	return nil
}

// CompleteRun は処理済みランの状態と結果を更新します。
func (s *PostgresStore) CompleteRun(id, status string, completedAt time.Time, results []models.DeviceResult) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("postgres: marshal results: %w", err)
	}

	_, err = s.db.Exec(`
		UPDATE runs SET status = $2, completed_at = $3, results = $4 WHERE id = $1
	`, id, status, completedAt, payload)
	if err != nil {
		return fmt.Errorf("postgres: update run: %w", err)
	}
	return nil
}

// GetRun はIDでランを1件取得します。存在しない場合はErrNotFoundを返します。
func (s *PostgresStore) GetRun(id string) (*models.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, name, status, created_at, completed_at, devices, results, feedback_submitted
		FROM runs WHERE id = $1
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get run: %w", err)
	}
	return run, nil
}

// ListRuns は新しい順に全ランを返します。
func (s *PostgresStore) ListRuns() ([]*models.Run, error) {
	rows, err := s.db.Query(`
		SELECT id, name, status, created_at, completed_at, devices, results, feedback_submitted
		FROM runs ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	run := &models.Run{}
	var completedAt sql.NullTime
	var devices, results []byte

	if err := row.Scan(
		&run.ID, &run.Name, &run.Status, &run.CreatedAt,
		&completedAt, &devices, &results, &run.FeedbackSubmitted,
	); err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if err := json.Unmarshal(devices, &run.Devices); err != nil {
		return nil, fmt.Errorf("unmarshal devices: %w", err)
	}
	if err := json.Unmarshal(results, &run.Results); err != nil {
		return nil, fmt.Errorf("unmarshal results: %w", err)
	}
	return run, nil
}

// InsertKnowledgeBaseEntries はフィードバックのエントリをまとめて保存します。
func (s *PostgresStore) InsertKnowledgeBaseEntries(entries []models.KnowledgeBaseEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO knowledge_base (
			id, brand, model, ram, storage, condition_tier,
			recommended_price, human_approved_price, delta,
			velocity_category, human_velocity_override, feedback_note,
			run_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`)
	if err != nil {
		return fmt.Errorf("postgres: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(
			e.ID, e.Brand, e.Model, e.RAM, e.Storage, e.ConditionTier,
			e.RecommendedPrice, e.HumanApprovedPrice, e.Delta,
			e.VelocityCategory, e.HumanVelocityOverride, e.FeedbackNote,
			e.RunID, e.CreatedAt,
		); err != nil {
			return fmt.Errorf("postgres: insert knowledge base entry: %w", err)
		}
	}

	return tx.Commit()
}

// MarkFeedbackSubmitted はランのフィードバック提出済みフラグを立てます。
func (s *PostgresStore) MarkFeedbackSubmitted(runID string) error {
	_, err := s.db.Exec(`UPDATE runs SET feedback_submitted = TRUE WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("postgres: mark feedback submitted: %w", err)
	}
	return nil
}

// ListKnowledgeBaseEntries は新しい順に全エントリを返します。
func (s *PostgresStore) ListKnowledgeBaseEntries() ([]models.KnowledgeBaseEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, brand, model, ram, storage, condition_tier,
		       recommended_price, human_approved_price, delta,
		       velocity_category, human_velocity_override, feedback_note,
		       run_id, created_at
		FROM knowledge_base ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list knowledge base: %w", err)
	}
	defer rows.Close()

	var entries []models.KnowledgeBaseEntry
	for rows.Next() {
		var e models.KnowledgeBaseEntry
		var override, note sql.NullString
		if err := rows.Scan(
			&e.ID, &e.Brand, &e.Model, &e.RAM, &e.Storage, &e.ConditionTier,
			&e.RecommendedPrice, &e.HumanApprovedPrice, &e.Delta,
			&e.VelocityCategory, &override, &note,
			&e.RunID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan knowledge base entry: %w", err)
		}
		if override.Valid {
			e.HumanVelocityOverride = &override.String
		}
		if note.Valid {
			e.FeedbackNote = &note.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close は接続を閉じます。
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
