package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/xaenox/doc-analyzer/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := NewPostgresStorageFromDB(db, logger)
	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("Connected to PostgreSQL", zap.String("host", config.Host), zap.String("dbname", config.DBName))
	return storage, nil
}

// NewPostgresStorageFromDB wraps an open handle without running migrations
func NewPostgresStorageFromDB(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{db: db, logger: logger}
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

// SaveAnalysis upserts on call_id, a repeated save for the same call replaces the record
func (s *PostgresStorage) SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	query := `
		INSERT INTO analyses (call_id, instance_id, agent_id, file_id, thread_id, run_id, run_status,
			mime_type, document_size, outcome, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (call_id) DO UPDATE SET
			agent_id = EXCLUDED.agent_id,
			file_id = EXCLUDED.file_id,
			thread_id = EXCLUDED.thread_id,
			run_id = EXCLUDED.run_id,
			run_status = EXCLUDED.run_status,
			outcome = EXCLUDED.outcome,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`

	var finished sql.NullTime
	if rec.FinishedAt != nil {
		finished = sql.NullTime{Time: *rec.FinishedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.CallID,
		rec.InstanceID,
		rec.AgentID,
		rec.FileID,
		rec.ThreadID,
		rec.RunID,
		string(rec.RunStatus),
		rec.MimeType,
		rec.DocumentSize,
		string(rec.Outcome),
		rec.Error,
		rec.StartedAt,
		finished,
	)
	if err != nil {
		return fmt.Errorf("error saving analysis: %w", err)
	}
	return nil
}

const selectAnalyses = `
		SELECT call_id, instance_id, agent_id, file_id, thread_id, run_id, run_status,
			mime_type, document_size, outcome, error, started_at, finished_at
		FROM analyses`

func (s *PostgresStorage) GetAnalysis(ctx context.Context, callID string) (*models.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, selectAnalyses+`
		WHERE call_id = $1`, callID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying analysis: %w", err)
	}
	return rec, nil
}

func (s *PostgresStorage) ListAnalyses(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectAnalyses+`
		ORDER BY started_at DESC
		LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("error querying analyses: %w", err)
	}
	defer rows.Close()

	var out []*models.AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning analysis: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyses: %w", err)
	}
	return out, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.AnalysisRecord, error) {
	var (
		rec       models.AnalysisRecord
		runStatus string
		outcome   string
		finished  sql.NullTime
	)
	err := row.Scan(
		&rec.CallID,
		&rec.InstanceID,
		&rec.AgentID,
		&rec.FileID,
		&rec.ThreadID,
		&rec.RunID,
		&runStatus,
		&rec.MimeType,
		&rec.DocumentSize,
		&outcome,
		&rec.Error,
		&rec.StartedAt,
		&finished,
	)
	if err != nil {
		return nil, err
	}
	rec.RunStatus = models.RunStatus(runStatus)
	rec.Outcome = models.Outcome(outcome)
	if finished.Valid {
		t := finished.Time
		rec.FinishedAt = &t
	}
	return &rec, nil
}
