package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/dossier/internal/common"
	"github.com/Veraticus/dossier/internal/model"
)

const summaryColumns = `session_id, owner_identity, created_at, updated_at,
	total_files, processed_files, errors, clients_count, is_active`

// SaveSummary inserts or replaces the summary record of a session.
func (s *SQLiteStorage) SaveSummary(ctx context.Context, summary model.SessionSummary) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSummary(summary); err != nil {
		return err
	}

	updatedAt := summary.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = summary.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_summaries (`+summaryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			owner_identity = excluded.owner_identity,
			updated_at = excluded.updated_at,
			total_files = excluded.total_files,
			processed_files = excluded.processed_files,
			errors = excluded.errors,
			clients_count = excluded.clients_count,
			is_active = excluded.is_active
	`,
		summary.SessionID,
		summary.OwnerIdentity,
		formatTime(summary.CreatedAt),
		formatTime(updatedAt),
		summary.TotalFiles,
		summary.ProcessedFiles,
		summary.Errors,
		summary.ClientsCount,
		summary.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to save session summary: %w", err)
	}

	slog.Debug("Saved session summary",
		"session_id", summary.SessionID,
		"processed_files", summary.ProcessedFiles)
	return nil
}

// GetSummary retrieves the summary of one session.
func (s *SQLiteStorage) GetSummary(ctx context.Context, sessionID string) (*model.SessionSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+summaryColumns+` FROM session_summaries WHERE session_id = ?`, sessionID)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session summary %s: %w", sessionID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session summary: %w", err)
	}
	return summary, nil
}

// ListSummaries returns every stored summary, most recently updated first.
func (s *SQLiteStorage) ListSummaries(ctx context.Context) ([]model.SessionSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+summaryColumns+` FROM session_summaries ORDER BY updated_at DESC, session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list session summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []model.SessionSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session summary: %w", err)
		}
		summaries = append(summaries, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session summaries: %w", err)
	}
	return summaries, nil
}

// DeleteSummary removes the summary of one session. Deleting a missing record is not an error.
func (s *SQLiteStorage) DeleteSummary(ctx context.Context, sessionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_summaries WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session summary: %w", err)
	}
	return nil
}

// DeleteSummariesBefore removes summaries last updated before cutoff.
func (s *SQLiteStorage) DeleteSummariesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM session_summaries WHERE updated_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune session summaries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned session summaries: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*model.SessionSummary, error) {
	var (
		summary              model.SessionSummary
		createdAt, updatedAt string
	)
	err := row.Scan(
		&summary.SessionID,
		&summary.OwnerIdentity,
		&createdAt,
		&updatedAt,
		&summary.TotalFiles,
		&summary.ProcessedFiles,
		&summary.Errors,
		&summary.ClientsCount,
		&summary.IsActive,
	)
	if err != nil {
		return nil, err
	}

	if summary.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if summary.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	return &summary, nil
}

// Timestamps are stored as fixed-width UTC strings so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
