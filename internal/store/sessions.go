package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewSession records a playback session against a registered video. Session
// identifiers are dense and zero based, assigned inside the insert
// transaction.
func (s *Store) NewSession(ctx context.Context, videoID int64) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM videos WHERE id = ?`, videoID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check video: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("video %d is not registered", videoID)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&id); err != nil {
		return nil, fmt.Errorf("next session id: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO sessions (id, video_id, status, cpu_owned, error_message, created_at, updated_at)
         VALUES (?, ?, ?, 0, NULL, ?, ?)`,
		id,
		videoID,
		SessionWaiting,
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}

	return s.GetSession(ctx, id)
}

// GetSession fetches a session by identifier.
func (s *Store) GetSession(ctx context.Context, id int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// UpdateSession persists changes to an existing session. The CPU claim is
// managed exclusively through ClaimCPU and ReleaseCPU and is never written
// here.
func (s *Store) UpdateSession(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("session is nil")
	}
	session.UpdatedAt = time.Now().UTC()

	var o23, o35, o46 any
	if session.Result != nil {
		o23 = session.Result.O23
		o35 = session.Result.O35
		o46 = session.Result.O46
	}

	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions
         SET status = ?, result_o23 = ?, result_o35 = ?, result_o46 = ?,
             error_message = ?, updated_at = ?
         WHERE id = ?`,
		session.Status,
		o23,
		o35,
		o46,
		nullableString(session.ErrorMessage),
		session.UpdatedAt.Format(time.RFC3339Nano),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// NextSessionForStatuses returns the oldest session matching any of the
// provided statuses.
func (s *Store) NextSessionForStatuses(ctx context.Context, statuses ...SessionStatus) (*Session, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status IN (` + placeholders + `) ORDER BY id LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns sessions filtered by status set (or all sessions when
// no status is provided), ordered by identifier.
func (s *Store) ListSessions(ctx context.Context, statuses ...SessionStatus) ([]*Session, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + sessionColumns + ` FROM sessions`
	orderClause := ` ORDER BY id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// SessionsForVideo returns every session recorded against a video.
func (s *Store) SessionsForVideo(ctx context.Context, videoID int64) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE video_id = ? ORDER BY id`, videoID)
	if err != nil {
		return nil, fmt.Errorf("sessions for video: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ClaimCPU attempts to take the single-flight CPU gate for a session. It
// returns true when the claim succeeded and false when another session
// already holds it. The conditional update and the partial unique index on
// cpu_owned together make the claim atomic across concurrent lanes.
func (s *Store) ClaimCPU(ctx context.Context, sessionID int64) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions
         SET cpu_owned = 1, updated_at = ?
         WHERE id = ? AND cpu_owned = 0
           AND NOT EXISTS (SELECT 1 FROM sessions WHERE cpu_owned = 1)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		sessionID,
	)
	if err != nil {
		return false, fmt.Errorf("claim cpu: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReleaseCPU releases the CPU gate held by a session. Releasing a session
// that does not hold the gate is a no-op.
func (s *Store) ReleaseCPU(ctx context.Context, sessionID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET cpu_owned = 0, updated_at = ? WHERE id = ? AND cpu_owned = 1`,
		time.Now().UTC().Format(time.RFC3339Nano),
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("release cpu: %w", err)
	}
	return nil
}

// CPUOwner returns the session currently holding the CPU gate, or nil.
func (s *Store) CPUOwner(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE cpu_owned = 1 LIMIT 1`)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cpu owner: %w", err)
	}
	return session, nil
}

// SessionStats returns a count of sessions grouped by status.
func (s *Store) SessionStats(ctx context.Context) (map[SessionStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[SessionStatus]int)
	for rows.Next() {
		var status SessionStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates pipeline state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	videoStats, err := s.VideoStats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	sessionStats, err := s.SessionStats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}

	health := HealthSummary{}
	for status, count := range videoStats {
		health.Videos += count
		switch status {
		case VideoFailed:
			health.Failed += count
		case VideoPending:
			health.Waiting += count
		default:
			if _, ok := processingVideoStatuses[status]; ok {
				health.Processing += count
			}
		}
	}
	for status, count := range sessionStats {
		health.Sessions += count
		switch status {
		case SessionFailed:
			health.Failed += count
		case SessionCompleted:
			health.Completed += count
		case SessionWaiting, SessionPrepared:
			health.Waiting += count
		default:
			if _, ok := processingSessionStatuses[status]; ok {
				health.Processing += count
			}
		}
	}
	return health, nil
}

const sessionColumns = "id, video_id, status, cpu_owned, result_o23, result_o35, result_o46, error_message, created_at, updated_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id           int64
		videoID      int64
		statusStr    string
		cpuOwned     int64
		o23          sql.NullFloat64
		o35          sql.NullFloat64
		o46          sql.NullFloat64
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&videoID,
		&statusStr,
		&cpuOwned,
		&o23,
		&o35,
		&o46,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	session := &Session{
		ID:           id,
		VideoID:      videoID,
		Status:       SessionStatus(statusStr),
		CPUOwned:     cpuOwned != 0,
		ErrorMessage: errorMessage.String,
	}
	if o23.Valid || o35.Valid || o46.Valid {
		session.Result = &ScoreSummary{O23: o23.Float64, O35: o35.Float64, O46: o46.Float64}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		session.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		session.UpdatedAt = updated
	}
	return session, nil
}
