package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"qoed/internal/config"
)

// Store manages pipeline persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the state database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "qoed.db")
	// Pragmas in the DSN reach every pooled connection; an Exec-ed PRAGMA
	// only configures whichever single connection the pool hands out.
	// _txlock=immediate makes transactions take the write lock up front so
	// a read-then-write upgrade cannot fail with an unretryable SQLITE_BUSY.
	dsn := dbPath + "?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk location of the database file.
func (s *Store) Path() string {
	return s.path
}

// NewVideo registers a manifest URL and returns its video row. Registration
// is idempotent: a URL seen before returns the existing row with created set
// to false. Identifiers are dense and zero based, assigned inside the insert
// transaction.
func (s *Store) NewVideo(ctx context.Context, manifestURL string) (*Video, bool, error) {
	if manifestURL == "" {
		return nil, false, errors.New("manifest url is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE manifest_url = ?`, manifestURL)
	existing, err := scanVideo(row)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("check existing video: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&id); err != nil {
		return nil, false, fmt.Errorf("next video id: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO videos (id, manifest_url, status, representation_ranks, error_message, created_at, updated_at)
         VALUES (?, ?, ?, NULL, NULL, ?, ?)`,
		id,
		manifestURL,
		VideoPending,
		timestamp,
		timestamp,
	); err != nil {
		return nil, false, fmt.Errorf("insert video: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit insert: %w", err)
	}

	video, err := s.GetVideo(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return video, true, nil
}

// GetVideo fetches a video by identifier.
func (s *Store) GetVideo(ctx context.Context, id int64) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// GetVideoByManifestURL returns the video registered for a manifest URL.
func (s *Store) GetVideoByManifestURL(ctx context.Context, manifestURL string) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE manifest_url = ?`, manifestURL)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find video by manifest: %w", err)
	}
	return video, nil
}

// UpdateVideo persists changes to an existing video.
func (s *Store) UpdateVideo(ctx context.Context, video *Video) error {
	if video == nil {
		return errors.New("video is nil")
	}
	video.UpdatedAt = time.Now().UTC()

	var ranks any
	if len(video.RepresentationRanks) > 0 {
		encoded, err := json.Marshal(video.RepresentationRanks)
		if err != nil {
			return fmt.Errorf("marshal representation ranks: %w", err)
		}
		ranks = string(encoded)
	}

	_, err := s.db.ExecContext(
		ctx,
		`UPDATE videos
         SET manifest_url = ?, status = ?, representation_ranks = ?,
             error_message = ?, updated_at = ?
         WHERE id = ?`,
		video.ManifestURL,
		video.Status,
		ranks,
		nullableString(video.ErrorMessage),
		video.UpdatedAt.Format(time.RFC3339Nano),
		video.ID,
	)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	return nil
}

// NextVideoForStatuses returns the oldest video matching any of the provided statuses.
func (s *Store) NextVideoForStatuses(ctx context.Context, statuses ...VideoStatus) (*Video, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + videoColumns + ` FROM videos WHERE status IN (` + placeholders + `) ORDER BY id LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return video, nil
}

// ListVideos returns videos filtered by status set (or all videos when no
// status is provided), ordered by identifier.
func (s *Store) ListVideos(ctx context.Context, statuses ...VideoStatus) ([]*Video, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + videoColumns + ` FROM videos`
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
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// VideoStats returns a count of videos grouped by status.
func (s *Store) VideoStats(ctx context.Context) (map[VideoStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM videos GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("video stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[VideoStatus]int)
	for rows.Next() {
		var status VideoStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// RecoverInFlight resets work that was mid-stage when the daemon last
// stopped: processing statuses roll back to their resumable predecessor and
// any stale CPU claim is released. Called once at startup before the
// workflow manager begins polling.
func (s *Store) RecoverInFlight(ctx context.Context) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin recovery tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var recovered int64

	res, err := tx.ExecContext(
		ctx,
		`UPDATE sessions SET cpu_owned = 0, updated_at = ? WHERE cpu_owned = 1`,
		timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("release stale cpu claim: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		recovered += n
	}

	rollbacks := []struct {
		from string
		to   string
		stmt string
	}{
		{string(VideoAcquiring), string(VideoPending), `UPDATE videos SET status = ?, updated_at = ? WHERE status = ?`},
		{string(VideoExtracting), string(VideoDownloaded), `UPDATE videos SET status = ?, updated_at = ? WHERE status = ?`},
		{string(SessionBuilding), string(SessionWaiting), `UPDATE sessions SET status = ?, updated_at = ? WHERE status = ?`},
		{string(SessionScoring), string(SessionPrepared), `UPDATE sessions SET status = ?, updated_at = ? WHERE status = ?`},
	}
	for _, rollback := range rollbacks {
		res, err := tx.ExecContext(ctx, rollback.stmt, rollback.to, timestamp, rollback.from)
		if err != nil {
			return 0, fmt.Errorf("roll back %s: %w", rollback.from, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			recovered += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit recovery: %w", err)
	}
	return recovered, nil
}

const videoColumns = "id, manifest_url, status, representation_ranks, error_message, created_at, updated_at"

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		id           int64
		manifestURL  string
		statusStr    string
		ranksRaw     sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&manifestURL,
		&statusStr,
		&ranksRaw,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	video := &Video{
		ID:           id,
		ManifestURL:  manifestURL,
		Status:       VideoStatus(statusStr),
		ErrorMessage: errorMessage.String,
	}
	if ranksRaw.Valid && ranksRaw.String != "" {
		if err := json.Unmarshal([]byte(ranksRaw.String), &video.RepresentationRanks); err != nil {
			return nil, fmt.Errorf("unmarshal representation ranks: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		video.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		video.UpdatedAt = updated
	}
	return video, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
