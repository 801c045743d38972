package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dubmaster/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database and verifies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "jobs.db"))
}

// OpenPath connects to the job database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
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
	if err := store.initSchema(context.Background()); err != nil {
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

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewJob inserts a job and returns it with a freshly assigned identifier.
// Identifiers are the first eight characters of a UUID, matching the
// short ids exposed through the API. The job is born in processing state
// so workers cannot claim it while the caller is still staging its
// input; the caller flips it to pending once the video is in place.
func (s *Store) NewJob(ctx context.Context, req Request) (*Job, error) {
	id := uuid.NewString()[:8]
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO dubbing_jobs (
            id, status, step, step_name, progress, message, error_message,
            download_ready, source_url, source_path, title, source_lang,
            target_lang, voice_gender, preserve_background, dub_volume,
            work_dir, video_path, final_file, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		StatusProcessing,
		0,
		nullableString("Creating"),
		0,
		nullableString("Creating job"),
		nil,
		0,
		nullableString(req.SourceURL),
		nullableString(req.SourcePath),
		nullableString(req.Title),
		req.SourceLang,
		req.TargetLang,
		nullableString(req.VoiceGender),
		boolToInt(req.PreserveBackground),
		req.DubVolume,
		nil,
		nil,
		nil,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. A missing job returns (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM dubbing_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE dubbing_jobs
         SET status = ?, step = ?, step_name = ?, progress = ?, message = ?,
             error_message = ?, download_ready = ?, source_url = ?, source_path = ?,
             title = ?, source_lang = ?, target_lang = ?, voice_gender = ?,
             preserve_background = ?, dub_volume = ?, work_dir = ?, video_path = ?,
             final_file = ?, updated_at = ?
         WHERE id = ?`,
		job.Status,
		job.Step,
		nullableString(job.StepName),
		job.Progress,
		nullableString(job.Message),
		nullableString(job.ErrorMessage),
		boolToInt(job.DownloadReady),
		nullableString(job.SourceURL),
		nullableString(job.SourcePath),
		nullableString(job.Title),
		job.SourceLang,
		job.TargetLang,
		nullableString(job.VoiceGender),
		boolToInt(job.PreserveBackground),
		job.DubVolume,
		nullableString(job.WorkDir),
		nullableString(job.VideoPath),
		nullableString(job.FinalFile),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// ClaimNextPending atomically moves the oldest pending job to processing
// and returns it. Returns (nil, nil) when no pending work exists. The
// claim is a compare-and-swap on status so concurrent workers never pick
// up the same job.
func (s *Store) ClaimNextPending(ctx context.Context) (*Job, error) {
	for {
		row := s.db.QueryRowContext(
			ctx,
			`SELECT id FROM dubbing_jobs WHERE status = ? ORDER BY created_at LIMIT 1`,
			StatusPending,
		)
		var id string
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("select pending job: %w", err)
		}

		res, err := s.db.ExecContext(
			ctx,
			`UPDATE dubbing_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			StatusProcessing,
			time.Now().UTC().Format(time.RFC3339Nano),
			id,
			StatusPending,
		)
		if err != nil {
			return nil, fmt.Errorf("claim pending job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			// Another worker claimed it first. Try the next one.
			continue
		}
		return s.GetByID(ctx, id)
	}
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM dubbing_jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ResetStuckProcessing returns jobs stuck in processing back to pending.
// Called once at daemon startup to recover from an unclean shutdown.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE dubbing_jobs
         SET status = ?, step = 0, step_name = 'Queued', progress = 0,
             message = 'Reset after daemon restart', updated_at = ?
         WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dubbing_jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM dubbing_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job counts for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

const jobColumns = "id, status, step, step_name, progress, message, error_message, download_ready, source_url, source_path, title, source_lang, target_lang, voice_gender, preserve_background, dub_volume, work_dir, video_path, final_file, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id                 string
		statusStr          string
		step               int
		stepName           sql.NullString
		progress           int
		message            sql.NullString
		errorMessage       sql.NullString
		downloadReady      sql.NullInt64
		sourceURL          sql.NullString
		sourcePath         sql.NullString
		title              sql.NullString
		sourceLang         string
		targetLang         string
		voiceGender        sql.NullString
		preserveBackground sql.NullInt64
		dubVolume          sql.NullFloat64
		workDir            sql.NullString
		videoPath          sql.NullString
		finalFile          sql.NullString
		createdRaw         sql.NullString
		updatedRaw         sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&step,
		&stepName,
		&progress,
		&message,
		&errorMessage,
		&downloadReady,
		&sourceURL,
		&sourcePath,
		&title,
		&sourceLang,
		&targetLang,
		&voiceGender,
		&preserveBackground,
		&dubVolume,
		&workDir,
		&videoPath,
		&finalFile,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		Status:       Status(statusStr),
		Step:         step,
		StepName:     stepName.String,
		Progress:     progress,
		Message:      message.String,
		ErrorMessage: errorMessage.String,
		SourceURL:    sourceURL.String,
		SourcePath:   sourcePath.String,
		Title:        title.String,
		SourceLang:   sourceLang,
		TargetLang:   targetLang,
		VoiceGender:  voiceGender.String,
		DubVolume:    dubVolume.Float64,
		WorkDir:      workDir.String,
		VideoPath:    videoPath.String,
		FinalFile:    finalFile.String,
	}
	if downloadReady.Valid {
		job.DownloadReady = downloadReady.Int64 != 0
	}
	if preserveBackground.Valid {
		job.PreserveBackground = preserveBackground.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
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
