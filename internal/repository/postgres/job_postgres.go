package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"docvoice/internal/model"
	"docvoice/internal/repository"
)

// JobPostgres is a PostgreSQL implementation of repository.JobRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type JobPostgres struct {
	db *sql.DB
}

// NewJobPostgres creates a new JobPostgres repository.
func NewJobPostgres(db *sql.DB) *JobPostgres {
	return &JobPostgres{db: db}
}

var _ repository.JobRepository = (*JobPostgres)(nil)

const jobColumns = `id, user_id, file_name, size_bytes, page_count, status, detected_language,
		summary, keywords, storage_handle, audio_handle, error_code, error_detail, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (model.ConversionJob, error) {
	var (
		j        model.ConversionJob
		lang     sql.NullString
		keywords []byte
	)
	if err := s.Scan(
		&j.ID,
		&j.UserID,
		&j.FileName,
		&j.SizeBytes,
		&j.PageCount,
		&j.Status,
		&lang,
		&j.Summary,
		&keywords,
		&j.StorageHandle,
		&j.AudioHandle,
		&j.ErrorCode,
		&j.ErrorDetail,
		&j.CreatedAt,
		&j.UpdatedAt,
	); err != nil {
		return model.ConversionJob{}, err
	}
	if lang.Valid {
		j.DetectedLanguage = model.Language(lang.String)
	}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &j.Keywords); err != nil {
			return model.ConversionJob{}, fmt.Errorf("decode keywords of %s: %w", j.ID, err)
		}
	}
	return j, nil
}

func nullLanguage(l model.Language) sql.NullString {
	return sql.NullString{String: string(l), Valid: l != ""}
}

func encodeKeywords(k []string) ([]byte, error) {
	if k == nil {
		k = []string{}
	}
	return json.Marshal(k)
}

// Create inserts a new job row and returns the stored record.
func (r *JobPostgres) Create(ctx context.Context, job model.ConversionJob) (model.ConversionJob, error) {
	keywords, err := encodeKeywords(job.Keywords)
	if err != nil {
		return model.ConversionJob{}, err
	}
	q := `
		INSERT INTO conversion_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + jobColumns
	row := r.db.QueryRowContext(ctx, q,
		job.ID,
		job.UserID,
		job.FileName,
		job.SizeBytes,
		job.PageCount,
		job.Status,
		nullLanguage(job.DetectedLanguage),
		job.Summary,
		keywords,
		job.StorageHandle,
		job.AudioHandle,
		job.ErrorCode,
		job.ErrorDetail,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return scanJob(row)
}

// FindByID fetches a single job by its ID.
func (r *JobPostgres) FindByID(ctx context.Context, id string) (model.ConversionJob, error) {
	q := `SELECT ` + jobColumns + ` FROM conversion_jobs WHERE id = $1`
	j, err := scanJob(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ConversionJob{}, repository.ErrJobNotFound
	}
	return j, err
}

// ListByUser returns the owner's jobs using LIMIT/OFFSET pagination and a total count.
func (r *JobPostgres) ListByUser(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.ConversionJob], error) {
	const qCount = `SELECT COUNT(*) FROM conversion_jobs WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, userID).Scan(&total); err != nil {
		return nil, err
	}

	qList := `
		SELECT ` + jobColumns + `
		FROM conversion_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, userID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.ConversionJob, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.ConversionJob]{
		Items: items,
		Total: total,
	}, nil
}

// Update writes every mutable column, guarded by the expected current status.
func (r *JobPostgres) Update(ctx context.Context, job model.ConversionJob, expected model.JobStatus) error {
	keywords, err := encodeKeywords(job.Keywords)
	if err != nil {
		return err
	}
	const q = `
		UPDATE conversion_jobs
		SET status = $2, page_count = $3, detected_language = $4, summary = $5, keywords = $6,
			storage_handle = $7, audio_handle = $8, error_code = $9, error_detail = $10, updated_at = $11
		WHERE id = $1 AND status = $12
	`
	res, err := r.db.ExecContext(ctx, q,
		job.ID,
		job.Status,
		job.PageCount,
		nullLanguage(job.DetectedLanguage),
		job.Summary,
		keywords,
		job.StorageHandle,
		job.AudioHandle,
		job.ErrorCode,
		job.ErrorDetail,
		job.UpdatedAt,
		expected,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM conversion_jobs WHERE id = $1)`, job.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrJobNotFound
	}
	return repository.ErrStaleJob
}

// Delete removes a job by ID. It does not return an error if the row does not exist.
func (r *JobPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM conversion_jobs WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}
