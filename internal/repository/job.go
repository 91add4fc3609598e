package repository

import (
	"context"
	"time"

	"docvoice/internal/model"
)

// JobRepository persists conversion jobs.
type JobRepository interface {
	// Create inserts a new job and returns the stored record.
	Create(ctx context.Context, job model.ConversionJob) (model.ConversionJob, error)

	// FindByID returns ErrJobNotFound when the id is unknown.
	FindByID(ctx context.Context, id string) (model.ConversionJob, error)

	// ListByUser returns one page of the owner's jobs, newest first, with the owner's total.
	ListByUser(ctx context.Context, userID string, pq PageQuery) (*PageResult[model.ConversionJob], error)

	// Update writes job only if the stored status still equals expected.
	// It returns ErrStaleJob when another writer got there first.
	Update(ctx context.Context, job model.ConversionJob, expected model.JobStatus) error

	// Delete removes a job by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}

// UsageRepository stores per-user daily conversion counters.
type UsageRepository interface {
	// ReserveForDay increments the counter only while it is below limit.
	// It reports false when the counter already reached limit.
	ReserveForDay(ctx context.Context, userID string, day time.Time, limit int) (bool, error)

	// ReleaseForDay gives back one reserved conversion. The counter never drops below zero.
	ReleaseForDay(ctx context.Context, userID string, day time.Time) error
}
