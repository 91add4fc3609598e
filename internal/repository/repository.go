// Package repository contains data access layer abstractions.
// Implementations live in subpackages (postgres) and hold no business logic.
package repository

import "errors"

var (
	// ErrJobNotFound is returned when no job row matches the id.
	ErrJobNotFound = errors.New("job not found")
	// ErrStaleJob is returned by a conditional update whose expected status no longer holds.
	ErrStaleJob = errors.New("job changed concurrently")
)

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
