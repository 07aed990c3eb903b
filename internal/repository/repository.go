// Package repository holds the gorm queries shared by handlers, jobs and
// the listing service. Aggregates are computed with portable SQL so the
// same queries run on PostgreSQL and SQLite.
package repository

import "errors"

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// MaxCandidates caps how many rows a listing query loads before ranking
const MaxCandidates = 500
