package repository

import "errors"

var ErrObjectNotFound = errors.New("not found")

// StatusCount is one row of the outbox backlog summary.
type StatusCount struct {
	Status TaskStatus `db:"status"`
	Count  int        `db:"count"`
}
