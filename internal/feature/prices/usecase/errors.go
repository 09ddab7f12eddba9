package usecase

import "errors"

var (
	// ErrNoRecords is returned when a batch to persist is empty.
	// An empty batch counts as a failure, not as a trivially successful write.
	ErrNoRecords = errors.New("no records to save")

	// ErrParse is wrapped by every conversion failure in ParseDailySeries.
	ErrParse = errors.New("parse daily series")
)
