package model

import "fmt"

// UploadSummary is the result of one ingestion run.
type UploadSummary struct {
	InsertedCount int      `json:"insertedCount"`
	SkippedCount  int      `json:"skippedCount"`
	Errors        []string `json:"errors"`
}

// NewUploadSummary returns an empty summary with a non-nil error list so it
// serializes as [] rather than null.
func NewUploadSummary() *UploadSummary {
	return &UploadSummary{Errors: []string{}}
}

// AddError records a skipped row with its message.
func (s *UploadSummary) AddError(row int, msg string) {
	s.SkippedCount++
	s.Errors = append(s.Errors, fmt.Sprintf("row %d: %s", row, msg))
}

// PagedResult is one page of an ordered result set.
type PagedResult[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}
