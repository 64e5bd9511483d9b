package model

// Stage identifies a point in the ingestion lifecycle reported to observers.
type Stage string

const (
	StageValidationStarted   Stage = "validation_started"
	StageProcessing          Stage = "processing"
	StageBulkInsertStarted   Stage = "bulk_insert_started"
	StageBulkInsertCompleted Stage = "bulk_insert_completed"
	StageBulkInsertProgress  Stage = "bulk_insert_progress"
	StageDone                Stage = "done"
)

// ProgressEvent is the payload delivered to a connected observer. Percent is
// nil when the total row count is unknown.
type ProgressEvent struct {
	Stage   Stage  `json:"stage"`
	Percent *int   `json:"percent,omitempty"`
	Message string `json:"message"`
}
