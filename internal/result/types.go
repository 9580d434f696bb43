package result

// ScoreEntry is one criterion's scored outcome for one submission. Raw is
// clamped to [0, Max] by the evaluator; Err carries a criterion-level
// failure without affecting sibling entries.
type ScoreEntry struct {
	CriterionID string  `json:"criterion_id"`
	Raw         float64 `json:"raw"`
	Max         float64 `json:"max"`
	Rationale   string  `json:"rationale,omitempty"`
	Truncated   bool    `json:"truncated,omitempty"`
	Err         string  `json:"error,omitempty"`
}

// GradingResult is the terminal record of one submission's grading. Exactly
// one is produced per requested reference. Err is populated only when the
// pipeline failed before any criterion ran (acquisition or sandbox
// infrastructure failure, pipeline panic, or cancellation).
type GradingResult struct {
	SubmissionID string       `json:"submission_id"`
	GradingID    string       `json:"grading_id,omitempty"`
	Success      bool         `json:"success"`
	Cancelled    bool         `json:"cancelled,omitempty"`
	Entries      []ScoreEntry `json:"entries,omitempty"`
	Total        float64      `json:"total_score"`
	Grade        string       `json:"grade"`
	Err          string       `json:"error,omitempty"`
	ReportPath   string       `json:"report_path,omitempty"`
	DurationS    int          `json:"duration_s"`
}
