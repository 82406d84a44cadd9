package models

import "time"

// AggregatedResult is the merge of multiple dispatch results into one
// combined report. It is immutable and produced fresh per aggregation.
type AggregatedResult struct {
	// ID is the unique identifier for this aggregation.
	ID string `json:"id"`
	// Timestamp is when the aggregation was produced.
	Timestamp time.Time `json:"timestamp"`
	// Results are the input dispatch results, in input order.
	Results []*DispatchResult `json:"results"`
	// Output is the merged textual output across all results.
	Output string `json:"output"`
	// FilesCreated is the merged created-file list.
	FilesCreated []string `json:"files_created"`
	// FilesModified is the merged modified-file list.
	FilesModified []string `json:"files_modified"`
	// Errors is the merged error list.
	Errors []string `json:"errors"`
	// Summary is a free-text summary of the aggregation.
	Summary string `json:"summary"`
	// Conflicts lists human-readable descriptions of detected file conflicts.
	// Conflicts are advisory; aggregation succeeds regardless.
	Conflicts []string `json:"conflicts"`
	// Metrics holds duration, token, and success-rate figures.
	Metrics AggregateMetrics `json:"metrics"`
}

// AggregateMetrics holds the numeric figures computed for an aggregation.
type AggregateMetrics struct {
	// TotalDuration is the sum of all result durations.
	TotalDuration time.Duration `json:"total_duration"`
	// AverageDuration is the mean result duration.
	AverageDuration time.Duration `json:"average_duration"`
	// TotalTokens is the sum of consumed-resource counts.
	TotalTokens int64 `json:"total_tokens"`
	// AverageTokens is the mean consumed-resource count.
	AverageTokens int64 `json:"average_tokens"`
	// SuccessfulResults is the number of successful results.
	SuccessfulResults int `json:"successful_results"`
	// FailedResults is the number of unsuccessful results.
	FailedResults int `json:"failed_results"`
	// SuccessRate is the percentage of successful results (0-100).
	SuccessRate float64 `json:"success_rate"`
}
