// Package aggregate merges multiple dispatch results into one combined
// report with advisory conflict detection and run metrics.
package aggregate

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-dev/conductor/pkg/models"
)

// ErrNoResults indicates aggregation was requested over an empty list.
var ErrNoResults = errors.New("no results to aggregate")

// sectionSeparator joins per-result sections in the merged output.
const sectionSeparator = "\n---\n"

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithDedupe controls whether merged file and error lists keep only the
// first occurrence of each entry. Enabled by default.
func WithDedupe(enabled bool) Option {
	return func(a *Aggregator) {
		a.dedupe = enabled
	}
}

// Aggregator merges dispatch results. Aggregation itself is a pure
// transformation; the instance only tracks running counters for
// observability.
type Aggregator struct {
	dedupe bool

	mu                sync.Mutex
	totalAggregations int
	totalResults      int
}

// New creates an Aggregator with deduplication enabled.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{dedupe: true}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate merges a non-empty list of dispatch results into one report.
// Conflicts are advisory; aggregation succeeds regardless of how many
// are detected. The only error is an empty input list.
func (a *Aggregator) Aggregate(results []*models.DispatchResult) (*models.AggregatedResult, error) {
	merged, err := a.merge(results)
	if err != nil {
		return nil, err
	}

	var sections []string
	for _, r := range results {
		sections = append(sections, renderSection(r))
	}
	merged.Output = strings.Join(sections, sectionSeparator)
	merged.Summary = summarize(merged.Metrics)

	return merged, nil
}

// AggregateSequential merges results from a sequential workflow into a
// phase-labelled narrative. Input order is assumed to be phase order.
func (a *Aggregator) AggregateSequential(results []*models.DispatchResult, context string) (*models.AggregatedResult, error) {
	merged, err := a.merge(results)
	if err != nil {
		return nil, err
	}

	var sections []string
	for i, r := range results {
		header := fmt.Sprintf("Phase %d: %s", i+1, r.Capability)
		sections = append(sections, header+"\n\n"+renderBody(r))
	}
	merged.Output = strings.Join(sections, sectionSeparator)

	merged.Summary = summarize(merged.Metrics)
	if context != "" {
		merged.Summary = context + " — " + merged.Summary
	}

	return merged, nil
}

// AggregateParallel merges results from a pool run, grouped by
// capability kind before summarizing.
func (a *Aggregator) AggregateParallel(results []*models.DispatchResult, context string) (*models.AggregatedResult, error) {
	merged, err := a.merge(results)
	if err != nil {
		return nil, err
	}

	// Group by capability, preserving first-seen group order.
	groups := make(map[models.CapabilityKind][]*models.DispatchResult)
	var groupOrder []models.CapabilityKind
	for _, r := range results {
		if _, seen := groups[r.Capability]; !seen {
			groupOrder = append(groupOrder, r.Capability)
		}
		groups[r.Capability] = append(groups[r.Capability], r)
	}

	var sections []string
	for _, kind := range groupOrder {
		group := groups[kind]
		header := fmt.Sprintf("%s (%d results)", kind, len(group))
		var bodies []string
		for _, r := range group {
			bodies = append(bodies, renderBody(r))
		}
		sections = append(sections, header+"\n\n"+strings.Join(bodies, "\n\n"))
	}
	merged.Output = strings.Join(sections, sectionSeparator)

	merged.Summary = summarize(merged.Metrics)
	if context != "" {
		merged.Summary = context + " — " + merged.Summary
	}

	return merged, nil
}

// Totals returns the running observability counters: aggregations
// performed and results consumed.
func (a *Aggregator) Totals() (aggregations, results int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalAggregations, a.totalResults
}

// merge performs the shared file/error merging, conflict detection, and
// metrics computation. Output and Summary are left for the caller.
func (a *Aggregator) merge(results []*models.DispatchResult) (*models.AggregatedResult, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	a.mu.Lock()
	a.totalAggregations++
	a.totalResults += len(results)
	a.mu.Unlock()

	merged := &models.AggregatedResult{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Results:   results,
	}

	var created, modified, errs []string
	for _, r := range results {
		created = append(created, r.FilesCreated...)
		modified = append(modified, r.FilesModified...)
		errs = append(errs, r.Errors...)
	}
	if a.dedupe {
		created = dedupeStrings(created)
		modified = dedupeStrings(modified)
		errs = dedupeStrings(errs)
	}
	merged.FilesCreated = emptyIfNil(created)
	merged.FilesModified = emptyIfNil(modified)
	merged.Errors = emptyIfNil(errs)

	merged.Conflicts = detectConflicts(results)
	merged.Metrics = computeMetrics(results)

	return merged, nil
}

// renderSection renders one result as a titled section with an Errors
// sub-section when any errors are present.
func renderSection(r *models.DispatchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", r.Capability))
	sb.WriteString(r.Output)
	if len(r.Errors) > 0 {
		sb.WriteString("\n\n### Errors\n")
		for _, e := range r.Errors {
			sb.WriteString("- ")
			sb.WriteString(e)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// renderBody renders a result's output plus errors without a title.
func renderBody(r *models.DispatchResult) string {
	if len(r.Errors) == 0 {
		return r.Output
	}
	var sb strings.Builder
	sb.WriteString(r.Output)
	sb.WriteString("\n\nErrors:\n")
	for _, e := range r.Errors {
		sb.WriteString("- ")
		sb.WriteString(e)
		sb.WriteString("\n")
	}
	return sb.String()
}

// summarize produces the free-text summary from computed metrics.
func summarize(m models.AggregateMetrics) string {
	total := m.SuccessfulResults + m.FailedResults
	return fmt.Sprintf("%d results aggregated: %d successful, %d failed (%.1f%% success rate)",
		total, m.SuccessfulResults, m.FailedResults, m.SuccessRate)
}

// computeMetrics derives duration, token, and success-rate figures.
func computeMetrics(results []*models.DispatchResult) models.AggregateMetrics {
	var m models.AggregateMetrics
	for _, r := range results {
		m.TotalDuration += r.Duration
		m.TotalTokens += r.TokensUsed
		if r.Success {
			m.SuccessfulResults++
		} else {
			m.FailedResults++
		}
	}

	n := len(results)
	m.AverageDuration = m.TotalDuration / time.Duration(n)
	m.AverageTokens = m.TotalTokens / int64(n)
	m.SuccessRate = float64(m.SuccessfulResults) / float64(n) * 100
	return m
}

// dedupeStrings keeps the first occurrence of each entry.
func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// emptyIfNil normalizes nil slices so aggregated reports always carry
// concrete lists.
func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
