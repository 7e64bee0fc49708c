package usecase

import (
	"errors"
	"fmt"
	"log/slog"
)

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Ingested     int
	Deduplicated int
	Failed       int
	Chunks       int
	Vectors      int
	Errors       []string // reported occurrences, capped per signature
	Suppressed   []string // summary lines for errors past the cap
}

// Total returns the number of items the run accepted, new or duplicate.
func (r *IngestResult) Total() int {
	return r.Ingested + r.Deduplicated
}

// Merge folds another summary into r. Used when one command ingests
// several paths.
func (r *IngestResult) Merge(other *IngestResult) {
	r.Ingested += other.Ingested
	r.Deduplicated += other.Deduplicated
	r.Failed += other.Failed
	r.Chunks += other.Chunks
	r.Vectors += other.Vectors
	r.Errors = append(r.Errors, other.Errors...)
	r.Suppressed = append(r.Suppressed, other.Suppressed...)
}

// RepairResult summarizes a repair pass over unembedded items.
type RepairResult struct {
	Scanned  int
	Repaired int
	Failed   int
	Errors   []string
}

// errorReporter rate-limits per-item failure logging. The first few
// occurrences of a given source+error signature are logged in full;
// the rest are counted and surfaced once in the run summary. Systematic
// failures (every record of a batch hitting the same model error) stay
// readable this way.
type errorReporter struct {
	logger *slog.Logger
	limit  int
	counts map[string]int
	order  []string
	detail []string
}

func newErrorReporter(logger *slog.Logger, limit int) *errorReporter {
	if limit <= 0 {
		limit = 5
	}
	return &errorReporter{
		logger: logger,
		limit:  limit,
		counts: make(map[string]int),
	}
}

func (r *errorReporter) report(source string, err error) {
	// Signatures are keyed on the root cause so that per-item wrapping
	// ("failed to embed item 17: ...") does not defeat suppression.
	sig := source + ": " + truncateRunes(rootCause(err).Error(), 120)
	if r.counts[sig] == 0 {
		r.order = append(r.order, sig)
	}
	r.counts[sig]++

	switch {
	case r.counts[sig] <= r.limit:
		r.logger.Warn("item ingestion failed", "source", source, "error", err)
		r.detail = append(r.detail, source+": "+truncateRunes(err.Error(), 200))
	case r.counts[sig] == r.limit+1:
		r.logger.Warn("suppressing further errors with this signature", "source", source, "signature", sig)
	}
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// finish writes the collected detail and suppression summary into result.
func (r *errorReporter) finish(result *IngestResult) {
	result.Errors = r.detail
	for _, sig := range r.order {
		if n := r.counts[sig] - r.limit; n > 0 {
			result.Suppressed = append(result.Suppressed, fmt.Sprintf("%s (%d more suppressed)", sig, n))
		}
	}
}
