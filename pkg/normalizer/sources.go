package normalizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/subtexthq/powermap/pkg/logging"
	"github.com/subtexthq/powermap/pkg/model"
)

// Source is an external record feed (message metadata, calendar metadata).
// Fetch must honor ctx cancellation; it returns raw records only, never
// message bodies.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]RawRecord, error)
}

// TimeoutError reports a source that missed its ingestion deadline. Only that
// source's contribution is dropped; the build proceeds without it.
type TimeoutError struct {
	Source  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("source %s exceeded deadline %v", e.Source, e.Timeout)
}

// IngestResult is the merged outcome of a multi-source ingestion pass.
type IngestResult struct {
	Events        []model.CommunicationEvent
	Skipped       []NormalizationError
	FailedSources []string
	SourceErrors  []error
}

// Partial reports whether any source failed to contribute.
func (r *IngestResult) Partial() bool {
	return len(r.FailedSources) > 0
}

// maxConcurrentSources bounds how many feeds are polled at once.
const maxConcurrentSources = 4

// Ingest fetches all sources concurrently, each under its own deadline, and
// normalizes whatever arrived into one merged deduplicated batch. A source
// that errors or times out is recorded in FailedSources; it never aborts the
// other sources.
func (n *Normalizer) Ingest(ctx context.Context, timeout time.Duration, asOf time.Time, sources ...Source) *IngestResult {
	var mu sync.Mutex
	batch := make([]RawRecord, 0)
	result := &IngestResult{}

	g := &errgroup.Group{}
	g.SetLimit(maxConcurrentSources)

	for _, src := range sources {
		g.Go(func() error {
			fetchCtx := ctx
			var cancel context.CancelFunc
			if timeout > 0 {
				fetchCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			records, err := src.Fetch(fetchCtx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					err = &TimeoutError{Source: src.Name(), Timeout: timeout}
				} else {
					err = fmt.Errorf("source %s: %w", src.Name(), err)
				}
				result.FailedSources = append(result.FailedSources, src.Name())
				result.SourceErrors = append(result.SourceErrors, err)
				n.logger.Warn("source failed", logging.Source(src.Name()), logging.Error(err))
				return nil
			}
			batch = append(batch, records...)
			return nil
		})
	}
	g.Wait()

	sort.Strings(result.FailedSources)
	result.Events, result.Skipped = n.Normalize(batch, asOf)
	return result
}

// MessageRecord is the raw shape of a message-header record before boundary
// conversion.
type MessageRecord struct {
	From      string    `json:"from"`
	To        []string  `json:"to"`
	CC        []string  `json:"cc,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Raw converts a message header into the boundary representation. Message
// exchanges carry an implicit weight hint of 1.
func (m MessageRecord) Raw() RawRecord {
	participants := make([]string, 0, 1+len(m.To)+len(m.CC))
	participants = append(participants, m.From)
	participants = append(participants, m.To...)
	participants = append(participants, m.CC...)
	return RawRecord{
		SourceType:   model.SourceMessage,
		Participants: participants,
		Timestamp:    m.Timestamp,
		WeightHint:   1.0,
	}
}

// MeetingRecord is the raw shape of a calendar attendee record.
type MeetingRecord struct {
	Attendees  []string  `json:"attendees"`
	Start      time.Time `json:"start"`
	WeightHint float64   `json:"weightHint,omitempty"`
}

// Raw converts a meeting into the boundary representation.
func (m MeetingRecord) Raw() RawRecord {
	hint := m.WeightHint
	if hint == 0 {
		hint = 1.0
	}
	return RawRecord{
		SourceType:   model.SourceMeeting,
		Participants: m.Attendees,
		Timestamp:    m.Start,
		WeightHint:   hint,
	}
}
