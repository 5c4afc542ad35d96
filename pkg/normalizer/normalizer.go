package normalizer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/subtexthq/powermap/pkg/logging"
	"github.com/subtexthq/powermap/pkg/model"
)

// RawRecord is the tagged-union boundary type for heterogeneous source
// records. Sources convert their native shapes into this immediately; nothing
// downstream ever sees a source-specific format, and payload bodies are
// stripped before this point.
type RawRecord struct {
	SourceType   model.SourceType `json:"sourceType"`
	Participants []string         `json:"participants"`
	Timestamp    time.Time        `json:"timestamp"`
	WeightHint   float64          `json:"weightHint,omitempty"`
}

// NormalizationError marks one malformed record in a batch. The batch
// continues; callers decide what to do with the skip list.
type NormalizationError struct {
	Index  int
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
}

// Config holds normalization settings.
type Config struct {
	// Retention drops records older than this before they ever reach the
	// graph. Zero means the 90-day default.
	Retention time.Duration
}

// DefaultRetention is the default retention window for communication signals.
const DefaultRetention = 90 * 24 * time.Hour

// Normalizer converts raw source records into deduplicated
// CommunicationEvents. It has no graph knowledge.
type Normalizer struct {
	retention time.Duration
	logger    logging.Logger
}

// New creates a normalizer.
func New(cfg Config, logger logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Normalizer{retention: retention, logger: logger}
}

// Normalize converts a batch into deduplicated events. Malformed records are
// reported and skipped (partial success); records outside the retention
// window are silently dropped. Duplicate records (same source type, sorted
// participant set and rounded timestamp) collapse to one event, so repeated
// ingestion is idempotent.
func (n *Normalizer) Normalize(batch []RawRecord, asOf time.Time) ([]model.CommunicationEvent, []NormalizationError) {
	events := make([]model.CommunicationEvent, 0, len(batch))
	skipped := make([]NormalizationError, 0)
	seen := make(map[string]struct{}, len(batch))

	for i, rec := range batch {
		ev, err := n.normalizeOne(rec)
		if err != nil {
			skipped = append(skipped, NormalizationError{Index: i, Reason: err.Error()})
			continue
		}

		if age := asOf.Sub(ev.Timestamp); age > n.retention {
			continue
		}

		key := ev.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		events = append(events, ev)
	}

	if len(skipped) > 0 {
		n.logger.Warn("skipped malformed records",
			logging.Component("normalizer"),
			logging.Count(len(skipped)))
	}

	return events, skipped
}

func (n *Normalizer) normalizeOne(rec RawRecord) (model.CommunicationEvent, error) {
	var zero model.CommunicationEvent

	switch rec.SourceType {
	case model.SourceMessage, model.SourceMeeting:
	default:
		return zero, fmt.Errorf("unknown source type %q", rec.SourceType)
	}

	if rec.Timestamp.IsZero() {
		return zero, fmt.Errorf("missing timestamp")
	}
	if rec.WeightHint < 0 {
		return zero, fmt.Errorf("negative weight hint %v", rec.WeightHint)
	}

	participants := normalizeParticipants(rec.Participants)
	if len(participants) < 2 {
		return zero, fmt.Errorf("fewer than two distinct participants")
	}

	return model.CommunicationEvent{
		SourceType:   rec.SourceType,
		Participants: participants,
		Timestamp:    rec.Timestamp.UTC(),
		WeightHint:   rec.WeightHint,
	}, nil
}

// normalizeParticipants lowercases, trims and dedupes participant refs and
// returns them sorted.
func normalizeParticipants(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
