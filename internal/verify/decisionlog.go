package verify

import "github.com/smilemakc/avtrace/internal/domain"

// Sink receives DecisionLog entries as they're produced, in addition to
// their being collected into the final VerifyResult.Logs — used to stream
// a run's reasoning live (see internal/transport/websocket) rather than
// only after the fact.
type Sink interface {
	Publish(runID string, entry domain.DecisionLog)
}

// NopSink discards every entry. It's the default when no live observer is
// configured for a run.
type NopSink struct{}

func (NopSink) Publish(string, domain.DecisionLog) {}

// multiSink fans a DecisionLog entry out to every wrapped Sink.
type multiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks into one. A nil sink in the list is skipped.
func NewMultiSink(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return NopSink{}
	}
	return &multiSink{sinks: filtered}
}

func (m *multiSink) Publish(runID string, entry domain.DecisionLog) {
	for _, s := range m.sinks {
		s.Publish(runID, entry)
	}
}
