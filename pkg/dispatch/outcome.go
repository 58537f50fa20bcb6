// Package dispatch provides the sendhub dispatch core: the basic dispatcher
// that delivers one content string to a recipient list, and the templated
// orchestrator that personalizes content per recipient before delivery.
package dispatch

import "time"

// Status is the terminal state of one recipient in a run.
type Status string

// Status constants
const (
	// StatusSent means the content was delivered.
	StatusSent Status = "sent"
	// StatusSkipped means no message was attempted: no identity entry, no
	// templating data, or suppressed by the history store. Skips are
	// reported so operators can fix the data and rerun.
	StatusSkipped Status = "skipped"
	// StatusFailed means the single delivery attempt failed.
	StatusFailed Status = "failed"
)

// Outcome is the per-recipient result of one dispatch run.
type Outcome struct {
	Recipient string    `json:"recipient"`
	Status    Status    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Err holds the delivery error for failed outcomes (not serialized).
	Err error `json:"-"`
}

// Summary aggregates the outcomes of one dispatch run, in processing order.
type Summary struct {
	Platform  string    `json:"platform"`
	Outcomes  []Outcome `json:"outcomes"`
	Sent      int       `json:"sent"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSummary creates an empty summary for one platform run.
func NewSummary(platform string) *Summary {
	return &Summary{
		Platform:  platform,
		Outcomes:  make([]Outcome, 0),
		Timestamp: time.Now(),
	}
}

// Add appends an outcome and updates the counters.
func (s *Summary) Add(o Outcome) {
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusSent:
		s.Sent++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

// Total returns the number of recipients the run produced outcomes for.
func (s *Summary) Total() int {
	return len(s.Outcomes)
}

// AllSent returns true when every outcome is a successful delivery.
func (s *Summary) AllSent() bool {
	return s.Failed == 0 && s.Skipped == 0 && s.Sent > 0
}

// FailedRecipients returns the recipients whose delivery failed, with reasons,
// in processing order. Feeds the rerun-after-fixing workflow.
func (s *Summary) FailedRecipients() []Outcome {
	out := make([]Outcome, 0, s.Failed)
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// SkippedRecipients returns the skipped recipients with reasons, in
// processing order.
func (s *Summary) SkippedRecipients() []Outcome {
	out := make([]Outcome, 0, s.Skipped)
	for _, o := range s.Outcomes {
		if o.Status == StatusSkipped {
			out = append(out, o)
		}
	}
	return out
}
