package probe

import (
	"time"

	"github.com/entrhq/loginprobe/pkg/config"
)

// Status is the outcome of a check or of a whole run.
type Status string

const (
	StatusPassed Status = "passed"
	// StatusFailed means the application did not behave as expected
	StatusFailed Status = "failed"
	// StatusErrored means the check could not be carried out, e.g. an
	// element never became ready
	StatusErrored Status = "errored"
	// StatusSkipped means the target cannot support the check
	StatusSkipped Status = "skipped"
)

// Result is the outcome of one check.
type Result struct {
	Name      string             `json:"name"`
	Expect    config.Expectation `json:"expect"`
	Status    Status             `json:"status"`
	Detail    string             `json:"detail,omitempty"`
	Error     string             `json:"error,omitempty"`
	SessionID string             `json:"session_id,omitempty"`
	URL       string             `json:"url,omitempty"`
	PageText  string             `json:"page_text,omitempty"`
	StartTime time.Time          `json:"start_time"`
	Duration  time.Duration      `json:"duration"`
}

// Metrics counts results by status.
type Metrics struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
}

// Summary is the outcome of a run.
type Summary struct {
	RunID     string        `json:"run_id"`
	BaseURL   string        `json:"base_url"`
	Profile   string        `json:"profile"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Results   []Result      `json:"results"`
	Metrics   Metrics       `json:"metrics"`
}

// finish computes metrics and the run status. A run passes when no check
// failed or errored; skipped checks do not fail a run.
func (s *Summary) finish(end time.Time) {
	s.EndTime = end
	s.Duration = end.Sub(s.StartTime)
	s.Metrics = Metrics{Total: len(s.Results)}
	for _, r := range s.Results {
		switch r.Status {
		case StatusPassed:
			s.Metrics.Passed++
		case StatusFailed:
			s.Metrics.Failed++
		case StatusErrored:
			s.Metrics.Errored++
		case StatusSkipped:
			s.Metrics.Skipped++
		}
	}
	switch {
	case s.Error != "" || s.Metrics.Errored > 0:
		s.Status = StatusErrored
	case s.Metrics.Failed > 0:
		s.Status = StatusFailed
	default:
		s.Status = StatusPassed
	}
}

// Passed reports whether the run had no failed or errored check.
func (s *Summary) Passed() bool {
	return s.Status == StatusPassed
}
