package events

import "time"

// Evaluation modes.
const (
	ModeLazy = "lazy"
	ModeFull = "full"
)

// EvaluationStart is emitted before an expression is evaluated.
type EvaluationStart struct {
	ID         string
	Mode       string
	DocumentID string
	Expression string
}

// EvaluationFinish is emitted after an evaluation completes, failed ones
// included.
type EvaluationFinish struct {
	ID         string
	Mode       string
	DocumentID string
	Expression string
	Matches    int
	Sections   int
	Cached     bool
	Err        error
	Duration   time.Duration
}

// SectionParsed is emitted when a section is parsed rather than served
// from the section cache.
type SectionParsed struct {
	EvaluationID string
	DocumentID   string
	Type         string
	Name         string
	Size         int
	Duration     time.Duration
}
