package surface

// Status tags an Outcome.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusUnavailable Status = "unavailable"
)

// Outcome is the result of one analysis run. Suggestion is always usable:
// unavailable runs carry DefaultSuggestion.
type Outcome struct {
	Status     Status      `json:"status"`
	Suggestion Suggestion  `json:"suggestion"`
	Points     []Point     `json:"points,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Reason     error       `json:"-"`
}

// Success wraps a completed analysis.
func Success(a Analysis, points []Point) Outcome {
	return Outcome{
		Status:     StatusSuccess,
		Suggestion: a.Suggestion,
		Points:     points,
		Candidates: a.Candidates,
	}
}

// Unavailable records why detection produced nothing and falls back to the
// default suggestion.
func Unavailable(reason error) Outcome {
	return Outcome{
		Status:     StatusUnavailable,
		Suggestion: DefaultSuggestion(),
		Reason:     reason,
	}
}

// OK reports whether the outcome came from a successful detection run.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}
