package health

import (
	"encoding/json"
	"io"
	"time"
)

// Report is the aggregated outcome of a health run.
type Report struct {
	Status    Status        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []CheckReport `json:"checks"`
}

// CheckReport is the serializable form of one check.
type CheckReport struct {
	Name     string         `json:"name"`
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func newCheckReport(name string, r Result) CheckReport {
	check := CheckReport{
		Name:     name,
		Status:   r.Status,
		Message:  r.Message,
		Duration: r.Duration.String(),
		Details:  r.Details,
	}
	if r.Error != nil {
		check.Error = r.Error.Error()
	}
	return check
}

// WriteJSON writes the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Healthy reports whether no check is unhealthy. Degraded counts as usable.
func (r Report) Healthy() bool {
	return r.Status != StatusUnhealthy
}
