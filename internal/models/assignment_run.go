package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AllocationMode selects the batch auto-assign strategy.
type AllocationMode string

const (
	ModeNaive          AllocationMode = "naive"
	ModeGenderBalanced AllocationMode = "gender_balanced"
)

// Valid reports whether the mode is supported.
func (m AllocationMode) Valid() bool {
	return m == ModeNaive || m == ModeGenderBalanced
}

// RunStatus captures background run lifecycle states.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "QUEUED"
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusFinished RunStatus = "FINISHED"
	RunStatusFailed   RunStatus = "FAILED"
)

// OutcomeResult is the per-mentee result of a batch run.
type OutcomeResult string

const (
	OutcomeAssigned     OutcomeResult = "assigned"
	OutcomeUnresolvable OutcomeResult = "unresolvable"
	OutcomeSkipped      OutcomeResult = "skipped"
	OutcomeFailed       OutcomeResult = "failed"
)

// AssignmentOutcome records what happened to one mentee during a batch run.
type AssignmentOutcome struct {
	MenteeID   string        `json:"mentee_id"`
	Department string        `json:"department,omitempty"`
	MentorID   string        `json:"mentor_id,omitempty"`
	Result     OutcomeResult `json:"result"`
	Reason     string        `json:"reason,omitempty"`
}

// BatchResult aggregates a batch auto-assign execution.
type BatchResult struct {
	Mode         AllocationMode `json:"mode,omitempty"`
	Assigned     int            `json:"assigned"`
	Unresolvable int            `json:"unresolvable"`
	Skipped      int            `json:"skipped"`
	Failed       int            `json:"failed"`
	Outcomes     OutcomeLog     `json:"outcomes"`
}

// Record appends an outcome and bumps the matching counter.
func (r *BatchResult) Record(o AssignmentOutcome) {
	switch o.Result {
	case OutcomeAssigned:
		r.Assigned++
	case OutcomeUnresolvable:
		r.Unresolvable++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// AssignmentRun is a persisted batch execution.
type AssignmentRun struct {
	ID           string         `db:"id" json:"id"`
	Mode         AllocationMode `db:"mode" json:"mode"`
	Status       RunStatus      `db:"status" json:"status"`
	Assigned     int            `db:"assigned" json:"assigned"`
	Unresolvable int            `db:"unresolvable" json:"unresolvable"`
	Skipped      int            `db:"skipped" json:"skipped"`
	Failed       int            `db:"failed" json:"failed"`
	Outcomes     OutcomeLog     `db:"outcomes" json:"outcomes"`
	CreatedBy    *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time     `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string        `db:"error_message" json:"error_message,omitempty"`
}

// Result returns the counters and outcomes recorded on the run so far.
func (r *AssignmentRun) Result() BatchResult {
	return BatchResult{
		Mode:         r.Mode,
		Assigned:     r.Assigned,
		Unresolvable: r.Unresolvable,
		Skipped:      r.Skipped,
		Failed:       r.Failed,
		Outcomes:     r.Outcomes,
	}
}

// Merge folds a later attempt into r. A mentee keeps its assigned outcome; any
// other earlier outcome is replaced by the later one. Counters are recomputed.
func (r BatchResult) Merge(next BatchResult) BatchResult {
	merged := BatchResult{Mode: next.Mode}
	index := make(map[string]int, len(r.Outcomes)+len(next.Outcomes))
	outcomes := make([]AssignmentOutcome, 0, len(r.Outcomes)+len(next.Outcomes))
	for _, o := range append(append([]AssignmentOutcome{}, r.Outcomes...), next.Outcomes...) {
		if i, seen := index[o.MenteeID]; seen {
			if outcomes[i].Result != OutcomeAssigned {
				outcomes[i] = o
			}
			continue
		}
		index[o.MenteeID] = len(outcomes)
		outcomes = append(outcomes, o)
	}
	for _, o := range outcomes {
		merged.Record(o)
	}
	if merged.Outcomes == nil {
		merged.Outcomes = OutcomeLog{}
	}
	return merged
}

// Apply copies batch counters and outcomes onto the run.
func (r *AssignmentRun) Apply(result BatchResult) {
	r.Assigned = result.Assigned
	r.Unresolvable = result.Unresolvable
	r.Skipped = result.Skipped
	r.Failed = result.Failed
	r.Outcomes = result.Outcomes
}

// OutcomeLog is persisted as JSONB.
type OutcomeLog []AssignmentOutcome

// Value marshals the log to JSON for persistence.
func (l OutcomeLog) Value() (driver.Value, error) {
	if l == nil {
		l = OutcomeLog{}
	}
	data, err := json.Marshal([]AssignmentOutcome(l))
	if err != nil {
		return nil, fmt.Errorf("marshal outcome log: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the log.
func (l *OutcomeLog) Scan(value interface{}) error {
	if value == nil {
		*l = OutcomeLog{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for OutcomeLog", value)
	}
	if len(data) == 0 {
		*l = OutcomeLog{}
		return nil
	}
	var out []AssignmentOutcome
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal outcome log: %w", err)
	}
	*l = out
	return nil
}
