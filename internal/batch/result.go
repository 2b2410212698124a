// Package batch holds the bookkeeping shared by the best-effort, row-at-a-time
// writers of the pipeline.
package batch

import (
	"encoding/json"
	"fmt"
)

// Failure records one row that could not be written.
type Failure struct {
	ID  string
	Err error
}

func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID    string `json:"id"`
		Error string `json:"error"`
	}{ID: f.ID, Error: errText(f.Err)})
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Result accumulates outcomes across every page of a run.
type Result struct {
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures,omitempty"`
}

func (r *Result) AddUpdated() {
	r.Updated++
}

func (r *Result) AddSkipped() {
	r.Skipped++
}

func (r *Result) AddFailure(id string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{ID: id, Err: err})
}

// Merge folds other into r.
func (r *Result) Merge(other Result) {
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Failures = append(r.Failures, other.Failures...)
}

// Processed is the number of rows the run looked at.
func (r Result) Processed() int {
	return r.Updated + r.Skipped + r.Failed
}

// FailedIDs lists the ids of failed rows in the order they failed.
func (r Result) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.ID)
	}
	return ids
}

func (r Result) String() string {
	return fmt.Sprintf("updated=%d skipped=%d failed=%d", r.Updated, r.Skipped, r.Failed)
}
