package entities

import (
	"encoding/json"
	"sort"
	"time"
)

// ReloadReport describes the outcome of one reload run. It is built by a single
// run and never shared between runs.
type ReloadReport struct {
	ReloadID string          `json:"reload_id"`
	Created  []string        `json:"created"`
	Updated  []string        `json:"updated"`
	Revived  []string        `json:"revived"`
	Missing  []string        `json:"missing"`
	Removed  []string        `json:"removed"`
	Problems []ReloadProblem `json:"problems"`
	Timing   ReloadTiming    `json:"timing"`
}

// ReloadProblem records a collector or persistence failure
type ReloadProblem struct {
	FacilityID  string `json:"facility_id,omitempty"`
	Collector   string `json:"collector,omitempty"`
	Description string `json:"description"`
	Data        string `json:"data,omitempty"`
}

// ReloadTiming marks the phases of a reload
type ReloadTiming struct {
	Start              time.Time     `json:"start"`
	CompleteCollection time.Time     `json:"complete_collection"`
	Complete           time.Time     `json:"complete"`
	TotalDuration      time.Duration `json:"-"`
}

// MarshalJSON renders the total duration as a Go duration string
func (t ReloadTiming) MarshalJSON() ([]byte, error) {
	type plain ReloadTiming
	return json.Marshal(struct {
		plain
		TotalDuration string `json:"total_duration"`
	}{plain: plain(t), TotalDuration: t.TotalDuration.String()})
}

// UnmarshalJSON reads the format written by MarshalJSON
func (t *ReloadTiming) UnmarshalJSON(data []byte) error {
	type plain ReloadTiming
	aux := struct {
		*plain
		TotalDuration string `json:"total_duration"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.TotalDuration == "" {
		t.TotalDuration = 0
		return nil
	}
	d, err := time.ParseDuration(aux.TotalDuration)
	if err != nil {
		return err
	}
	t.TotalDuration = d
	return nil
}

// NewReloadReport starts a report with empty, non-nil id lists
func NewReloadReport(reloadID string, start time.Time) *ReloadReport {
	return &ReloadReport{
		ReloadID: reloadID,
		Created:  []string{},
		Updated:  []string{},
		Revived:  []string{},
		Missing:  []string{},
		Removed:  []string{},
		Problems: []ReloadProblem{},
		Timing:   ReloadTiming{Start: start},
	}
}

// AddProblem appends a problem entry
func (r *ReloadReport) AddProblem(p ReloadProblem) {
	r.Problems = append(r.Problems, p)
}

// Finish sorts the id lists and records the end of the run
func (r *ReloadReport) Finish(end time.Time) {
	for _, ids := range [][]string{r.Created, r.Updated, r.Revived, r.Missing, r.Removed} {
		sort.Strings(ids)
	}
	r.Timing.Complete = end
	r.Timing.TotalDuration = end.Sub(r.Timing.Start)
}

// Changed reports whether the run wrote anything to the facility store
func (r *ReloadReport) Changed() bool {
	return len(r.Created)+len(r.Updated)+len(r.Revived)+len(r.Missing) > 0
}
