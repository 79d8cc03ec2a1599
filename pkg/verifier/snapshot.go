package verifier

import (
	"io"

	"github.com/blang/semver/v4"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/polycheck/polycheck/pkg/consistency"
	"github.com/polycheck/polycheck/pkg/history"
)

// SnapshotVersion is the format version written by SaveSnapshot.
// Snapshots with a different major version are rejected.
var SnapshotVersion = semver.MustParse("1.0.0")

// Snapshot records a run for audit and replay: the histories, the
// models they were checked against and the results.
type Snapshot struct {
	Version   string              `json:"version"`
	Models    []consistency.Model `json:"models"`
	Histories []*history.History  `json:"histories"`
	Results   []Result            `json:"results"`
}

func NewSnapshot(histories []*history.History, models []consistency.Model, rep *Report) *Snapshot {
	s := &Snapshot{
		Version:   SnapshotVersion.String(),
		Models:    models,
		Histories: histories,
	}
	if rep != nil {
		s.Results = rep.Results
	}
	return s
}

// Checks returns the checks the snapshot was produced from.
func (s *Snapshot) Checks() []Check {
	return Checks(s.Histories, s.Models)
}

func SaveSnapshot(w io.Writer, s *Snapshot) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	_, err = w.Write(data)
	return err
}

func LoadSnapshot(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading snapshot")
	}
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "decoding snapshot")
	}
	v, err := semver.Parse(s.Version)
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot version %q", s.Version)
	}
	if v.Major != SnapshotVersion.Major {
		return nil, errors.Errorf("snapshot version %s is incompatible with %s", v, SnapshotVersion)
	}
	return &s, nil
}

// Drift is a check whose verdict changed between two runs.
type Drift struct {
	HistoryID string            `json:"history"`
	Model     consistency.Model `json:"model"`
	Before    Verdict           `json:"before"`
	After     Verdict           `json:"after"`
}

// Compare lists the checks of recorded whose verdict differs in rep.
// Checks missing from rep are reported with an empty After.
func Compare(recorded []Result, rep *Report) []Drift {
	var drifts []Drift
	for _, r := range recorded {
		after, _ := rep.Verdict(r.HistoryID, r.Model)
		if after != r.Verdict {
			drifts = append(drifts, Drift{HistoryID: r.HistoryID, Model: r.Model, Before: r.Verdict, After: after})
		}
	}
	return drifts
}
