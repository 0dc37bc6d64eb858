package models

import (
	"time"
)

// Dataset is an uploaded snapshot of the three record collections.
type Dataset struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	Clients   []Client  `json:"clients"`
	Workers   []Worker  `json:"workers"`
	Tasks     []Task    `json:"tasks"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Records is the body shape used when records are posted without a dataset.
type Records struct {
	Clients []Client `json:"clients" yaml:"clients"`
	Workers []Worker `json:"workers" yaml:"workers"`
	Tasks   []Task   `json:"tasks" yaml:"tasks"`
}

// ValidationResult is the outcome of one validation run.
type ValidationResult struct {
	DatasetID      string    `json:"dataset_id,omitempty"`
	DatasetVersion int       `json:"dataset_version,omitempty"`
	Sequence       uint64    `json:"sequence"`
	Defects        []Defect  `json:"defects"`
	Summary        Summary   `json:"summary"`
	ValidatedAt    time.Time `json:"validated_at"`
	// Superseded is set when a newer run for the same dataset was stored
	// first; callers should discard this result.
	Superseded bool `json:"superseded,omitempty"`
}

// Summary aggregates a defect list the way the presentation layer groups it.
type Summary struct {
	Errors     int                `json:"errors"`
	Warnings   int                `json:"warnings"`
	Info       int                `json:"info"`
	ByEntity   map[EntityKind]int `json:"by_entity"`
	ByKind     map[DefectKind]int `json:"by_kind"`
	Exportable bool               `json:"exportable"`
}

// Summarize counts defects by severity, entity and kind.
func Summarize(defects []Defect) Summary {
	s := Summary{
		ByEntity: make(map[EntityKind]int),
		ByKind:   make(map[DefectKind]int),
	}
	for _, d := range defects {
		switch d.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		case SeverityInfo:
			s.Info++
		}
		s.ByEntity[d.Entity]++
		s.ByKind[d.Kind]++
	}
	s.Exportable = s.Errors == 0
	return s
}

// ExportBundle is what an export hands to the downstream allocator.
type ExportBundle struct {
	Dataset *Dataset          `json:"dataset"`
	Result  *ValidationResult `json:"validation"`
}
