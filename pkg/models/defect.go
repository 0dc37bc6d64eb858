package models

// Severity ranks a defect. Errors block export, warnings and info do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rank orders severities so that error > warning > info.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// EntityKind names the collection a defect concerns.
type EntityKind string

const (
	EntityClients EntityKind = "clients"
	EntityWorkers EntityKind = "workers"
	EntityTasks   EntityKind = "tasks"
	EntitySystem  EntityKind = "system"
)

// SystemEntityID is used as the entity id of dataset-wide defects.
const SystemEntityID = "system"

// DefectKind tags the rule that produced a defect.
type DefectKind string

const (
	KindMissingRequiredField DefectKind = "missing_required_field"
	KindDuplicateID          DefectKind = "duplicate_id"
	KindMalformedList        DefectKind = "malformed_list"
	KindOutOfRange           DefectKind = "out_of_range"
	KindBrokenJSON           DefectKind = "broken_json"
	KindUnknownReference     DefectKind = "unknown_reference"
	KindCircularCoRun        DefectKind = "circular_corun"
	KindOverloadedWorker     DefectKind = "overloaded_worker"
	KindPhaseSaturation      DefectKind = "phase_saturation"
	KindSkillCoverage        DefectKind = "skill_coverage"
	KindMaxConcurrency       DefectKind = "max_concurrency"
	KindConflictingRules     DefectKind = "conflicting_rules"

	// KindAIInsight marks defects appended by the external advisor after
	// the rule battery has run.
	KindAIInsight DefectKind = "ai_insight"
)

// Severity returns the fixed severity of the kind.
func (k DefectKind) Severity() Severity {
	switch k {
	case KindOverloadedWorker, KindPhaseSaturation, KindMaxConcurrency:
		return SeverityWarning
	case KindAIInsight:
		return SeverityInfo
	default:
		return SeverityError
	}
}

// Defect is a single data quality or feasibility problem. Defects are
// values: every validation run produces a fresh, complete set.
type Defect struct {
	ID       string     `json:"id"`
	Kind     DefectKind `json:"type"`
	Entity   EntityKind `json:"entity"`
	EntityID string     `json:"entityId"`
	Field    string     `json:"field"`
	Message  string     `json:"message"`
	Severity Severity   `json:"severity"`
}

// HasErrors reports whether any defect has error severity.
func HasErrors(defects []Defect) bool {
	for _, d := range defects {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
