// Package validation inspects clients, workers and tasks together and
// reports data quality and feasibility problems as defects.
//
// The engine is a pure function of its inputs. It keeps no state between
// calls, never mutates the records it is given and never fails: every
// problem, including malformed input, is reported as a models.Defect.
package validation

import (
	"fmt"
	"strconv"
	"strings"

	"data-alchemist/backend/pkg/models"
)

// check is one rule of the battery. Checks are independent of each other
// and must not modify the snapshot.
type check struct {
	name string
	run  func(s *snapshot) []models.Defect
}

// Engine runs the fixed, ordered battery of checks.
type Engine struct {
	checks []check
}

// NewEngine returns an engine with the standard battery.
func NewEngine() *Engine {
	return &Engine{
		checks: []check{
			{"required_fields", checkRequiredFields},
			{"duplicate_ids", checkDuplicateIDs},
			{"malformed_lists", checkMalformedLists},
			{"out_of_range", checkOutOfRange},
			{"broken_json", checkBrokenJSON},
			{"unknown_references", checkUnknownReferences},
			{"circular_corun", checkCircularCoRun},
			{"overloaded_workers", checkOverloadedWorkers},
			{"phase_saturation", checkPhaseSaturation},
			{"skill_coverage", checkSkillCoverage},
			{"max_concurrency", checkMaxConcurrency},
			{"conflicting_rules", checkConflictingRules},
		},
	}
}

// Checks returns the names of the checks in the order they run.
func (e *Engine) Checks() []string {
	names := make([]string, len(e.checks))
	for i, c := range e.checks {
		names[i] = c.name
	}
	return names
}

// Validate runs every check and returns their defects concatenated in
// check order. Within a check, records are visited in input order. The
// result is never nil.
func (e *Engine) Validate(clients []models.Client, workers []models.Worker, tasks []models.Task) []models.Defect {
	s := &snapshot{clients: clients, workers: workers, tasks: tasks}
	ids := newIDAssigner()

	out := make([]models.Defect, 0)
	for _, c := range e.checks {
		for _, d := range c.run(s) {
			d.ID = ids.next(d)
			out = append(out, d)
		}
	}
	return out
}

// snapshot is the read-only view the checks share during one run.
type snapshot struct {
	clients []models.Client
	workers []models.Worker
	tasks   []models.Task
}

// idAssigner derives stable defect ids from kind, entity, entity id and
// field. Repeats of the same composite within a run get an ordinal suffix.
type idAssigner struct {
	seen map[string]int
}

func newIDAssigner() *idAssigner {
	return &idAssigner{seen: make(map[string]int)}
}

func (a *idAssigner) next(d models.Defect) string {
	base := fmt.Sprintf("%s:%s:%s:%s", d.Kind, d.Entity, d.EntityID, d.Field)
	a.seen[base]++
	if n := a.seen[base]; n > 1 {
		return base + "#" + strconv.Itoa(n)
	}
	return base
}

func newDefect(kind models.DefectKind, entity models.EntityKind, entityID, field, msg string) models.Defect {
	return models.Defect{
		Kind:     kind,
		Entity:   entity,
		EntityID: entityID,
		Field:    field,
		Message:  msg,
		Severity: kind.Severity(),
	}
}

// entityKey is the id used to locate a record in a defect. Records without
// an identifier are located by their 1-based row number.
func entityKey(id string, index int) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "row-" + strconv.Itoa(index+1)
	}
	return id
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
