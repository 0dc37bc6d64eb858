package validation

import (
	"fmt"
	"sort"

	"data-alchemist/backend/pkg/models"
)

// checkOverloadedWorkers warns when a worker may take more concurrent load
// than it has phases to offer.
func checkOverloadedWorkers(s *snapshot) []models.Defect {
	var out []models.Defect
	for i, w := range s.workers {
		slots := len(w.AvailableSlots.Phases())
		if slots < w.MaxLoadPerPhase {
			out = append(out, newDefect(models.KindOverloadedWorker, models.EntityWorkers, entityKey(w.WorkerID, i), models.FieldMaxLoadPerPhase,
				fmt.Sprintf("MaxLoadPerPhase %d exceeds the %d available slots", w.MaxLoadPerPhase, slots)))
		}
	}
	return out
}

// checkPhaseSaturation compares, per phase, the summed duration of tasks
// preferring the phase against the summed max load of workers available in
// it. Only phases some task prefers are considered; they are reported in
// ascending phase order.
func checkPhaseSaturation(s *snapshot) []models.Defect {
	capacity := make(map[int]int)
	for _, w := range s.workers {
		for _, p := range w.AvailableSlots.Phases() {
			capacity[p] += w.MaxLoadPerPhase
		}
	}

	demand := make(map[int]int)
	for _, t := range s.tasks {
		for _, p := range t.PreferredPhases.Phases() {
			demand[p] += t.Duration
		}
	}

	phases := make([]int, 0, len(demand))
	for p, d := range demand {
		if d > 0 {
			phases = append(phases, p)
		}
	}
	sort.Ints(phases)

	var out []models.Defect
	for _, p := range phases {
		if demand[p] <= capacity[p] {
			continue
		}
		out = append(out, newDefect(models.KindPhaseSaturation, models.EntitySystem, models.SystemEntityID, phaseField(p),
			fmt.Sprintf("phase %d is saturated: demand %d exceeds capacity %d", p, demand[p], capacity[p])))
	}
	return out
}

func phaseField(p int) string {
	return fmt.Sprintf("phase-%d", p)
}
