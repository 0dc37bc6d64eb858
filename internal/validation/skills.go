package validation

import (
	"fmt"

	"data-alchemist/backend/pkg/models"
)

// checkSkillCoverage reports every required skill no worker offers, once per
// (task, skill) pair.
func checkSkillCoverage(s *snapshot) []models.Defect {
	offered := make(map[string]struct{})
	for _, w := range s.workers {
		for _, skill := range w.Skills {
			offered[skill] = struct{}{}
		}
	}

	var out []models.Defect
	for i, t := range s.tasks {
		key := entityKey(t.TaskID, i)
		reported := make(map[string]struct{})
		for _, skill := range t.RequiredSkills {
			if _, ok := offered[skill]; ok {
				continue
			}
			if _, done := reported[skill]; done {
				continue
			}
			reported[skill] = struct{}{}
			out = append(out, newDefect(models.KindSkillCoverage, models.EntityTasks, key, models.FieldRequiredSkills,
				fmt.Sprintf("no worker has required skill %q", skill)))
		}
	}
	return out
}

// checkMaxConcurrency warns when a task allows more parallel instances than
// there are qualified workers to staff them.
func checkMaxConcurrency(s *snapshot) []models.Defect {
	workerSkills := make([]map[string]struct{}, len(s.workers))
	for i, w := range s.workers {
		set := make(map[string]struct{}, len(w.Skills))
		for _, skill := range w.Skills {
			set[skill] = struct{}{}
		}
		workerSkills[i] = set
	}

	var out []models.Defect
	for i, t := range s.tasks {
		qualified := 0
		for _, skills := range workerSkills {
			if hasAll(skills, t.RequiredSkills) {
				qualified++
			}
		}
		if t.MaxConcurrent > qualified {
			out = append(out, newDefect(models.KindMaxConcurrency, models.EntityTasks, entityKey(t.TaskID, i), models.FieldMaxConcurrent,
				fmt.Sprintf("MaxConcurrent %d exceeds the %d qualified workers", t.MaxConcurrent, qualified)))
		}
	}
	return out
}

func hasAll(set map[string]struct{}, required []string) bool {
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}
