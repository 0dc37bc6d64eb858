package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"data-alchemist/backend/pkg/models"
)

func checkRequiredFields(s *snapshot) []models.Defect {
	var out []models.Defect
	missing := func(entity models.EntityKind, key, field string) {
		out = append(out, newDefect(models.KindMissingRequiredField, entity, key, field,
			fmt.Sprintf("%s is required", field)))
	}

	for i, c := range s.clients {
		key := entityKey(c.ClientID, i)
		if isBlank(c.ClientID) {
			missing(models.EntityClients, key, models.FieldClientID)
		}
		if isBlank(c.ClientName) {
			missing(models.EntityClients, key, models.FieldClientName)
		}
	}
	for i, w := range s.workers {
		key := entityKey(w.WorkerID, i)
		if isBlank(w.WorkerID) {
			missing(models.EntityWorkers, key, models.FieldWorkerID)
		}
		if isBlank(w.WorkerName) {
			missing(models.EntityWorkers, key, models.FieldWorkerName)
		}
	}
	for i, t := range s.tasks {
		key := entityKey(t.TaskID, i)
		if isBlank(t.TaskID) {
			missing(models.EntityTasks, key, models.FieldTaskID)
		}
		if isBlank(t.TaskName) {
			missing(models.EntityTasks, key, models.FieldTaskName)
		}
	}
	return out
}

// checkDuplicateIDs flags every repeat of an identifier within its own
// collection. The first occurrence is not flagged. Blank identifiers are
// left to checkRequiredFields.
func checkDuplicateIDs(s *snapshot) []models.Defect {
	var out []models.Defect
	scan := func(entity models.EntityKind, field string, ids []string) {
		seen := make(map[string]struct{}, len(ids))
		for _, raw := range ids {
			id := strings.TrimSpace(raw)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				out = append(out, newDefect(models.KindDuplicateID, entity, id, field,
					fmt.Sprintf("duplicate %s %q", field, id)))
				continue
			}
			seen[id] = struct{}{}
		}
	}

	clientIDs := make([]string, len(s.clients))
	for i, c := range s.clients {
		clientIDs[i] = c.ClientID
	}
	workerIDs := make([]string, len(s.workers))
	for i, w := range s.workers {
		workerIDs[i] = w.WorkerID
	}
	taskIDs := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		taskIDs[i] = t.TaskID
	}

	scan(models.EntityClients, models.FieldClientID, clientIDs)
	scan(models.EntityWorkers, models.FieldWorkerID, workerIDs)
	scan(models.EntityTasks, models.FieldTaskID, taskIDs)
	return out
}

// checkMalformedLists covers worker availability only. Unusable task phase
// cells are skipped by the saturation check and add no demand.
func checkMalformedLists(s *snapshot) []models.Defect {
	var out []models.Defect
	for i, w := range s.workers {
		key := entityKey(w.WorkerID, i)
		if w.AvailableSlots.Malformed {
			out = append(out, newDefect(models.KindMalformedList, models.EntityWorkers, key, models.FieldAvailableSlots,
				fmt.Sprintf("AvailableSlots is not a list: %s", w.AvailableSlots.Raw)))
			continue
		}
		for _, cell := range w.AvailableSlots.Cells {
			if _, ok := models.ParsePhase(cell); !ok {
				out = append(out, newDefect(models.KindMalformedList, models.EntityWorkers, key, models.FieldAvailableSlots,
					fmt.Sprintf("AvailableSlots entry %q is not a positive integer", cell)))
			}
		}
	}
	return out
}

func checkOutOfRange(s *snapshot) []models.Defect {
	var out []models.Defect
	for i, c := range s.clients {
		if c.PriorityLevel < 1 || c.PriorityLevel > 5 {
			out = append(out, newDefect(models.KindOutOfRange, models.EntityClients, entityKey(c.ClientID, i), models.FieldPriorityLevel,
				fmt.Sprintf("PriorityLevel %d is outside 1-5", c.PriorityLevel)))
		}
	}
	for i, t := range s.tasks {
		if t.Duration < 1 {
			out = append(out, newDefect(models.KindOutOfRange, models.EntityTasks, entityKey(t.TaskID, i), models.FieldDuration,
				fmt.Sprintf("Duration %d must be at least 1", t.Duration)))
		}
	}
	for i, w := range s.workers {
		if w.MaxLoadPerPhase < 1 {
			out = append(out, newDefect(models.KindOutOfRange, models.EntityWorkers, entityKey(w.WorkerID, i), models.FieldMaxLoadPerPhase,
				fmt.Sprintf("MaxLoadPerPhase %d must be at least 1", w.MaxLoadPerPhase)))
		}
	}
	return out
}

// checkBrokenJSON flags attribute blobs that do not parse. An empty blob
// means no attributes and is not reported.
func checkBrokenJSON(s *snapshot) []models.Defect {
	var out []models.Defect
	for i, c := range s.clients {
		if isBlank(c.AttributesJSON) {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(c.AttributesJSON), &v); err != nil {
			out = append(out, newDefect(models.KindBrokenJSON, models.EntityClients, entityKey(c.ClientID, i), models.FieldAttributesJSON,
				fmt.Sprintf("AttributesJSON is not valid JSON: %v", err)))
		}
	}
	return out
}

// checkUnknownReferences reports each requested task id that no task
// carries, once per client.
func checkUnknownReferences(s *snapshot) []models.Defect {
	known := make(map[string]struct{}, len(s.tasks))
	for _, t := range s.tasks {
		if id := strings.TrimSpace(t.TaskID); id != "" {
			known[id] = struct{}{}
		}
	}

	var out []models.Defect
	for i, c := range s.clients {
		key := entityKey(c.ClientID, i)
		reported := make(map[string]struct{})
		for _, raw := range c.RequestedTaskIDs {
			ref := strings.TrimSpace(raw)
			if ref == "" {
				continue
			}
			if _, ok := known[ref]; ok {
				continue
			}
			if _, done := reported[ref]; done {
				continue
			}
			reported[ref] = struct{}{}
			out = append(out, newDefect(models.KindUnknownReference, models.EntityClients, key, models.FieldRequestedTaskIDs,
				fmt.Sprintf("requested task %q does not exist", ref)))
		}
	}
	return out
}
