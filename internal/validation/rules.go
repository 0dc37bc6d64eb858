package validation

import "data-alchemist/backend/pkg/models"

// checkCircularCoRun will detect co-run groups that reference each other in
// a cycle. Co-run groups come from business rule definitions, which base
// records do not carry, so the check reports nothing until rules are passed
// to the engine.
func checkCircularCoRun(*snapshot) []models.Defect {
	return nil
}

// checkConflictingRules will detect rules whose constraints cannot hold at
// the same time. Like checkCircularCoRun it needs rule definitions and is
// empty until they exist.
func checkConflictingRules(*snapshot) []models.Defect {
	return nil
}
