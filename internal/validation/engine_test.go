package validation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"data-alchemist/backend/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// cleanRecords returns a small dataset that passes every check.
func cleanRecords() ([]models.Client, []models.Worker, []models.Task) {
	clients := []models.Client{
		{ClientID: "C1", ClientName: "Acme", PriorityLevel: 3, RequestedTaskIDs: models.StringList{"T1"}, AttributesJSON: `{"tier":"gold"}`},
	}
	workers := []models.Worker{
		{WorkerID: "W1", WorkerName: "Ada", Skills: models.StringList{"go", "sql"}, AvailableSlots: models.NewPhaseList(1, 2), MaxLoadPerPhase: 2},
	}
	tasks := []models.Task{
		{TaskID: "T1", TaskName: "Build", Duration: 1, RequiredSkills: models.StringList{"go"}, PreferredPhases: models.NewPhaseList(1), MaxConcurrent: 1},
	}
	return clients, workers, tasks
}

func ofKind(defects []models.Defect, kind models.DefectKind) []models.Defect {
	var out []models.Defect
	for _, d := range defects {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func TestValidateEmptyInput(t *testing.T) {
	got := NewEngine().Validate(nil, nil, nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestValidateCleanDataset(t *testing.T) {
	clients, workers, tasks := cleanRecords()
	assert.Empty(t, NewEngine().Validate(clients, workers, tasks))
}

func TestChecksRunInFixedOrder(t *testing.T) {
	assert.Equal(t, []string{
		"required_fields",
		"duplicate_ids",
		"malformed_lists",
		"out_of_range",
		"broken_json",
		"unknown_references",
		"circular_corun",
		"overloaded_workers",
		"phase_saturation",
		"skill_coverage",
		"max_concurrency",
		"conflicting_rules",
	}, NewEngine().Checks())
}

func TestRequiredFields(t *testing.T) {
	clients := []models.Client{{ClientName: "No ID", PriorityLevel: 1}}
	workers := []models.Worker{{WorkerID: "W1", AvailableSlots: models.NewPhaseList(1), MaxLoadPerPhase: 1}}
	tasks := []models.Task{{TaskID: " ", TaskName: "", Duration: 1}}

	got := ofKind(NewEngine().Validate(clients, workers, tasks), models.KindMissingRequiredField)
	want := []models.Defect{
		{ID: "missing_required_field:clients:row-1:ClientID", Kind: models.KindMissingRequiredField, Entity: models.EntityClients, EntityID: "row-1", Field: "ClientID", Message: "ClientID is required", Severity: models.SeverityError},
		{ID: "missing_required_field:workers:W1:WorkerName", Kind: models.KindMissingRequiredField, Entity: models.EntityWorkers, EntityID: "W1", Field: "WorkerName", Message: "WorkerName is required", Severity: models.SeverityError},
		{ID: "missing_required_field:tasks:row-1:TaskID", Kind: models.KindMissingRequiredField, Entity: models.EntityTasks, EntityID: "row-1", Field: "TaskID", Message: "TaskID is required", Severity: models.SeverityError},
		{ID: "missing_required_field:tasks:row-1:TaskName", Kind: models.KindMissingRequiredField, Entity: models.EntityTasks, EntityID: "row-1", Field: "TaskName", Message: "TaskName is required", Severity: models.SeverityError},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("missing field defects mismatch (-want +got):\n%s", diff)
	}
}

func TestDuplicateIDsFlagRepeatsOnly(t *testing.T) {
	clients, workers, tasks := cleanRecords()
	clients = append(clients, clients[0])

	dups := ofKind(NewEngine().Validate(clients, workers, tasks), models.KindDuplicateID)
	require.Len(t, dups, 1)
	assert.Equal(t, "C1", dups[0].EntityID)
	assert.Equal(t, models.FieldClientID, dups[0].Field)
	assert.Equal(t, models.SeverityError, dups[0].Severity)
}

func TestDuplicateIDsEveryRepeatFlagged(t *testing.T) {
	tasks := []models.Task{
		{TaskID: "T1", TaskName: "a", Duration: 1},
		{TaskID: "T1", TaskName: "b", Duration: 1},
		{TaskID: "T1", TaskName: "c", Duration: 1},
	}
	dups := ofKind(NewEngine().Validate(nil, nil, tasks), models.KindDuplicateID)
	require.Len(t, dups, 2)
	assert.Equal(t, "duplicate_id:tasks:T1:TaskID", dups[0].ID)
	assert.Equal(t, "duplicate_id:tasks:T1:TaskID#2", dups[1].ID)
}

func TestDuplicateIDsAreScopedPerCollection(t *testing.T) {
	clients := []models.Client{{ClientID: "X", ClientName: "c", PriorityLevel: 1}}
	workers := []models.Worker{{WorkerID: "X", WorkerName: "w", AvailableSlots: models.NewPhaseList(1), MaxLoadPerPhase: 1}}
	tasks := []models.Task{{TaskID: "X", TaskName: "t", Duration: 1}}

	assert.Empty(t, ofKind(NewEngine().Validate(clients, workers, tasks), models.KindDuplicateID))
}

func TestMalformedAvailableSlots(t *testing.T) {
	workers := []models.Worker{
		{WorkerID: "W1", WorkerName: "a", MaxLoadPerPhase: 1, AvailableSlots: models.PhaseList{Malformed: true, Raw: `{"x":1}`}},
		{WorkerID: "W2", WorkerName: "b", MaxLoadPerPhase: 1, AvailableSlots: models.PhaseList{Cells: []string{"1", "x", "0"}}},
	}
	got := ofKind(NewEngine().Validate(nil, workers, nil), models.KindMalformedList)
	require.Len(t, got, 3)
	assert.Equal(t, "W1", got[0].EntityID)
	assert.Contains(t, got[0].Message, "not a list")
	assert.Equal(t, "W2", got[1].EntityID)
	assert.Contains(t, got[1].Message, `"x"`)
	assert.Contains(t, got[2].Message, `"0"`)
	assert.NotEqual(t, got[1].ID, got[2].ID)
}

// Only worker availability is checked for list shape. Task phase cells that
// are not positive integers add no demand.
func TestMalformedPreferredPhasesAddNoDemand(t *testing.T) {
	workers := []models.Worker{{WorkerID: "W1", WorkerName: "a", Skills: models.StringList{"go"}, AvailableSlots: models.NewPhaseList(1), MaxLoadPerPhase: 1}}
	tasks := []models.Task{
		{TaskID: "T1", TaskName: "a", Duration: 5, PreferredPhases: models.PhaseList{Malformed: true, Raw: `{"a":1}`}},
		{TaskID: "T2", TaskName: "b", Duration: 1, PreferredPhases: models.PhaseList{Cells: []string{"x", "2"}}},
	}
	got := NewEngine().Validate(nil, workers, tasks)
	assert.Empty(t, ofKind(got, models.KindMalformedList))

	saturated := ofKind(got, models.KindPhaseSaturation)
	require.Len(t, saturated, 1)
	assert.Equal(t, "phase-2", saturated[0].Field)
	assert.Equal(t, "phase 2 is saturated: demand 1 exceeds capacity 0", saturated[0].Message)
}

func TestPriorityLevelRange(t *testing.T) {
	for level := -1; level <= 7; level++ {
		clients := []models.Client{{ClientID: "C1", ClientName: "n", PriorityLevel: level}}
		got := ofKind(NewEngine().Validate(clients, nil, nil), models.KindOutOfRange)
		if level >= 1 && level <= 5 {
			assert.Empty(t, got, "level %d", level)
			continue
		}
		require.Len(t, got, 1, "level %d", level)
		assert.Equal(t, models.FieldPriorityLevel, got[0].Field)
		assert.Contains(t, got[0].Message, "PriorityLevel")
	}
}

func TestOutOfRangeDurationAndLoad(t *testing.T) {
	workers := []models.Worker{{WorkerID: "W1", WorkerName: "w", AvailableSlots: models.NewPhaseList(1), MaxLoadPerPhase: 0}}
	tasks := []models.Task{{TaskID: "T1", TaskName: "t", Duration: -2}}

	got := ofKind(NewEngine().Validate(nil, workers, tasks), models.KindOutOfRange)
	require.Len(t, got, 2)
	assert.Equal(t, models.FieldDuration, got[0].Field)
	assert.Contains(t, got[0].Message, "-2")
	assert.Equal(t, models.FieldMaxLoadPerPhase, got[1].Field)
	assert.Contains(t, got[1].Message, "0")
}

func TestBrokenAttributesJSON(t *testing.T) {
	clients := []models.Client{
		{ClientID: "C1", ClientName: "a", PriorityLevel: 1, AttributesJSON: `{"ok":true}`},
		{ClientID: "C2", ClientName: "b", PriorityLevel: 1, AttributesJSON: `{broken`},
		{ClientID: "C3", ClientName: "c", PriorityLevel: 1},
	}
	got := ofKind(NewEngine().Validate(clients, nil, nil), models.KindBrokenJSON)
	require.Len(t, got, 1)
	assert.Equal(t, "C2", got[0].EntityID)
	assert.Equal(t, models.SeverityError, got[0].Severity)
}

func TestUnknownReferences(t *testing.T) {
	clients, workers, tasks := cleanRecords()
	clients[0].RequestedTaskIDs = models.StringList{"T1", "T9", "T8", "T9"}

	got := ofKind(NewEngine().Validate(clients, workers, tasks), models.KindUnknownReference)
	require.Len(t, got, 2)
	assert.Contains(t, got[0].Message, `"T9"`)
	assert.Contains(t, got[1].Message, `"T8"`)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestOverloadedWorker(t *testing.T) {
	workers := []models.Worker{
		{WorkerID: "W1", WorkerName: "a", AvailableSlots: models.NewPhaseList(1), MaxLoadPerPhase: 3},
		{WorkerID: "W2", WorkerName: "b", AvailableSlots: models.NewPhaseList(1, 2, 3), MaxLoadPerPhase: 3},
	}
	got := ofKind(NewEngine().Validate(nil, workers, nil), models.KindOverloadedWorker)
	require.Len(t, got, 1)
	assert.Equal(t, "W1", got[0].EntityID)
	assert.Equal(t, models.SeverityWarning, got[0].Severity)
}

func TestPhaseSaturationArithmetic(t *testing.T) {
	workers := []models.Worker{{WorkerID: "W1", WorkerName: "a", AvailableSlots: models.NewPhaseList(1), MaxLoadPerPhase: 2}}
	tasks := []models.Task{
		{TaskID: "T1", TaskName: "a", Duration: 2, PreferredPhases: models.NewPhaseList(1)},
		{TaskID: "T2", TaskName: "b", Duration: 2, PreferredPhases: models.NewPhaseList(1)},
	}
	got := ofKind(NewEngine().Validate(nil, workers, tasks), models.KindPhaseSaturation)
	require.Len(t, got, 1)
	assert.Equal(t, models.EntitySystem, got[0].Entity)
	assert.Equal(t, models.SystemEntityID, got[0].EntityID)
	assert.Equal(t, "phase 1 is saturated: demand 4 exceeds capacity 2", got[0].Message)
	assert.Equal(t, models.SeverityWarning, got[0].Severity)
}

func TestPhaseSaturationOrderAndSilence(t *testing.T) {
	workers := []models.Worker{{WorkerID: "W1", WorkerName: "a", AvailableSlots: models.NewPhaseList(2, 5), MaxLoadPerPhase: 1}}
	tasks := []models.Task{
		{TaskID: "T1", TaskName: "a", Duration: 3, PreferredPhases: models.NewPhaseList(4, 3)},
		{TaskID: "T2", TaskName: "b", Duration: 1, PreferredPhases: models.NewPhaseList(2)},
	}
	got := ofKind(NewEngine().Validate(nil, workers, tasks), models.KindPhaseSaturation)
	require.Len(t, got, 2)
	assert.Equal(t, "phase-3", got[0].Field)
	assert.Equal(t, "phase-4", got[1].Field)
}

func TestSkillCoverage(t *testing.T) {
	clients, workers, tasks := cleanRecords()
	tasks[0].RequiredSkills = models.StringList{"go", "Rust", "Rust"}

	engine := NewEngine()
	got := ofKind(engine.Validate(clients, workers, tasks), models.KindSkillCoverage)
	require.Len(t, got, 1)
	assert.Equal(t, "T1", got[0].EntityID)
	assert.Contains(t, got[0].Message, `"Rust"`)

	workers = append(workers, models.Worker{WorkerID: "W2", WorkerName: "Fe", Skills: models.StringList{"Rust"}, AvailableSlots: models.NewPhaseList(1), MaxLoadPerPhase: 1})
	assert.Empty(t, ofKind(engine.Validate(clients, workers, tasks), models.KindSkillCoverage))
}

func TestMaxConcurrencyFeasibility(t *testing.T) {
	workers := []models.Worker{
		{WorkerID: "W1", WorkerName: "a", Skills: models.StringList{"go", "sql"}, AvailableSlots: models.NewPhaseList(1), MaxLoadPerPhase: 1},
		{WorkerID: "W2", WorkerName: "b", Skills: models.StringList{"go"}, AvailableSlots: models.NewPhaseList(1), MaxLoadPerPhase: 1},
	}
	tasks := []models.Task{{TaskID: "T1", TaskName: "t", Duration: 1, RequiredSkills: models.StringList{"go", "sql"}, MaxConcurrent: 3}}

	got := ofKind(NewEngine().Validate(nil, workers, tasks), models.KindMaxConcurrency)
	require.Len(t, got, 1)
	assert.Equal(t, "MaxConcurrent 3 exceeds the 1 qualified workers", got[0].Message)
	assert.Equal(t, models.SeverityWarning, got[0].Severity)
}

func TestReservedChecksAreEmpty(t *testing.T) {
	clients, workers, tasks := cleanRecords()
	s := &snapshot{clients: clients, workers: workers, tasks: tasks}
	assert.Empty(t, checkCircularCoRun(s))
	assert.Empty(t, checkConflictingRules(s))
}

func TestDefectsFollowCheckOrder(t *testing.T) {
	clients := []models.Client{
		{ClientID: "C1", ClientName: "", PriorityLevel: 9, RequestedTaskIDs: models.StringList{"missing"}, AttributesJSON: "nope"},
		{ClientID: "C1", ClientName: "dup", PriorityLevel: 1},
	}
	workers := []models.Worker{{WorkerID: "W1", WorkerName: "w", AvailableSlots: models.PhaseList{Cells: []string{"a"}}, MaxLoadPerPhase: 1}}
	tasks := []models.Task{{TaskID: "T1", TaskName: "t", Duration: 1, RequiredSkills: models.StringList{"zig"}, PreferredPhases: models.NewPhaseList(1), MaxConcurrent: 1}}

	var kinds []models.DefectKind
	for _, d := range NewEngine().Validate(clients, workers, tasks) {
		kinds = append(kinds, d.Kind)
	}
	assert.Equal(t, []models.DefectKind{
		models.KindMissingRequiredField,
		models.KindDuplicateID,
		models.KindMalformedList,
		models.KindOutOfRange,
		models.KindBrokenJSON,
		models.KindUnknownReference,
		models.KindOverloadedWorker,
		models.KindPhaseSaturation,
		models.KindSkillCoverage,
		models.KindMaxConcurrency,
	}, kinds)
}

func messyRecords() ([]models.Client, []models.Worker, []models.Task) {
	clients := []models.Client{
		{ClientID: "C1", ClientName: "a", PriorityLevel: 0, RequestedTaskIDs: models.StringList{"T2", "T1"}},
		{ClientID: "C1", ClientName: "b", PriorityLevel: 2, AttributesJSON: "{"},
	}
	workers := []models.Worker{{WorkerID: "W1", WorkerName: "w", Skills: models.StringList{"go"}, AvailableSlots: models.PhaseList{Cells: []string{"1", "1", "x"}}, MaxLoadPerPhase: 4}}
	tasks := []models.Task{{TaskID: "T1", TaskName: "t", Duration: 9, RequiredSkills: models.StringList{"go", "c"}, PreferredPhases: models.NewPhaseList(1, 1), MaxConcurrent: 2}}
	return clients, workers, tasks
}

func TestValidateIsIdempotentAndDoesNotMutate(t *testing.T) {
	clients, workers, tasks := messyRecords()
	wantClients, wantWorkers, wantTasks := messyRecords()

	engine := NewEngine()
	first := engine.Validate(clients, workers, tasks)
	second := engine.Validate(clients, workers, tasks)
	third := NewEngine().Validate(clients, workers, tasks)

	require.NotEmpty(t, first)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated validation differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first, third); diff != "" {
		t.Errorf("fresh engine differs (-first +third):\n%s", diff)
	}
	assert.Equal(t, wantClients, clients)
	assert.Equal(t, wantWorkers, workers)
	assert.Equal(t, wantTasks, tasks)
}

func TestRecordsWithoutIDStillParticipate(t *testing.T) {
	workers := []models.Worker{{WorkerName: "anon", AvailableSlots: models.NewPhaseList(1), MaxLoadPerPhase: 5}}

	got := NewEngine().Validate(nil, workers, nil)
	overloaded := ofKind(got, models.KindOverloadedWorker)
	require.Len(t, overloaded, 1)
	assert.Equal(t, "row-1", overloaded[0].EntityID)
}
