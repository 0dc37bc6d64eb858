package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"data-alchemist/backend/pkg/models"
)

const yamlFixture = `clients:
  - ClientID: C1
    ClientName: Acme
    PriorityLevel: 3
    RequestedTaskIDs: T1, T2
workers:
  - WorkerID: W1
    WorkerName: Ada
    Skills: [go, sql]
    AvailableSlots: "[1,2]"
    MaxLoadPerPhase: 2
`

const jsonFixture = `{
  "tasks": [
    {"TaskID": "T1", "TaskName": "Build", "Duration": 1, "RequiredSkills": "go", "PreferredPhases": [1], "MaxConcurrent": 1}
  ]
}`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	checkFormat, checkSeverity = "text", "info"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLoadRecordFiles_MergesInOrder(t *testing.T) {
	yamlPath := writeFixture(t, "records.yaml", yamlFixture)
	jsonPath := writeFixture(t, "tasks.json", jsonFixture)

	records, err := loadRecordFiles([]string{yamlPath, jsonPath, yamlPath})
	require.NoError(t, err)
	require.Len(t, records.Clients, 2)
	require.Len(t, records.Workers, 2)
	require.Len(t, records.Tasks, 1)
	assert.Equal(t, models.StringList{"T1", "T2"}, records.Clients[0].RequestedTaskIDs)
	assert.Equal(t, []int{1, 2}, records.Workers[0].AvailableSlots.Phases())
	assert.Equal(t, models.StringList{"go"}, records.Tasks[0].RequiredSkills)
}

func TestLoadRecordFiles_Errors(t *testing.T) {
	_, err := loadRecordFiles([]string{filepath.Join(t.TempDir(), "missing.json")})
	assert.ErrorContains(t, err, "failed to read")

	bad := writeFixture(t, "bad.json", `{"clients": [`)
	_, err = loadRecordFiles([]string{bad})
	assert.ErrorContains(t, err, "failed to parse")
}

func TestCheck_ReportsErrors(t *testing.T) {
	yamlPath := writeFixture(t, "records.yaml", yamlFixture)
	jsonPath := writeFixture(t, "tasks.json", jsonFixture)

	out, err := runRoot(t, "check", yamlPath, jsonPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, errDefectsFound)
	assert.Contains(t, out, "unknown_reference")
	assert.Contains(t, out, `requested task "T2" does not exist`)
	assert.Contains(t, out, "1 errors, 0 warnings, 0 info")
}

func TestCheck_CleanJSONOutput(t *testing.T) {
	clean := writeFixture(t, "clean.yaml", yamlFixture+`tasks:
  - TaskID: T1
    TaskName: Build
    Duration: 1
    RequiredSkills: go
    PreferredPhases: 1-2
    MaxConcurrent: 1
  - TaskID: T2
    TaskName: Ship
    Duration: 1
    PreferredPhases: [2]
    MaxConcurrent: 1
`)

	out, err := runRoot(t, "check", "--format", "json", clean)
	require.NoError(t, err, out)

	var result models.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Empty(t, result.Defects)
	assert.True(t, result.Summary.Exportable)
}

func TestCheck_RejectsUnknownSeverity(t *testing.T) {
	path := writeFixture(t, "records.yaml", yamlFixture)

	_, err := runRoot(t, "check", "--min-severity", "fatal", path)
	assert.ErrorContains(t, err, `unknown severity "fatal"`)
}
