// Package models defines the record and defect shapes shared by the
// validation engine, the service layer and the transports.
package models

// Client is a customer row as mapped from the uploaded clients sheet.
type Client struct {
	ClientID         string     `json:"ClientID" yaml:"ClientID"`
	ClientName       string     `json:"ClientName" yaml:"ClientName"`
	PriorityLevel    int        `json:"PriorityLevel" yaml:"PriorityLevel"`
	RequestedTaskIDs StringList `json:"RequestedTaskIDs" yaml:"RequestedTaskIDs"`
	GroupTag         string     `json:"GroupTag" yaml:"GroupTag"`
	AttributesJSON   string     `json:"AttributesJSON" yaml:"AttributesJSON"`
}

// Worker is a staff row. AvailableSlots lists the phases the worker can be
// scheduled in; MaxLoadPerPhase caps concurrent task-units in one phase.
type Worker struct {
	WorkerID           string     `json:"WorkerID" yaml:"WorkerID"`
	WorkerName         string     `json:"WorkerName" yaml:"WorkerName"`
	Skills             StringList `json:"Skills" yaml:"Skills"`
	AvailableSlots     PhaseList  `json:"AvailableSlots" yaml:"AvailableSlots"`
	MaxLoadPerPhase    int        `json:"MaxLoadPerPhase" yaml:"MaxLoadPerPhase"`
	WorkerGroup        string     `json:"WorkerGroup" yaml:"WorkerGroup"`
	QualificationLevel int        `json:"QualificationLevel" yaml:"QualificationLevel"`
}

// Task is a unit of work. Duration is the number of phases it consumes and
// MaxConcurrent the number of instances that may run at once.
type Task struct {
	TaskID          string     `json:"TaskID" yaml:"TaskID"`
	TaskName        string     `json:"TaskName" yaml:"TaskName"`
	Category        string     `json:"Category" yaml:"Category"`
	Duration        int        `json:"Duration" yaml:"Duration"`
	RequiredSkills  StringList `json:"RequiredSkills" yaml:"RequiredSkills"`
	PreferredPhases PhaseList  `json:"PreferredPhases" yaml:"PreferredPhases"`
	MaxConcurrent   int        `json:"MaxConcurrent" yaml:"MaxConcurrent"`
}

// Field names as they appear in the uploaded sheets. Defects reference these.
const (
	FieldClientID         = "ClientID"
	FieldClientName       = "ClientName"
	FieldPriorityLevel    = "PriorityLevel"
	FieldRequestedTaskIDs = "RequestedTaskIDs"
	FieldAttributesJSON   = "AttributesJSON"

	FieldWorkerID        = "WorkerID"
	FieldWorkerName      = "WorkerName"
	FieldSkills          = "Skills"
	FieldAvailableSlots  = "AvailableSlots"
	FieldMaxLoadPerPhase = "MaxLoadPerPhase"

	FieldTaskID          = "TaskID"
	FieldTaskName        = "TaskName"
	FieldDuration        = "Duration"
	FieldRequiredSkills  = "RequiredSkills"
	FieldPreferredPhases = "PreferredPhases"
	FieldMaxConcurrent   = "MaxConcurrent"
)
