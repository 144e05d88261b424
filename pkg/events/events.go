// Package events defines the lifecycle events published while canvas runs execute.
package events

import (
	"time"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every canvasblocks event.
const Topic = "canvasblocks.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunStartedEvent  EventType = "run.started"
	RunFinishedEvent EventType = "run.finished"
	RunFailedEvent   EventType = "run.failed"

	// Script lifecycle events.
	ScriptStartedEvent  EventType = "script.started"
	ScriptFinishedEvent EventType = "script.finished"
	ScriptFailedEvent   EventType = "script.failed"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id"`
	CanvasPath  string         `json:"canvas_path"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type RunStarted struct {
	BaseEvent

	AnchorID string               `json:"anchor_id"`
	Mode     models.ExecutionMode `json:"mode"`
}

func (r RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunFinished struct {
	BaseEvent

	Mode     models.ExecutionMode `json:"mode"`
	Executed []string             `json:"executed"`
	Duration time.Duration        `json:"duration"`
}

func (r RunFinished) GetType() EventType {
	return RunFinishedEvent
}

type RunFailed struct {
	BaseEvent

	Mode           models.ExecutionMode `json:"mode"`
	Executed       []string             `json:"executed"`
	FailedScriptID string               `json:"failed_script_id,omitempty"`
	Error          string               `json:"error"`
	Duration       time.Duration        `json:"duration"`
}

func (r RunFailed) GetType() EventType {
	return RunFailedEvent
}

type ScriptStarted struct {
	BaseEvent

	ScriptID string `json:"script_id"`
}

func (s ScriptStarted) GetType() EventType {
	return ScriptStartedEvent
}

type ScriptFinished struct {
	BaseEvent

	ScriptID string        `json:"script_id"`
	Duration time.Duration `json:"duration"`
}

func (s ScriptFinished) GetType() EventType {
	return ScriptFinishedEvent
}

type ScriptFailed struct {
	BaseEvent

	ScriptID string        `json:"script_id"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (s ScriptFailed) GetType() EventType {
	return ScriptFailedEvent
}

func NewBaseEvent(eventType EventType, executionID, canvasPath string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ExecutionID: executionID,
		CanvasPath:  canvasPath,
		Metadata:    make(map[string]any),
	}
}
