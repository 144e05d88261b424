package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dukex/canvasblocks/pkg/config"
	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/triggers"
	"github.com/dukex/canvasblocks/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Execute(ctx context.Context, request models.RunRequest) (*models.Execution, error) {
	args := m.Called(ctx, request)

	execution, _ := args.Get(0).(*models.Execution)

	return execution, args.Error(1)
}

// manualTrigger hands its callback to the test instead of producing requests itself.
type manualTrigger struct {
	mu       sync.Mutex
	callback triggers.Callback
	stopped  bool
	startErr error
}

func (m *manualTrigger) Start(_ context.Context, callback triggers.Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callback = callback

	return m.startErr
}

func (m *manualTrigger) Stop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true

	return nil
}

func (m *manualTrigger) fire(ctx context.Context, request models.RunRequest) error {
	m.mu.Lock()
	callback := m.callback
	m.mu.Unlock()

	return callback(ctx, request)
}

func TestWorkerManager_ExecutesTriggeredRequests(t *testing.T) {
	request := models.RunRequest{CanvasPath: "flow.canvas", NodeID: "script"}

	runner := &mockRunner{}
	runner.On("Execute", mock.Anything, request).Return(&models.Execution{ID: "run-1"}, nil).Once()

	wm := NewWorkerManager("worker-1", runner, discardLogger())
	trigger := &manualTrigger{}

	require.NoError(t, wm.Start(t.Context(), "manual", trigger))
	require.NoError(t, trigger.fire(t.Context(), request))

	runner.AssertExpectations(t)
	assert.Equal(t, []string{"manual"}, wm.Running())
	assert.Equal(t, "worker-1", wm.GetWorkerID())
}

func TestWorkerManager_ScriptFailuresDoNotFailTheTrigger(t *testing.T) {
	request := models.RunRequest{CanvasPath: "flow.canvas", NodeID: "script"}
	scriptErr := &workflow.ScriptError{ScriptID: "script", Err: workflow.ErrScriptFailed}

	runner := &mockRunner{}
	runner.On("Execute", mock.Anything, request).Return(&models.Execution{ID: "run-1"}, scriptErr).Once()

	wm := NewWorkerManager("worker-1", runner, discardLogger())
	trigger := &manualTrigger{}
	require.NoError(t, wm.Start(t.Context(), "manual", trigger))

	assert.NoError(t, trigger.fire(t.Context(), request))
}

func TestWorkerManager_RunsThatCannotStartFail(t *testing.T) {
	request := models.RunRequest{CanvasPath: "missing.canvas", NodeID: "script"}
	startErr := errors.New("canvas not found")

	runner := &mockRunner{}
	runner.On("Execute", mock.Anything, request).Return(nil, startErr).Once()

	wm := NewWorkerManager("worker-1", runner, discardLogger())
	trigger := &manualTrigger{}
	require.NoError(t, wm.Start(t.Context(), "manual", trigger))

	assert.ErrorIs(t, trigger.fire(t.Context(), request), startErr)
}

func TestWorkerManager_StartAndStop(t *testing.T) {
	wm := NewWorkerManager("worker-1", &mockRunner{}, discardLogger())
	first := &manualTrigger{}

	require.NoError(t, wm.Start(t.Context(), "manual", first))
	require.Error(t, wm.Start(t.Context(), "manual", &manualTrigger{}))

	failing := &manualTrigger{startErr: errors.New("boom")}
	require.Error(t, wm.Start(t.Context(), "broken", failing))
	assert.Equal(t, []string{"manual"}, wm.Running())

	require.NoError(t, wm.Stop(t.Context()))
	assert.True(t, first.stopped)
	assert.Empty(t, wm.Running())
}

func TestSetupTriggers(t *testing.T) {
	settings := config.Default()

	configured, err := SetupTriggers(t.Context(), settings, discardLogger())
	require.NoError(t, err)
	assert.Empty(t, configured)

	settings.Schedules = []config.Schedule{{Cron: "*/5 * * * *", Canvas: "flow.canvas", NodeID: "script"}}

	configured, err = SetupTriggers(t.Context(), settings, discardLogger())
	require.NoError(t, err)
	assert.Contains(t, configured, ScheduleTriggerName)
	assert.NotContains(t, configured, QueueTriggerName)

	settings.Schedules[0].Cron = "not a cron"
	_, err = SetupTriggers(t.Context(), settings, discardLogger())
	require.Error(t, err)
}
