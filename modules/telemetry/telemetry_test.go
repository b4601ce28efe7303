package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/looper"
)

type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, msg)
}

func (l *recordingLogger) Info(msg string, _ ...any)  { l.record(msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record(msg) }
func (l *recordingLogger) Debug(msg string, _ ...any) { l.record(msg) }

func (l *recordingLogger) contains(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if entry == msg {
			return true
		}
	}
	return false
}

func TestModuleRejectsInvalidSchedule(t *testing.T) {
	b := looper.NewBuilder(looper.WithLogger(&recordingLogger{}))
	b.AddModule(Module{Schedule: "not a cron expression"})

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestModuleReportsOnSchedule(t *testing.T) {
	logger := &recordingLogger{}
	b := looper.NewBuilder(looper.WithLogger(logger))
	b.AddModule(Module{Schedule: "@every 100ms"})

	app, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, app.Step())

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if logger.contains("Cycle statistics") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("no statistics report was logged")
}

func TestReportReadsCycleStats(t *testing.T) {
	logger := &recordingLogger{}
	storage := looper.NewStorage()
	require.NoError(t, looper.AddResource(storage, looper.CycleStats{Cycles: 42}))

	report(storage, logger)
	assert.True(t, logger.contains("Cycle statistics"))
}

func TestReportHandlesMissingStats(t *testing.T) {
	logger := &recordingLogger{}
	report(looper.NewStorage(), logger)
	assert.True(t, logger.contains("Telemetry report failed"))
}
