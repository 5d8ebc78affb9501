package app

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/lumen3d/lumen/core"
)

// Any status other than success must drop the sample.
const mapStatusFailed = wgpu.BufferMapAsyncStatusSuccess + 1

func pendingTimer(mapAsync func(func(wgpu.BufferMapAsyncStatus)) error) *FrameTimer {
	return &FrameTimer{
		log:      core.NewNopLogger(),
		state:    timerPendingReadback,
		pending:  true,
		mapAsync: mapAsync,
	}
}

func TestFrameTimerRejectedMapReturnsToIdle(t *testing.T) {
	calls := 0
	ft := pendingTimer(func(func(wgpu.BufferMapAsyncStatus)) error {
		calls++
		return errors.New("map rejected")
	})

	ft.Poll()

	if ft.state != timerIdle {
		t.Fatalf("state after rejected map = %d, want idle", ft.state)
	}
	if ft.Samples != 0 {
		t.Errorf("samples = %d, want 0", ft.Samples)
	}
	if calls != 1 {
		t.Errorf("map requests = %d, want 1", calls)
	}

	// Idle timer must not re-request the map.
	ft.Poll()
	if calls != 1 {
		t.Errorf("map requests after idle poll = %d, want 1", calls)
	}
}

func TestFrameTimerFailedMapStatusSkipsSample(t *testing.T) {
	ft := pendingTimer(func(callback func(wgpu.BufferMapAsyncStatus)) error {
		callback(mapStatusFailed)
		return nil
	})

	ft.Poll()

	if ft.state != timerIdle {
		t.Fatalf("state after failed map = %d, want idle", ft.state)
	}
	if ft.Samples != 0 {
		t.Errorf("samples = %d, want 0", ft.Samples)
	}
}

func TestFrameTimerRecordReportsWithoutDebug(t *testing.T) {
	log := &captureLogger{}
	ft := &FrameTimer{log: log}

	ft.record(1500000) // 1.5ms
	if ft.Samples != 1 || ft.LastDuration != 1500000 {
		t.Fatalf("sample not stored: %d samples, %s", ft.Samples, ft.LastDuration)
	}
	if log.infos != 1 {
		t.Fatalf("info lines = %d, want 1", log.infos)
	}

	// Immediately after, the second sample is rate limited.
	ft.record(1600000)
	if log.infos != 1 {
		t.Errorf("info lines after burst = %d, want 1", log.infos)
	}
	if ft.Samples != 2 {
		t.Errorf("samples = %d, want 2", ft.Samples)
	}
}

type captureLogger struct {
	infos int
	warns int
}

func (c *captureLogger) DebugEnabled() bool                { return false }
func (c *captureLogger) Debugf(format string, args ...any) {}
func (c *captureLogger) Infof(format string, args ...any)  { c.infos++ }
func (c *captureLogger) Warnf(format string, args ...any)  { c.warns++ }
func (c *captureLogger) Errorf(format string, args ...any) {}
