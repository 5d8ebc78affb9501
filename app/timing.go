package app

import (
	"encoding/binary"
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/lumen3d/lumen/core"
)

const timerBufferSize = 16 // two u64 ticks

type timerState int

const (
	timerIdle timerState = iota
	timerPendingReadback
)

// FrameTimer measures compute pass duration with a two-slot timestamp
// query set written on the encoder timeline around the pass. Readback
// is non-blocking: the result of frame N is reported whenever the map
// completes, frames in between skip the copy so the in-flight readback
// buffer is never overwritten. Any map failure drops that sample and
// returns the timer to idle.
type FrameTimer struct {
	device *wgpu.Device
	log    core.Logger

	querySet    *wgpu.QuerySet
	resolveBuf  *wgpu.Buffer
	readbackBuf *wgpu.Buffer

	// mapAsync requests the readback map. Split out from the buffer so
	// the readback state machine is drivable without a device.
	mapAsync func(callback func(wgpu.BufferMapAsyncStatus)) error

	state     timerState
	pending   bool
	mapped    bool
	mapFailed bool

	lastReport time.Time

	LastDuration time.Duration
	Samples      int
}

// NewFrameTimer allocates the query set and both staging buffers. The
// caller must only construct one on a device created with the
// timestamp query feature.
func NewFrameTimer(device *wgpu.Device, log core.Logger) (*FrameTimer, error) {
	qs, err := device.CreateQuerySet(&wgpu.QuerySetDescriptor{
		Label: "FrameTimerQueries",
		Type:  wgpu.QueryTypeTimestamp,
		Count: 2,
	})
	if err != nil {
		return nil, err
	}

	resolveBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "FrameTimerResolve",
		Size:  timerBufferSize,
		Usage: wgpu.BufferUsageQueryResolve | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		qs.Release()
		return nil, err
	}

	readbackBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "FrameTimerReadback",
		Size:  timerBufferSize,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		qs.Release()
		resolveBuf.Release()
		return nil, err
	}

	t := &FrameTimer{
		device:      device,
		log:         log,
		querySet:    qs,
		resolveBuf:  resolveBuf,
		readbackBuf: readbackBuf,
	}
	t.mapAsync = func(callback func(wgpu.BufferMapAsyncStatus)) error {
		return t.readbackBuf.MapAsync(wgpu.MapModeRead, 0, timerBufferSize, callback)
	}
	return t, nil
}

// BeginPass records the start timestamp. Call immediately before the
// compute pass begins.
func (t *FrameTimer) BeginPass(encoder *wgpu.CommandEncoder) {
	encoder.WriteTimestamp(t.querySet, 0)
}

// EndPass records the end timestamp. Call immediately after the
// compute pass ends.
func (t *FrameTimer) EndPass(encoder *wgpu.CommandEncoder) {
	encoder.WriteTimestamp(t.querySet, 1)
}

// Resolve records the query resolve into the encoder and, when no
// readback is in flight, the copy into the mappable buffer.
func (t *FrameTimer) Resolve(encoder *wgpu.CommandEncoder) {
	encoder.ResolveQuerySet(t.querySet, 0, 2, t.resolveBuf, 0)
	if t.state == timerIdle {
		encoder.CopyBufferToBuffer(t.resolveBuf, 0, t.readbackBuf, 0, timerBufferSize)
		t.state = timerPendingReadback
		t.pending = true
		t.mapped = false
		t.mapFailed = false
	}
}

// Poll advances the readback state machine after submit. It never
// blocks: a frame where the map has not completed yet simply reports
// nothing, and a rejected or failed map skips the sample and returns
// to idle.
func (t *FrameTimer) Poll() {
	if t.state != timerPendingReadback {
		return
	}

	if t.pending {
		t.pending = false
		err := t.mapAsync(func(status wgpu.BufferMapAsyncStatus) {
			if status == wgpu.BufferMapAsyncStatusSuccess {
				t.mapped = true
			} else {
				t.mapFailed = true
			}
		})
		if err != nil {
			t.log.Warnf("frame timer map request rejected, sample skipped: %v", err)
			t.state = timerIdle
			return
		}
	}

	if t.mapFailed {
		t.log.Warnf("frame timer readback map failed, sample skipped")
		t.state = timerIdle
		return
	}

	t.device.Poll(false, nil)
	if !t.mapped {
		return
	}

	data := t.readbackBuf.GetMappedRange(0, timerBufferSize)
	begin := binary.LittleEndian.Uint64(data[0:8])
	end := binary.LittleEndian.Uint64(data[8:16])
	t.readbackBuf.Unmap()
	t.state = timerIdle

	if end > begin {
		t.record(time.Duration(end-begin) * time.Nanosecond)
	}
}

// record stores the sample and reports it: every sample at debug, at
// most one line per second otherwise so a default run still shows the
// measured pass time without flooding the console.
func (t *FrameTimer) record(d time.Duration) {
	t.LastDuration = d
	t.Samples++
	if t.log.DebugEnabled() {
		t.log.Debugf("compute pass took %s", d)
		return
	}
	if time.Since(t.lastReport) >= time.Second {
		t.log.Infof("compute pass took %s", d)
		t.lastReport = time.Now()
	}
}

func (t *FrameTimer) Release() {
	t.readbackBuf.Release()
	t.resolveBuf.Release()
	t.querySet.Release()
}
