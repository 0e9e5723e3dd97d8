package vecadd

import (
	"fmt"
	"time"

	"github.com/gogpu/vecadd/backend"
)

// Result carries the timing of one dispatch.
type Result struct {
	// Elapsed is the wall time from command submission to completion.
	Elapsed time.Duration

	// BufferBytes is the size of one data buffer in bytes.
	BufferBytes uint64
}

// Milliseconds returns the elapsed time in whole milliseconds.
func (r Result) Milliseconds() int64 { return r.Elapsed.Milliseconds() }

// GBPerSecond returns the effective memory bandwidth of the dispatch.
// The kernel reads one buffer's worth from each input, so traffic is
// counted as twice the buffer size.
func (r Result) GBPerSecond() float64 {
	secs := r.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return 2 * float64(r.BufferBytes) / float64(1<<30) / secs
}

// Dispatch encodes the addition over all N elements into a fresh command
// buffer, submits it, and blocks until the device reports completion.
// The measured interval covers submission through completion; encoding
// is excluded.
func (p *Pipeline) Dispatch() (Result, error) {
	if p.closed {
		return Result{}, ErrClosed
	}
	if p.result == nil {
		return Result{}, ErrNotPrepared
	}

	cmd, err := p.device.NewCommandBuffer()
	if err != nil {
		return Result{}, fmt.Errorf("vecadd: create command buffer: %w", err)
	}
	if err := cmd.SetPipeline(p.kernel); err != nil {
		return Result{}, fmt.Errorf("vecadd: bind pipeline: %w", err)
	}
	for slot, buf := range []backend.Buffer{p.a, p.b, p.result} {
		if err := cmd.SetBuffer(uint32(slot), buf); err != nil {
			return Result{}, fmt.Errorf("vecadd: bind buffer %d: %w", slot, err)
		}
	}

	group := p.kernel.MaxThreadsPerThreadgroup()
	if p.n < group {
		group = p.n
	}
	if err := cmd.DispatchThreads(p.n, group); err != nil {
		return Result{}, fmt.Errorf("vecadd: dispatch: %w", err)
	}
	Logger().Debug("dispatch encoded", "threads", p.n, "group", group)

	start := time.Now()
	if err := cmd.Commit(); err != nil {
		return Result{}, fmt.Errorf("vecadd: commit: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return Result{}, fmt.Errorf("vecadd: wait: %w", err)
	}
	res := Result{
		Elapsed:     time.Since(start),
		BufferBytes: uint64(p.n) * 4,
	}
	Logger().Debug("dispatch complete", "elapsed", res.Elapsed)
	return res, nil
}

// Run executes one full round: fill inputs, dispatch, verify. It is the
// programmatic equivalent of the vecadd command.
func (p *Pipeline) Run() (Result, error) {
	if err := p.PrepareData(); err != nil {
		return Result{}, err
	}
	res, err := p.Dispatch()
	if err != nil {
		return Result{}, err
	}
	if err := p.Verify(); err != nil {
		return res, err
	}
	return res, nil
}
