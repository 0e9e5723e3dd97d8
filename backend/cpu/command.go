package cpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/vecadd/backend"
)

// commandState tracks the lifecycle of a command buffer.
type commandState int

const (
	// stateRecording means the buffer is accepting commands.
	stateRecording commandState = iota

	// stateCommitted means the buffer has been submitted.
	stateCommitted

	// stateCompleted means execution finished and Wait returned.
	stateCompleted
)

// String returns the string representation of commandState.
func (s commandState) String() string {
	switch s {
	case stateRecording:
		return "Recording"
	case stateCommitted:
		return "Committed"
	case stateCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// commandBuffer records exactly one kernel launch and executes it on the
// worker pool. It is single-use: Recording -> Committed -> Completed.
type commandBuffer struct {
	mu sync.Mutex

	device   *Device
	state    commandState
	pipeline *pipeline
	bound    map[uint32]*buffer

	grid  int
	group int

	done    chan struct{}
	execErr error
}

func (c *commandBuffer) checkRecording() error {
	if c.state != stateRecording {
		return fmt.Errorf("%w: state is %s", backend.ErrNotRecording, c.state)
	}
	return nil
}

// SetPipeline binds the pipeline for the dispatch.
func (c *commandBuffer) SetPipeline(p backend.Pipeline) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkRecording(); err != nil {
		return fmt.Errorf("set pipeline: %w", err)
	}
	cp, ok := p.(*pipeline)
	if !ok || cp == nil {
		return fmt.Errorf("set pipeline: %w", backend.ErrNoPipeline)
	}
	c.pipeline = cp
	return nil
}

// SetBuffer binds a buffer at the given argument slot.
func (c *commandBuffer) SetBuffer(slot uint32, buf backend.Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkRecording(); err != nil {
		return fmt.Errorf("set buffer: %w", err)
	}
	cb, ok := buf.(*buffer)
	if !ok || cb == nil {
		return fmt.Errorf("set buffer: %w", backend.ErrMissingBinding)
	}
	if cb.Float32() == nil {
		return fmt.Errorf("set buffer: %w", backend.ErrBufferReleased)
	}
	if c.bound == nil {
		c.bound = make(map[uint32]*buffer)
	}
	c.bound[slot] = cb
	return nil
}

// DispatchThreads records a launch of grid threads in groups of at most
// group threads. Exactly one launch may be recorded per command buffer.
func (c *commandBuffer) DispatchThreads(grid, group int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkRecording(); err != nil {
		return fmt.Errorf("dispatch threads: %w", err)
	}
	if c.pipeline == nil {
		return fmt.Errorf("dispatch threads: %w", backend.ErrNoPipeline)
	}
	if c.grid != 0 {
		return fmt.Errorf("dispatch threads: %w", backend.ErrDispatchRecorded)
	}
	if grid <= 0 || group <= 0 {
		return fmt.Errorf("%w: grid=%d group=%d", backend.ErrInvalidDispatch, grid, group)
	}
	if group > c.pipeline.maxThreads {
		return fmt.Errorf("%w: threadgroup %d exceeds pipeline maximum %d",
			backend.ErrInvalidDispatch, group, c.pipeline.maxThreads)
	}

	c.grid = grid
	c.group = group
	return nil
}

// Commit validates the recorded launch and submits it to the worker pool.
// Submission is asynchronous: execution proceeds on background goroutines
// and Commit returns immediately.
func (c *commandBuffer) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkRecording(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if c.pipeline == nil {
		return fmt.Errorf("commit: %w", backend.ErrNoPipeline)
	}
	if c.grid == 0 {
		return fmt.Errorf("commit: %w", backend.ErrNoDispatch)
	}

	// Resolve bound buffers into the slot-ordered argument views the
	// kernel expects. Every slot the pipeline declares must be bound.
	args := make([][]float32, len(c.pipeline.bindings))
	for i, binding := range c.pipeline.bindings {
		buf, ok := c.bound[binding.Slot]
		if !ok {
			return fmt.Errorf("commit: %w: slot %d", backend.ErrMissingBinding, binding.Slot)
		}
		view := buf.Float32()
		if view == nil {
			return fmt.Errorf("commit: %w: slot %d", backend.ErrBufferReleased, binding.Slot)
		}
		args[i] = view
	}

	c.state = stateCommitted
	c.done = make(chan struct{})
	go c.execute(args)
	return nil
}

// execute runs the launch across the worker pool: threadgroups are
// distributed in contiguous batches, threads within a group run
// sequentially on one worker. A panic in the kernel is the software
// device's execution fault.
func (c *commandBuffer) execute(args [][]float32) {
	defer close(c.done)

	fn := c.pipeline.fn
	grid, group := c.grid, c.group
	groups := (grid + group - 1) / group

	workers := c.device.workers
	if workers > groups {
		workers = groups
	}
	groupsPerWorker := (groups + workers - 1) / workers

	var wg sync.WaitGroup
	var faultMu sync.Mutex
	var fault error

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		startGroup := w * groupsPerWorker
		endGroup := startGroup + groupsPerWorker
		if endGroup > groups {
			endGroup = groups
		}

		go func(startGroup, endGroup int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					faultMu.Lock()
					if fault == nil {
						fault = fmt.Errorf("%w: kernel panic: %v", backend.ErrExecutionFault, r)
					}
					faultMu.Unlock()
				}
			}()

			for g := startGroup; g < endGroup; g++ {
				base := g * group
				end := base + group
				if end > grid {
					// Ragged final group: the dispatch covers exactly
					// grid threads, never more.
					end = grid
				}
				for gid := base; gid < end; gid++ {
					fn(args, gid)
				}
			}
		}(startGroup, endGroup)
	}

	wg.Wait()
	c.execErr = fault
}

// Wait blocks until execution completes and returns its status.
func (c *commandBuffer) Wait() error {
	c.mu.Lock()
	if c.state == stateRecording {
		c.mu.Unlock()
		return fmt.Errorf("wait: %w", backend.ErrNotCommitted)
	}
	done := c.done
	c.mu.Unlock()

	<-done

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateCompleted
	return c.execErr
}
