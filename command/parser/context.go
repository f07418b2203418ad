/*
 * coresim - Console context.
 *
 * Copyright 2026, coresim contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package parser

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync"

	"github.com/csopesy/core/config/configparser"
	"github.com/csopesy/core/vm/gen"
	"github.com/csopesy/core/vm/instr"
	"github.com/csopesy/core/vm/memory"
	"github.com/csopesy/core/vm/process"
	"github.com/csopesy/core/vm/scheduler"
)

// Context is the long-lived handle the REPL holds across commands: the
// loaded configuration plus the memory manager and scheduler it
// constructs, and the named process table `screen` commands operate on.
// Per spec.md §9's guidance against global singletons, exactly one
// Context exists per process and is threaded explicitly rather than kept
// in package-level state.
type Context struct {
	mu sync.Mutex

	cfg         configparser.Config
	initialized bool

	Mem   *memory.Manager
	Sched *scheduler.Scheduler

	byName map[string]*process.Process

	ReportPath     string
	BackingLogPath string

	backingLog *os.File
}

// New returns an uninitialized Context; Initialize must run before any
// other command succeeds.
func New() *Context {
	return &Context{
		byName:         make(map[string]*process.Process),
		BackingLogPath: "backing-store.log",
	}
}

func (c *Context) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Initialize loads path and wires the memory manager and scheduler. It and
// exit are the only commands runnable before the system is initialized.
func (c *Context) Initialize(path string) error {
	cfg, err := configparser.Load(path)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return fmt.Errorf("initialize: already initialized")
	}
	c.cfg = cfg

	var backing io.Writer
	if c.BackingLogPath != "" {
		f, err := os.Create(c.BackingLogPath)
		if err != nil {
			return fmt.Errorf("initialize: backing-store log: %w", err)
		}
		c.backingLog = f
		backing = f
	}
	c.Mem = memory.NewManager(cfg.MaxOverallMem, cfg.MemPerFrame, backing)

	policy := scheduler.FCFS
	if cfg.Scheduler == configparser.RoundRobin {
		policy = scheduler.RoundRobin
	}
	generator := gen.New(rand.New(rand.NewSource(1)))
	schedCfg := scheduler.Config{
		NumCPU:           cfg.NumCPU,
		Policy:           policy,
		QuantumCycles:    cfg.QuantumCycles,
		BatchProcessFreq: cfg.BatchProcessFreq,
		MinIns:           cfg.MinIns,
		MaxIns:           cfg.MaxIns,
		DelayPerExec:     cfg.DelayPerExec,
		MemPerProc:       cfg.MemPerProc,
		StampDir:         ".",
		StampEvery:       uint64(cfg.QuantumCycles),
	}
	c.Sched = scheduler.New(schedCfg, c.Mem, func(min, max int) []instr.Instruction {
		return generator(min, max)
	})
	c.Sched.Start()
	c.initialized = true
	return nil
}

// CreateProcess allocates address space for name, builds a process around
// the already parsed prog, registers it, and enqueues it. Fails (leaving no
// partial state) on a name collision or a rejected allocation.
func (c *Context) CreateProcess(name string, bytesSize int, prog []instr.Instruction) (*process.Process, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[name]; exists {
		return nil, fmt.Errorf("screen: %w: %q", memory.ErrNameInUse, name)
	}
	pid, err := c.Mem.Allocate(name, bytesSize)
	if err != nil {
		return nil, err
	}
	base, _ := c.Mem.BaseAddr(name)
	p := process.New(pid, name, prog, uint32(base), uint32(bytesSize))
	c.byName[name] = p
	c.Sched.Enqueue(p)
	return p, nil
}

// Lookup returns the named process, if any.
func (c *Context) Lookup(name string) (*process.Process, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.byName[name]
	return p, ok
}

// Config returns the loaded configuration.
func (c *Context) Config() configparser.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Close releases resources opened by Initialize (currently just the
// backing-store log). Safe to call on an uninitialized Context.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backingLog != nil {
		return c.backingLog.Close()
	}
	return nil
}
