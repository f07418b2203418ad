/*
 * coresim - Core scheduler.
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

// Package scheduler runs a fixed pool of core workers that pull processes
// off a ready queue and advance them one tick at a time, under either an
// FCFS (run-to-completion) or round-robin (quantum-preemptive) policy.
//
// Grounded on the teacher repo's emu/core/core.go for the goroutine
// lifecycle idiom: a per-worker sync.WaitGroup entry, a shared done channel
// closed by Stop, and Stop blocking on the WaitGroup (here without the
// core.go timeout, since scheduler workers always observe done promptly
// between ticks). The tick algorithm itself -- dispatch, run one step,
// re-enqueue or retire, sleep/quantum bookkeeping -- is grounded on
// original_source/scheduler.cpp's runCore loop.
package scheduler

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/csopesy/core/report"
	"github.com/csopesy/core/vm/instr"
	"github.com/csopesy/core/vm/memory"
	"github.com/csopesy/core/vm/process"
)

// Policy selects the dispatch discipline.
type Policy int

const (
	FCFS Policy = iota
	RoundRobin
)

// ProgramGenerator produces a random instruction list with between min and
// max top-level instructions, used by the batch spawner. Kept as an injected
// collaborator so the scheduler never depends on the concrete grammar used
// to generate test programs (SPEC_FULL.md §4).
type ProgramGenerator func(min, max int) []instr.Instruction

// Config bundles the knobs read from the configuration file (spec.md §6).
type Config struct {
	NumCPU           int
	Policy           Policy
	QuantumCycles    int
	BatchProcessFreq int
	MinIns, MaxIns   int
	DelayPerExec     int
	MemPerProc       int

	// StampDir, when non-empty, enables periodic memory_stamp_<quantum>.txt
	// snapshots every StampEvery ticks (spec.md §6). StampEvery <= 0
	// disables stamping even when StampDir is set.
	StampDir   string
	StampEvery uint64
}

// Scheduler owns the ready queue, the per-core running slots, and the
// worker pool driving them.
type Scheduler struct {
	cfg Config
	mem *memory.Manager
	gen ProgramGenerator

	mu       sync.Mutex
	ready    []*process.Process
	running  []*process.Process // len == cfg.NumCPU; nil slot == idle core
	finished []*process.Process
	quantum  map[*process.Process]int // RR: ticks remaining in current quantum

	tick     uint64 // atomic tick counter
	spawnSeq uint64 // atomic, batch-spawned process name sequence

	wg   sync.WaitGroup
	done chan struct{}

	batchRunning bool

	started bool
}

// New constructs a Scheduler bound to mem for the memory-touching
// instructions its processes execute.
func New(cfg Config, mem *memory.Manager, gen ProgramGenerator) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		mem:     mem,
		gen:     gen,
		running: make([]*process.Process, cfg.NumCPU),
		quantum: make(map[*process.Process]int),
	}
}

// Tick returns the current global tick count.
func (s *Scheduler) Tick() uint64 {
	return atomic.LoadUint64(&s.tick)
}

// Enqueue adds a freshly created process to the ready queue.
func (s *Scheduler) Enqueue(p *process.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = append(s.ready, p)
}

// Snapshot describes scheduler state for screen -ls / report-util.
type Snapshot struct {
	CoresUsed  int
	CoresTotal int
	Running    []ProcessView
	Ready      []ProcessView
	Finished   []ProcessView
}

// ProcessView is the read-only projection of a process exposed to reports.
type ProcessView struct {
	PID         int
	Name        string
	Core        int
	CurrentLine int
	TotalLines  int
	Terminal    bool
}

func view(p *process.Process) ProcessView {
	return ProcessView{
		PID:         p.ID,
		Name:        p.Name,
		Core:        p.Core(),
		CurrentLine: p.CurrentLine(),
		TotalLines:  p.TotalLines(),
		Terminal:    p.Terminal(),
	}
}

// Snapshot returns a consistent view of the scheduler's three process
// lists.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := 0
	var running []ProcessView
	for _, p := range s.running {
		if p != nil {
			used++
			running = append(running, view(p))
		}
	}
	var ready []ProcessView
	for _, p := range s.ready {
		ready = append(ready, view(p))
	}
	var fin []ProcessView
	for _, p := range s.finished {
		fin = append(fin, view(p))
	}
	return Snapshot{CoresUsed: used, CoresTotal: len(s.running), Running: running, Ready: ready, Finished: fin}
}

// Start launches cfg.NumCPU worker goroutines. Safe to call once; a second
// call before Stop is a no-op. Workers run independently of the batch
// spawner (see StartBatch/StopBatch): `initialize` starts the core pool,
// while `scheduler-start`/`scheduler-stop` toggle only random process
// generation, per spec.md §6.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	for core := 0; core < s.cfg.NumCPU; core++ {
		s.wg.Add(1)
		go s.worker(core)
	}
}

// Stop signals every worker (and the batch spawner, if running) to exit,
// blocks until they have, and releases the memory of every process still
// on the ready queue or assigned to a core -- finished processes were
// already released as they terminated, so this only catches the ones
// teardown itself cuts short (spec.md §3, "scheduler teardown ... releases
// their memory").
func (s *Scheduler) Stop() {
	s.StopBatch()

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	var leftover []string
	for i, p := range s.running {
		if p != nil {
			leftover = append(leftover, p.Name)
			s.running[i] = nil
		}
	}
	for _, p := range s.ready {
		leftover = append(leftover, p.Name)
	}
	s.ready = nil
	s.mu.Unlock()

	if s.mem != nil {
		for _, name := range leftover {
			s.mem.Deallocate(name)
		}
	}
}

// StartBatch enables the batch spawner, synthesizing one new process every
// cfg.BatchProcessFreq ticks of the shared tick counter (spec.md §4.4). A
// no-op if no generator was supplied or cfg.BatchProcessFreq is
// non-positive.
func (s *Scheduler) StartBatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.BatchProcessFreq <= 0 || s.gen == nil {
		return
	}
	s.batchRunning = true
}

// StopBatch disables the batch spawner.
func (s *Scheduler) StopBatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchRunning = false
}

func (s *Scheduler) isBatchRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchRunning
}

// worker is one core's dispatch loop: pick a process, run one tick of it,
// then decide whether it stays assigned, goes back to ready, or retires.
func (s *Scheduler) worker(core int) {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.runOneTick(core)
		}
	}
}

func (s *Scheduler) runOneTick(core int) {
	tick := atomic.AddUint64(&s.tick, 1)
	if s.cfg.StampDir != "" && s.cfg.StampEvery > 0 && tick%s.cfg.StampEvery == 0 {
		if _, err := report.WriteMemoryStamp(s.cfg.StampDir, s.mem, tick, time.Now()); err != nil {
			slog.Warn("memory stamp write failed", "tick", tick, "err", err)
		}
	}
	if s.cfg.BatchProcessFreq > 0 && tick%uint64(s.cfg.BatchProcessFreq) == 0 && s.isBatchRunning() {
		s.spawnOne()
	}

	s.mu.Lock()
	p := s.running[core]
	if p == nil {
		if len(s.ready) == 0 {
			s.mu.Unlock()
			return
		}
		p = s.ready[0]
		s.ready = s.ready[1:]
		s.running[core] = p
		p.SetCore(core)
		if s.cfg.Policy == RoundRobin {
			s.quantum[p] = s.cfg.QuantumCycles
		}
	}
	s.mu.Unlock()

	if p.IsSleeping() {
		woke := p.TickSleep()
		if !woke {
			return
		}
	} else {
		if d := p.DelayRemaining(); d > 0 {
			p.DecDelay()
			return
		}
		if _, err := p.Step(s.mem, core, time.Now()); err != nil {
			slog.Warn("process terminated", "pid", p.ID, "name", p.Name, "err", err)
		} else {
			p.SetDelay(s.cfg.DelayPerExec)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Terminal() {
		s.running[core] = nil
		p.SetCore(-1)
		delete(s.quantum, p)
		s.finished = append(s.finished, p)
		if s.mem != nil {
			s.mem.Deallocate(p.Name)
		}
		return
	}

	if s.cfg.Policy == FCFS {
		return
	}

	q := s.quantum[p]
	q--
	s.quantum[p] = q
	if q <= 0 {
		s.running[core] = nil
		p.SetCore(-1)
		delete(s.quantum, p)
		s.ready = append(s.ready, p)
	}
}

// spawnOne synthesizes and enqueues one freshly generated process, per the
// batch spawner behavior in spec.md §4.4.
func (s *Scheduler) spawnOne() {
	prog := s.gen(s.cfg.MinIns, s.cfg.MaxIns)
	name := generatedName(int(atomic.AddUint64(&s.spawnSeq, 1)))
	pid, err := s.mem.Allocate(name, s.cfg.MemPerProc)
	if err != nil {
		slog.Warn("batch spawner allocation failed", "name", name, "err", err)
		return
	}
	base, _ := s.mem.BaseAddr(name)
	p := process.New(pid, name, prog, uint32(base), uint32(s.cfg.MemPerProc))
	s.Enqueue(p)
}

func generatedName(pid int) string {
	return "p" + strconv.Itoa(pid)
}
