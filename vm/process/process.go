/*
 * coresim - Process interpreter.
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

// Package process implements the process record: instruction cursor, loop-
// frame stack, sleep state, bounded log ring, and the per-tick Step that the
// scheduler drives.
//
// Grounded on original_source/process.{h,cpp} for the state machine
// (currentLine/totalLines, sleepTicksRemaining, the FOR-loop bookkeeping)
// and on the teacher repo's emu/core/core.go for the Go idiom of guarding
// mutable interior state with a private sync.Mutex rather than the C++
// reference's single shared processMutex (spec.md §9, "Shared mutex
// discipline").
package process

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/csopesy/core/vm/instr"
	"github.com/csopesy/core/vm/memory"
	"github.com/csopesy/core/vm/variable"
)

// ErrAccessViolation is returned (and recorded on the process) when a
// memory-touching instruction addresses outside the process's bounds.
var ErrAccessViolation = errors.New("access violation")

// MaxLogEntries bounds the in-memory log ring, per spec.md §3.
const MaxLogEntries = 10

// frame is one level of the loop-frame stack: the instruction slice being
// walked, the next index into it, and the iterations still owed once that
// slice is exhausted (only meaningful for frames entered via FOR).
type frame struct {
	body       []instr.Instruction
	idx        int
	remaining  int // iterations left, including the one in progress; -1 for the top-level (non-loop) frame
}

// Process is one schedulable unit of execution. Exported fields that are
// safe to read without the lock are documented as such; everything else
// must go through the accessor methods.
type Process struct {
	mu sync.Mutex

	ID       int
	Name     string
	Created  time.Time

	top         []instr.Instruction
	totalLines  int
	currentLine int
	stack       []frame

	env *variable.Store

	sleepRemaining int
	delayRemaining int

	core int // -1 when not assigned to a core

	terminal      bool
	terminalError error

	logs []string

	baseAddr   uint32
	limitBytes uint32
}

// New constructs a Process ready to run prog, with memory window
// [baseAddr, baseAddr+limitBytes).
func New(id int, name string, prog []instr.Instruction, baseAddr, limitBytes uint32) *Process {
	return &Process{
		ID:         id,
		Name:       name,
		Created:    time.Now(),
		top:        prog,
		totalLines: instr.CountLeaves(prog),
		stack:      []frame{{body: prog, idx: 0, remaining: -1}},
		env:        variable.NewStore(),
		core:       -1,
		baseAddr:   baseAddr,
		limitBytes: limitBytes,
	}
}

// TotalLines returns the expanded leaf-instruction count computed at
// creation time (see SPEC_FULL.md §3).
func (p *Process) TotalLines() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalLines
}

// CurrentLine returns the number of leaf instructions executed so far.
func (p *Process) CurrentLine() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLine
}

// Terminal reports whether the process has finished (by exhaustion or
// fatal error).
func (p *Process) Terminal() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminal
}

// TerminalError returns the fatal error that ended the process, if any.
func (p *Process) TerminalError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminalError
}

// IsSleeping reports whether the process is currently blocked in SLEEP.
func (p *Process) IsSleeping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sleepRemaining > 0
}

// TickSleep decrements the sleep countdown by one tick and reports whether
// the countdown reached zero this call (the process is now awake).
func (p *Process) TickSleep() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sleepRemaining <= 0 {
		return true
	}
	p.sleepRemaining--
	return p.sleepRemaining == 0
}

// DelayRemaining returns the number of inter-instruction idle ticks left.
func (p *Process) DelayRemaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delayRemaining
}

// DecDelay consumes one idle tick of instruction-inter-tick delay.
func (p *Process) DecDelay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.delayRemaining > 0 {
		p.delayRemaining--
	}
}

// SetDelay arms the inter-instruction idle countdown: the next n ticks the
// scheduler offers this process are spent idling rather than executing,
// per spec.md §4.4.
func (p *Process) SetDelay(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delayRemaining = n
}

// SetCore records the core id the scheduler has assigned this process to,
// or -1 to release it.
func (p *Process) SetCore(core int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.core = core
}

// Core returns the currently assigned core id, or -1.
func (p *Process) Core() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.core
}

// LoopDepth returns the current loop-frame stack depth (0 when no FOR is
// iterating), per the invariant in spec.md §3.
func (p *Process) LoopDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stack) - 1
}

// Logs returns a copy of the bounded recent-log ring.
func (p *Process) Logs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.logs))
	copy(out, p.logs)
	return out
}

// Variables returns a snapshot of the variable environment.
func (p *Process) Variables() map[string]uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.env.Snapshot()
}

func (p *Process) appendLog(line string) {
	p.logs = append(p.logs, line)
	if len(p.logs) > MaxLogEntries {
		p.logs = p.logs[len(p.logs)-MaxLogEntries:]
	}
}

// eval resolves expr as a decimal literal, falling back to a variable
// lookup (undeclared reads as 0), per spec.md §4.1.
func eval(env *variable.Store, expr string) uint16 {
	var n int64
	if _, err := fmt.Sscanf(expr, "%d", &n); err == nil {
		return variable.Clamp16(n)
	}
	return env.Get(expr)
}

// Step advances the process by exactly one scheduler tick's worth of work:
// it moves through whatever loop-frame pushes and pops lead to the next leaf
// instruction and executes that leaf. The process goes terminal as soon as
// its last leaf has run.
// Memory-touching instructions are resolved against mem *before* the
// process's own lock is taken, per the scheduler → memory → process
// acquisition order in spec.md §5. coreID and now are used to format the
// per-tick log line (spec.md §6); the formatted line (if any) is returned.
func (p *Process) Step(mem *memory.Manager, coreID int, now time.Time) (string, error) {
	p.mu.Lock()
	if p.terminal {
		p.mu.Unlock()
		return "", nil
	}
	ins, ok := p.nextLeaf()
	if !ok {
		p.terminal = true
		p.mu.Unlock()
		return "", nil
	}
	name := p.Name
	env := p.env
	base := p.baseAddr
	limit := p.limitBytes
	p.mu.Unlock()

	// Resolve any memory access before touching process state.
	var memErr error
	var loadedValue uint16
	switch ins.Op {
	case instr.OpRead:
		if ins.Addr < base || ins.Addr >= base+limit {
			memErr = fmt.Errorf("%w: read 0x%X outside [0x%X,0x%X)", ErrAccessViolation, ins.Addr, base, base+limit)
		} else {
			page := int(ins.Addr-base) / mem.PageSize()
			if !mem.IsValidAccess(name, page) {
				memErr = fmt.Errorf("%w: read 0x%X outside [0x%X,0x%X)", ErrAccessViolation, ins.Addr, base, base+limit)
			} else {
				loadedValue, memErr = mem.ReadPage(name, page)
			}
		}
	case instr.OpWrite:
		if ins.Addr < base || ins.Addr >= base+limit {
			memErr = fmt.Errorf("%w: write 0x%X outside [0x%X,0x%X)", ErrAccessViolation, ins.Addr, base, base+limit)
		} else {
			page := int(ins.Addr-base) / mem.PageSize()
			if !mem.IsValidAccess(name, page) {
				memErr = fmt.Errorf("%w: write 0x%X outside [0x%X,0x%X)", ErrAccessViolation, ins.Addr, base, base+limit)
			} else {
				memErr = mem.WritePage(name, page, eval(env, ins.Value))
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if memErr != nil {
		p.terminal = true
		p.terminalError = memErr
		line := formatLogLine(now, coreID, fmt.Sprintf("ACCESS VIOLATION %s", memErr.Error()), name)
		p.appendLog(line)
		return line, memErr
	}

	payload, declared := p.execute(ins, loadedValue)
	p.currentLine++
	if p.currentLine >= p.totalLines {
		p.terminal = true
	}

	if payload == "" {
		return "", nil
	}
	line := formatLogLine(now, coreID, payload, name)
	p.appendLog(line)
	_ = declared
	return line, nil
}

// nextLeaf advances the loop-frame stack until it is positioned on a leaf
// instruction to execute, pushing/popping loop frames as needed, or
// reports false once the top-level program is exhausted. Caller must hold
// p.mu.
func (p *Process) nextLeaf() (instr.Instruction, bool) {
	for {
		if len(p.stack) == 0 {
			return instr.Instruction{}, false
		}
		top := &p.stack[len(p.stack)-1]
		if top.idx >= len(top.body) {
			if top.remaining < 0 {
				// top-level frame exhausted
				if len(p.stack) == 1 {
					return instr.Instruction{}, false
				}
				p.stack = p.stack[:len(p.stack)-1]
				continue
			}
			top.remaining--
			if top.remaining <= 0 {
				p.stack = p.stack[:len(p.stack)-1]
				continue
			}
			top.idx = 0
			continue
		}
		ins := top.body[top.idx]
		if ins.Op == instr.OpFor {
			top.idx++
			if ins.Repeat > 0 {
				p.stack = append(p.stack, frame{body: ins.Body, idx: 0, remaining: ins.Repeat})
			}
			continue
		}
		top.idx++
		return ins, true
	}
}

// execute applies the effect of a non-memory leaf instruction (memory
// instructions have already been resolved by Step) and returns the log
// payload text (empty if the instruction produces no log line) and the
// destination variable name, if any, for tests.
func (p *Process) execute(ins instr.Instruction, loadedValue uint16) (payload string, dst string) {
	switch ins.Op {
	case instr.OpDeclare:
		v := eval(p.env, ins.A)
		p.env.Set(ins.Dst, v)
		return fmt.Sprintf("DECLARE(%s, %s)", ins.Dst, ins.A), ins.Dst

	case instr.OpAdd:
		a, b := eval(p.env, ins.A), eval(p.env, ins.B)
		p.env.Set(ins.Dst, variable.Clamp16(int64(a)+int64(b)))
		return fmt.Sprintf("ADD(%s, %s, %s)", ins.Dst, ins.A, ins.B), ins.Dst

	case instr.OpSubtract:
		a, b := eval(p.env, ins.A), eval(p.env, ins.B)
		diff := int64(a) - int64(b)
		if diff < 0 {
			diff = 0
		}
		p.env.Set(ins.Dst, variable.Clamp16(diff))
		return fmt.Sprintf("SUBTRACT(%s, %s, %s)", ins.Dst, ins.A, ins.B), ins.Dst

	case instr.OpSleep:
		ticks := ins.Ticks
		if ticks < 0 {
			ticks = 0
		}
		if ticks > 255 {
			ticks = 255
		}
		p.sleepRemaining = ticks
		return fmt.Sprintf("SLEEP(%d)", ins.Ticks), ""

	case instr.OpPrint:
		if ins.HasVar {
			v := p.env.Get(ins.Var)
			return fmt.Sprintf("%s%d", ins.Literal, v), ""
		}
		return ins.Literal, ""

	case instr.OpRead:
		p.env.Set(ins.Var, loadedValue)
		return fmt.Sprintf("READ %s 0x%X", ins.Var, ins.Addr), ins.Var

	case instr.OpWrite:
		return fmt.Sprintf("WRITE 0x%X %s", ins.Addr, ins.Value), ""
	}
	return "", ""
}

// formatLogLine renders the per-tick log line format from spec.md §6:
// (MM/DD/YYYY HH:MM:SSxm) Core:<N> "<payload> from <process>"
func formatLogLine(now time.Time, coreID int, payload, name string) string {
	ts := now.Format("01/02/2006 03:04:05PM")
	return fmt.Sprintf("(%s) Core:%d \"%s from %s\"", ts, coreID, payload, name)
}
