/*
 * coresim - Core scheduler test set.
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

package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/csopesy/core/vm/gen"
	"github.com/csopesy/core/vm/instr"
	"github.com/csopesy/core/vm/memory"
	"github.com/csopesy/core/vm/process"
)

func prog(t *testing.T, src string) []instr.Instruction {
	t.Helper()
	p, err := instr.ParseProgram(src)
	if err != nil {
		t.Fatalf("ParseProgram(%q): %v", src, err)
	}
	return p
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestRunningSlotsNeverExceedCoreCount(t *testing.T) {
	cfg := Config{NumCPU: 2, Policy: FCFS}
	s := New(cfg, nil, nil)
	s.Enqueue(process.New(1, "p1", prog(t, `DECLARE(x,1);ADD(x,x,1)`), 0, 64))
	s.Enqueue(process.New(2, "p2", prog(t, `DECLARE(x,1);ADD(x,x,1)`), 0, 64))
	s.Start()
	defer s.Stop()

	waitUntil(t, 2*time.Second, func() bool {
		snap := s.Snapshot()
		return len(snap.Finished) == 2
	})

	snap := s.Snapshot()
	if snap.CoresUsed > snap.CoresTotal {
		t.Errorf("CoresUsed %d exceeds CoresTotal %d", snap.CoresUsed, snap.CoresTotal)
	}
}

func TestStopJoinsAllWorkersAndReleasesCores(t *testing.T) {
	cfg := Config{NumCPU: 3, Policy: FCFS}
	s := New(cfg, nil, nil)
	s.Enqueue(process.New(1, "p1", prog(t, `FOR([ADD(x,x,1)], 100)`), 0, 64))
	s.Start()

	// Let it get picked up by a worker before stopping.
	waitUntil(t, time.Second, func() bool {
		return s.Snapshot().CoresUsed > 0
	})

	s.Stop()

	for i, p := range s.running {
		if p != nil {
			t.Errorf("running slot %d not cleared after Stop", i)
		}
	}
}

func TestRoundRobinCompletesSameAsFCFS(t *testing.T) {
	cfg := Config{NumCPU: 1, Policy: RoundRobin, QuantumCycles: 2}
	s := New(cfg, nil, nil)
	p := process.New(1, "p1", prog(t, `DECLARE(x,0);ADD(x,x,1);ADD(x,x,1);ADD(x,x,1);ADD(x,x,1)`), 0, 64)
	s.Enqueue(p)
	s.Start()
	defer s.Stop()

	waitUntil(t, 2*time.Second, func() bool {
		return p.Terminal()
	})

	if got := p.Variables()["x"]; got != 4 {
		t.Errorf("x = %d, want 4 after full program despite quantum preemption", got)
	}
}

func TestBatchSpawnerEnqueuesProcesses(t *testing.T) {
	mem := memory.NewManager(65536, 64, nil)
	cfg := Config{NumCPU: 1, Policy: FCFS, BatchProcessFreq: 1, MinIns: 1, MaxIns: 3, MemPerProc: 64}
	generator := gen.New(rand.New(rand.NewSource(7)))
	s := New(cfg, mem, func(min, max int) []instr.Instruction { return generator(min, max) })
	s.Start()
	s.StartBatch()
	defer s.Stop()

	waitUntil(t, 2*time.Second, func() bool {
		snap := s.Snapshot()
		return len(snap.Finished) > 0 || len(snap.Running) > 0 || len(snap.Ready) > 0
	})

	s.StopBatch() // must return promptly without deadlocking
}

func TestStopWhileProcessesRunningIsSafe(t *testing.T) {
	cfg := Config{NumCPU: 2, Policy: RoundRobin, QuantumCycles: 1}
	s := New(cfg, nil, nil)
	s.Enqueue(process.New(1, "p1", prog(t, `FOR([ADD(x,x,1)], 1000)`), 0, 64))
	s.Enqueue(process.New(2, "p2", prog(t, `FOR([ADD(x,x,1)], 1000)`), 0, 64))
	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop() // must return without deadlocking even mid-execution
}
