/*
 * coresim - Console commands.
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
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/csopesy/core/vm/instr"
	"github.com/csopesy/core/vm/scheduler"
)

func cmdInitialize(line *cmdLine, ctx *Context) (bool, error) {
	path := line.getWord()
	if path == "" {
		path = "config.txt"
	}
	if err := ctx.Initialize(path); err != nil {
		return false, err
	}
	fmt.Println("Machine initialized from", path)
	return false, nil
}

func cmdScreen(line *cmdLine, ctx *Context) (bool, error) {
	flag := line.getWord()
	switch flag {
	case "-s":
		return false, screenCreate(line, ctx, false)
	case "-c":
		return false, screenCreate(line, ctx, true)
	case "-r":
		return false, screenResume(line, ctx)
	case "-ls":
		return false, screenList(ctx)
	default:
		return false, fmt.Errorf("screen: unknown flag %q (want -s, -c, -r, -ls)", flag)
	}
}

func completeScreen(line *cmdLine, _ *Context) []string {
	return []string{"-s ", "-c ", "-r ", "-ls"}
}

func screenCreate(line *cmdLine, ctx *Context, explicit bool) error {
	name := line.getWord()
	if name == "" {
		return errors.New("screen: missing process name")
	}
	sizeTok := line.getWord()
	size, err := strconv.Atoi(sizeTok)
	if err != nil {
		return fmt.Errorf("screen: invalid byte size %q", sizeTok)
	}

	var prog []instr.Instruction
	if explicit {
		raw, ok := quotedArg(line.rest())
		if !ok {
			return errors.New(`screen -c: expected "i1;i2;..." instruction list`)
		}
		prog, err = instr.ParseProgram(raw)
		if err != nil {
			return fmt.Errorf("screen -c: %w", err)
		}
		if n := instr.CountLeaves(prog); n < 1 || len(prog) > 50 {
			return fmt.Errorf("screen -c: instruction list must have 1..50 top-level items, got %d", len(prog))
		}
	} else {
		prog = []instr.Instruction{{Op: instr.OpPrint, Literal: "Hello world from " + name + "!"}}
	}

	p, err := ctx.CreateProcess(name, size, prog)
	if err != nil {
		return err
	}
	fmt.Printf("Created process %s (pid=%d, %d bytes)\n", name, p.ID, size)
	return nil
}

func screenResume(line *cmdLine, ctx *Context) error {
	name := line.getWord()
	p, ok := ctx.Lookup(name)
	if !ok {
		return fmt.Errorf("screen -r: no such process %q", name)
	}
	if p.Terminal() {
		if err := p.TerminalError(); err != nil {
			return fmt.Errorf("screen -r: %s has terminated: %w", name, err)
		}
		return fmt.Errorf("screen -r: %s has already finished", name)
	}
	fmt.Printf("-- %s (pid=%d) line %d/%d --\n", name, p.ID, p.CurrentLine(), p.TotalLines())
	for _, l := range p.Logs() {
		fmt.Println(l)
	}
	return nil
}

func screenList(ctx *Context) error {
	snap := ctx.Sched.Snapshot()
	fmt.Printf("Cores used: %d/%d\n", snap.CoresUsed, snap.CoresTotal)
	fmt.Println("Running:")
	for _, p := range snap.Running {
		fmt.Printf("  %s (pid=%d) core=%d line=%d/%d\n", p.Name, p.PID, p.Core, p.CurrentLine, p.TotalLines)
	}
	fmt.Println("Ready:")
	for _, p := range snap.Ready {
		fmt.Printf("  %s (pid=%d) line=%d/%d\n", p.Name, p.PID, p.CurrentLine, p.TotalLines)
	}
	fmt.Println("Finished:")
	for _, p := range snap.Finished {
		annotation := ""
		if proc, ok := ctx.Lookup(p.Name); ok {
			if err := proc.TerminalError(); err != nil {
				annotation = fmt.Sprintf(" [%s]", err.Error())
			}
		}
		fmt.Printf("  %s (pid=%d) line=%d/%d%s\n", p.Name, p.PID, p.CurrentLine, p.TotalLines, annotation)
	}
	return nil
}

func cmdSchedulerStart(_ *cmdLine, ctx *Context) (bool, error) {
	ctx.Sched.StartBatch()
	fmt.Println("Batch spawner enabled")
	return false, nil
}

func cmdSchedulerStop(_ *cmdLine, ctx *Context) (bool, error) {
	ctx.Sched.StopBatch()
	fmt.Println("Batch spawner disabled")
	return false, nil
}

func cmdProcessSMI(_ *cmdLine, ctx *Context) (bool, error) {
	snap := ctx.Mem.Snapshot()
	fmt.Printf("Total memory: %d bytes, frame size %d, frames %d (used %d)\n",
		snap.TotalMemory, snap.PageSize, snap.FrameCount, snap.UsedFrames)
	fmt.Printf("Fragmentation: %.2f KiB\n", snap.FragmentationKiB)
	for _, p := range snap.Processes {
		fmt.Printf("  P%d %s base=%d limit=%d pages=%d\n", p.PID, p.Name, p.BaseAddr, p.LimitBytes, p.PageCount)
	}
	return false, nil
}

func cmdVMStat(_ *cmdLine, ctx *Context) (bool, error) {
	snap := ctx.Mem.Snapshot()
	fmt.Printf("frames: %d total, %d used, %d free\n", snap.FrameCount, snap.UsedFrames, snap.FrameCount-snap.UsedFrames)
	for _, p := range snap.Processes {
		resident := 0
		for _, pg := range p.Pages {
			if pg.InMemory {
				resident++
			}
		}
		fmt.Printf("  %s: %d/%d pages resident\n", p.Name, resident, p.PageCount)
	}
	return false, nil
}

func cmdReportUtil(_ *cmdLine, ctx *Context) (bool, error) {
	path := ctx.ReportPath
	if path == "" {
		path = "report-util.txt"
	}
	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("report-util: %w", err)
	}
	defer f.Close()

	snap := ctx.Sched.Snapshot()
	fmt.Fprintf(f, "Scheduler report (%s)\n", time.Now().Format("01/02/2006 03:04:05PM"))
	fmt.Fprintf(f, "Cores used: %d/%d\n", snap.CoresUsed, snap.CoresTotal)
	fmt.Fprintf(f, "Running: %d, Ready: %d, Finished: %d\n", len(snap.Running), len(snap.Ready), len(snap.Finished))

	all := append(append(append([]scheduler.ProcessView{}, snap.Running...), snap.Ready...), snap.Finished...)
	sort.Slice(all, func(i, j int) bool { return all[i].PID < all[j].PID })
	for _, p := range all {
		fmt.Fprintf(f, "  P%d %s line=%d/%d terminal=%v\n", p.PID, p.Name, p.CurrentLine, p.TotalLines, p.Terminal)
	}

	if err := ctx.Mem.WriteStamp(f, ctx.Sched.Tick(), time.Now()); err != nil {
		return false, fmt.Errorf("report-util: %w", err)
	}
	fmt.Println("Report written to", path)
	return false, nil
}

func cmdClear(_ *cmdLine, _ *Context) (bool, error) {
	fmt.Print("\033[H\033[2J")
	return false, nil
}

func cmdExit(_ *cmdLine, ctx *Context) (bool, error) {
	if ctx.Initialized() {
		ctx.Sched.Stop()
	}
	return true, nil
}
