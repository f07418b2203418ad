/*
 * coresim - Configuration file parser.
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

// Package configparser loads the machine configuration file: core count,
// scheduler policy, quantum/batch/delay tick counts, and the memory pool
// geometry described in spec.md §6.
//
// Grounded on the teacher's config/configparser/configparser.go for the
// line-scanning idiom (bufio.Reader ReadString('\n'), '#' comments, one
// option per line) cut down from its
// device-model grammar to a flat "key value" format, since this machine
// has no device list to register.
package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Policy mirrors vm/scheduler.Policy without importing it, keeping this
// package free of a dependency on the scheduler.
type Policy int

const (
	FCFS Policy = iota
	RoundRobin
)

// Config is the fully validated machine configuration.
type Config struct {
	NumCPU           int
	Scheduler        Policy
	QuantumCycles    int
	BatchProcessFreq int
	MinIns, MaxIns   int
	DelayPerExec     int
	MaxOverallMem    int
	MemPerFrame      int
	MemPerProc       int
}

// ErrConfigInvalid wraps every validation failure Load reports, whether the
// cause is a missing key, an out-of-range value, or a key the format doesn't
// recognize (spec.md §6: "Unknown keys, invalid values, or values out of
// range fail the load and leave the system uninitialized").
var ErrConfigInvalid = errors.New("invalid configuration")

// knownKeys enumerates every key validate understands. Anything else in the
// file is rejected outright rather than silently ignored.
var knownKeys = map[string]bool{
	"num-cpu":            true,
	"scheduler":          true,
	"quantum-cycles":     true,
	"batch-process-freq": true,
	"min-ins":            true,
	"max-ins":            true,
	"delay-per-exec":     true,
	"max-overall-mem":    true,
	"mem-per-frame":      true,
	"mem-per-proc":       true,
}

var lineNumber int

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	raw := map[string]string{}
	lineNumber = 0
	reader := bufio.NewReader(file)
	for {
		text, err := reader.ReadString('\n')
		lineNumber++
		if len(text) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Config{}, err
		}
		if k, v, ok := parseLine(text); ok {
			raw[k] = v
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Config{}, err
		}
	}
	return validate(raw)
}

// parseLine extracts a "key value" pair from one line, stripping '#'
// comments and surrounding whitespace. Blank or comment-only lines report
// ok=false.
func parseLine(text string) (key, value string, ok bool) {
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return "", "", false
	}
	key = strings.ToLower(fields[0])
	value = strings.Trim(strings.Join(fields[1:], " "), `"`)
	return key, value, true
}

func validate(raw map[string]string) (Config, error) {
	var unknown []string
	for key := range raw {
		if !knownKeys[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Config{}, fmt.Errorf("configparser: %w: unrecognized key(s) %s", ErrConfigInvalid, strings.Join(unknown, ", "))
	}

	var cfg Config
	var err error

	if cfg.NumCPU, err = intInRange(raw, "num-cpu", 1, 128); err != nil {
		return Config{}, err
	}

	switch strings.ToLower(raw["scheduler"]) {
	case "fcfs":
		cfg.Scheduler = FCFS
	case "rr":
		cfg.Scheduler = RoundRobin
	default:
		return Config{}, fmt.Errorf("configparser: %w: scheduler must be fcfs or rr, got %q", ErrConfigInvalid, raw["scheduler"])
	}

	if cfg.QuantumCycles, err = intInRange(raw, "quantum-cycles", 1, 1<<32); err != nil {
		return Config{}, err
	}
	if cfg.BatchProcessFreq, err = intInRange(raw, "batch-process-freq", 1, 1<<32); err != nil {
		return Config{}, err
	}
	if cfg.MinIns, err = intInRange(raw, "min-ins", 1, 1<<32); err != nil {
		return Config{}, err
	}
	if cfg.MaxIns, err = intInRange(raw, "max-ins", 1, 1<<32); err != nil {
		return Config{}, err
	}
	if cfg.MaxIns < cfg.MinIns {
		return Config{}, fmt.Errorf("configparser: %w: max-ins (%d) must be >= min-ins (%d)", ErrConfigInvalid, cfg.MaxIns, cfg.MinIns)
	}
	if cfg.DelayPerExec, err = intInRange(raw, "delay-per-exec", 0, 1<<32); err != nil {
		return Config{}, err
	}

	if cfg.MaxOverallMem, err = powerOfTwo(raw, "max-overall-mem"); err != nil {
		return Config{}, err
	}
	if cfg.MemPerFrame, err = powerOfTwo(raw, "mem-per-frame"); err != nil {
		return Config{}, err
	}
	if cfg.MaxOverallMem%cfg.MemPerFrame != 0 {
		return Config{}, fmt.Errorf("configparser: %w: mem-per-frame (%d) must divide max-overall-mem (%d)", ErrConfigInvalid, cfg.MemPerFrame, cfg.MaxOverallMem)
	}
	if cfg.MemPerProc, err = powerOfTwo(raw, "mem-per-proc"); err != nil {
		return Config{}, err
	}
	if cfg.MemPerProc < 64 || cfg.MemPerProc > 65536 {
		return Config{}, fmt.Errorf("configparser: %w: mem-per-proc (%d) must be in [64, 65536]", ErrConfigInvalid, cfg.MemPerProc)
	}

	return cfg, nil
}

func intInRange(raw map[string]string, key string, min, max int) (int, error) {
	v, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("configparser: %w: missing required key %q", ErrConfigInvalid, key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("configparser: %w: %s: %v", ErrConfigInvalid, key, err)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("configparser: %w: %s=%d out of range [%d,%d]", ErrConfigInvalid, key, n, min, max)
	}
	return n, nil
}

func powerOfTwo(raw map[string]string, key string) (int, error) {
	n, err := intInRange(raw, key, 1, 1<<32)
	if err != nil {
		return 0, err
	}
	if bits.OnesCount(uint(n)) != 1 {
		return 0, fmt.Errorf("configparser: %w: %s=%d must be a power of two", ErrConfigInvalid, key, n)
	}
	return n, nil
}
