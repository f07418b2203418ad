/*
 * coresim - Instruction language parser.
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

// Package instr parses the toy instruction language described in spec.md
// §4.1 into a typed instruction tree and exposes the leaf-counting helper
// the process record uses to compute totalLines.
//
// Grounded on original_source/process.cpp's splitInstructions/
// extractNestedLoops regexes (same grammar, same "@@" body separator) and
// on the teacher repo's emu/assemble and emu/disassemble packages for the
// shape of a small hand-rolled recursive-descent parser operating on a
// flat string.
package instr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Op identifies an instruction form.
type Op int

const (
	OpDeclare Op = iota
	OpAdd
	OpSubtract
	OpSleep
	OpPrint
	OpFor
	OpRead
	OpWrite
)

func (o Op) String() string {
	switch o {
	case OpDeclare:
		return "DECLARE"
	case OpAdd:
		return "ADD"
	case OpSubtract:
		return "SUBTRACT"
	case OpSleep:
		return "SLEEP"
	case OpPrint:
		return "PRINT"
	case OpFor:
		return "FOR"
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	default:
		return "?"
	}
}

// Instruction is one parsed node of the instruction tree. Only the fields
// relevant to Op are populated.
type Instruction struct {
	Op Op

	// DECLARE/ADD/SUBTRACT: Dst, A, B carry operand text (literal or
	// variable name); eval() resolves them at execution time.
	Dst, A, B string

	// SLEEP: raw signed tick count, before min/max clamping.
	Ticks int

	// PRINT: literal text and, if present, the variable to append.
	Literal string
	Var     string
	HasVar  bool

	// FOR: body to repeat and repeat count.
	Body   []Instruction
	Repeat int

	// READ/WRITE: absolute address and, for WRITE, the value expression.
	Addr  uint32
	Value string
}

// MaxForDepth bounds FOR nesting, per spec.md §4.1.
const MaxForDepth = 3

// ErrParseError is the sentinel every ParseError wraps, so callers can test
// for a malformed program with errors.Is without matching on message text.
var ErrParseError = errors.New("instruction parse error")

// ParseError reports a malformed instruction with the offending text.
type ParseError struct {
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s: %q", e.Msg, e.Text)
}

func (e *ParseError) Unwrap() error {
	return ErrParseError
}

// ParseProgram splits src on top-level ';' separators (respecting nested
// brackets, parens and quotes) and parses each segment as one instruction.
// It is the entry point for `screen -c`'s "i1;i2;..." form.
func ParseProgram(src string) ([]Instruction, error) {
	parts := splitTopLevel(src, ';')
	out := make([]Instruction, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ins, err := parseOne(p, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	if len(out) == 0 {
		return nil, &ParseError{Text: src, Msg: "empty program"}
	}
	return out, nil
}

// splitTopLevel splits s on sep, ignoring separators nested inside
// (), [], or double quotes.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
			// ignore brackets/separators inside quotes
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseOne(s string, depth int) (Instruction, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "DECLARE("):
		args, err := parseArgs(s, "DECLARE")
		if err != nil {
			return Instruction{}, err
		}
		if len(args) != 2 {
			return Instruction{}, &ParseError{s, "DECLARE wants 2 arguments"}
		}
		return Instruction{Op: OpDeclare, Dst: args[0], A: args[1]}, nil

	case strings.HasPrefix(s, "ADD("):
		args, err := parseArgs(s, "ADD")
		if err != nil {
			return Instruction{}, err
		}
		if len(args) != 3 {
			return Instruction{}, &ParseError{s, "ADD wants 3 arguments"}
		}
		return Instruction{Op: OpAdd, Dst: args[0], A: args[1], B: args[2]}, nil

	case strings.HasPrefix(s, "SUBTRACT("):
		args, err := parseArgs(s, "SUBTRACT")
		if err != nil {
			return Instruction{}, err
		}
		if len(args) != 3 {
			return Instruction{}, &ParseError{s, "SUBTRACT wants 3 arguments"}
		}
		return Instruction{Op: OpSubtract, Dst: args[0], A: args[1], B: args[2]}, nil

	case strings.HasPrefix(s, "SLEEP("):
		args, err := parseArgs(s, "SLEEP")
		if err != nil {
			return Instruction{}, err
		}
		if len(args) != 1 {
			return Instruction{}, &ParseError{s, "SLEEP wants 1 argument"}
		}
		n, err := strconv.Atoi(strings.TrimSpace(args[0]))
		if err != nil {
			return Instruction{}, &ParseError{s, "SLEEP argument must be an integer"}
		}
		return Instruction{Op: OpSleep, Ticks: n}, nil

	case strings.HasPrefix(s, "PRINT("):
		return parsePrint(s)

	case strings.HasPrefix(s, "FOR(["):
		if depth >= MaxForDepth {
			return Instruction{}, &ParseError{s, "FOR nesting exceeds limit"}
		}
		return parseFor(s, depth)

	case strings.HasPrefix(s, "READ "):
		return parseRead(s)

	case strings.HasPrefix(s, "WRITE "):
		return parseWrite(s)

	default:
		return Instruction{}, &ParseError{s, "unrecognized instruction"}
	}
}

// parseArgs extracts the comma-separated, top-level argument list between
// the outermost parens of a "NAME(...)" instruction.
func parseArgs(s, name string) ([]string, error) {
	prefix := name + "("
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, ")") {
		return nil, &ParseError{s, name + " malformed"}
	}
	inner := s[len(prefix) : len(s)-1]
	parts := splitTopLevel(inner, ',')
	args := make([]string, len(parts))
	for i, p := range parts {
		args[i] = strings.TrimSpace(p)
		if args[i] == "" {
			return nil, &ParseError{s, name + " has an empty argument"}
		}
	}
	return args, nil
}

func parsePrint(s string) (Instruction, error) {
	if !strings.HasSuffix(s, ")") {
		return Instruction{}, &ParseError{s, "PRINT malformed"}
	}
	inner := strings.TrimSpace(s[len("PRINT(") : len(s)-1])
	if !strings.HasPrefix(inner, "\"") {
		return Instruction{}, &ParseError{s, "PRINT literal must start with a quote"}
	}
	end := strings.Index(inner[1:], "\"")
	if end < 0 {
		return Instruction{}, &ParseError{s, "PRINT literal not closed"}
	}
	end++ // index relative to inner
	literal := inner[1:end]
	rest := strings.TrimSpace(inner[end+1:])
	if rest == "" {
		return Instruction{Op: OpPrint, Literal: literal}, nil
	}
	if !strings.HasPrefix(rest, "+") {
		return Instruction{}, &ParseError{s, "PRINT expects + var after literal"}
	}
	v := strings.TrimSpace(rest[1:])
	if v == "" {
		return Instruction{}, &ParseError{s, "PRINT + with no variable"}
	}
	return Instruction{Op: OpPrint, Literal: literal, Var: v, HasVar: true}, nil
}

func parseFor(s string, depth int) (Instruction, error) {
	if !strings.HasSuffix(s, ")") {
		return Instruction{}, &ParseError{s, "FOR malformed"}
	}
	// "FOR([" ... "], r)"
	closeBracket := matchingBracket(s, len("FOR(")) // index of '['
	if closeBracket < 0 {
		return Instruction{}, &ParseError{s, "FOR body brackets unbalanced"}
	}
	body := s[len("FOR([") : closeBracket-1]
	remainder := strings.TrimSpace(s[closeBracket+1 : len(s)-1]) // after "],", before ")"
	remainder = strings.TrimPrefix(remainder, ",")
	remainder = strings.TrimSpace(remainder)
	repeat, err := strconv.Atoi(remainder)
	if err != nil {
		return Instruction{}, &ParseError{s, "FOR repeat count must be an integer"}
	}
	if repeat < 0 {
		return Instruction{}, &ParseError{s, "FOR repeat count must be non-negative"}
	}

	items := splitForBody(body)
	bodyInstrs := make([]Instruction, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		child, err := parseOne(item, depth+1)
		if err != nil {
			return Instruction{}, err
		}
		bodyInstrs = append(bodyInstrs, child)
	}
	if len(bodyInstrs) == 0 {
		return Instruction{}, &ParseError{s, "FOR body is empty"}
	}
	return Instruction{Op: OpFor, Body: bodyInstrs, Repeat: repeat}, nil
}

// matchingBracket returns the index just past the ']' that closes the '['
// at s[openIdx], skipping brackets nested inside it or inside quotes.
// Returns -1 if s[openIdx] is not '[' or the brackets are unbalanced.
func matchingBracket(s string, openIdx int) int {
	if openIdx >= len(s) || s[openIdx] != '[' {
		return -1
	}
	depth := 0
	inQuote := false
	for i := openIdx; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// splitForBody splits a FOR body on the two-character "@@" token, ignoring
// occurrences nested inside a child FOR's own brackets or inside quotes.
func splitForBody(body string) []string {
	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case depth == 0 && c == '@' && i+1 < len(body) && body[i+1] == '@':
			parts = append(parts, body[start:i])
			start = i + 2
			i++
		}
	}
	parts = append(parts, body[start:])
	return parts
}

func parseRead(s string) (Instruction, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 || fields[0] != "READ" {
		return Instruction{}, &ParseError{s, "READ wants: READ var 0xADDR"}
	}
	addr, err := parseAddr(fields[2])
	if err != nil {
		return Instruction{}, &ParseError{s, err.Error()}
	}
	return Instruction{Op: OpRead, Var: fields[1], Addr: addr}, nil
}

func parseWrite(s string) (Instruction, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 || fields[0] != "WRITE" {
		return Instruction{}, &ParseError{s, "WRITE wants: WRITE 0xADDR value"}
	}
	addr, err := parseAddr(fields[1])
	if err != nil {
		return Instruction{}, &ParseError{s, err.Error()}
	}
	return Instruction{Op: OpWrite, Addr: addr, Value: fields[2]}, nil
}

func parseAddr(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0X"), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed address %q", s)
	}
	return uint32(v), nil
}

// CountLeaves returns the expanded leaf-instruction count of prog: every
// non-FOR instruction counts once, every FOR counts its body's leaf count
// times its repeat, recursively. This is totalLines (see SPEC_FULL.md §3).
func CountLeaves(prog []Instruction) int {
	total := 0
	for _, ins := range prog {
		if ins.Op == OpFor {
			total += ins.Repeat * CountLeaves(ins.Body)
		} else {
			total++
		}
	}
	return total
}
