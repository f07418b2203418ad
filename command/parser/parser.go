/*
 * coresim - Command parser.
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

// Package parser dispatches console command lines to handlers, in the
// cmdList + minimum-match-length style of the teacher's command/parser
// package, re-keyed for this machine's fixed command set (initialize,
// screen, scheduler-start/stop, process-smi, vmstat, report-util, clear,
// exit) instead of a device attach/detach grammar.
package parser

import (
	"errors"
	"strings"
	"unicode"
)

type cmd struct {
	name     string
	min      int
	process  func(*cmdLine, *Context) (bool, error)
	complete func(*cmdLine, *Context) []string
}

type cmdLine struct {
	line string
	pos  int
}

var cmdList = []cmd{
	{name: "initialize", min: 4, process: cmdInitialize},
	{name: "screen", min: 2, process: cmdScreen, complete: completeScreen},
	{name: "scheduler-start", min: 11, process: cmdSchedulerStart},
	{name: "scheduler-stop", min: 11, process: cmdSchedulerStop},
	{name: "process-smi", min: 8, process: cmdProcessSMI},
	{name: "vmstat", min: 2, process: cmdVMStat},
	{name: "report-util", min: 7, process: cmdReportUtil},
	{name: "clear", min: 5, process: cmdClear},
	{name: "exit", min: 4, process: cmdExit},
}

// ProcessCommand executes commandLine against ctx and reports whether the
// REPL should terminate.
func ProcessCommand(commandLine string, ctx *Context) (bool, error) {
	line := cmdLine{line: commandLine}
	name := line.getWord()
	if name == "" {
		return false, nil
	}

	match := matchList(name)
	if len(match) == 0 {
		return false, errors.New("command not found: " + name)
	}
	if len(match) > 1 {
		return false, errors.New("ambiguous command: " + name)
	}

	if match[0].name != "initialize" && match[0].name != "exit" && !ctx.Initialized() {
		return false, errors.New("system not initialized: run initialize first")
	}

	return match[0].process(&line, ctx)
}

// CompleteCmd implements liner's completer callback.
func CompleteCmd(commandLine string, ctx *Context) []string {
	line := cmdLine{line: commandLine}
	name := line.getWord()

	if !line.isEOL() {
		match := matchList(name)
		if len(match) != 1 || match[0].complete == nil {
			return nil
		}
		return match[0].complete(&line, ctx)
	}

	match := matchList(name)
	out := make([]string, len(match))
	for i, m := range match {
		out[i] = m.name
	}
	return out
}

func matchCommand(m cmd, name string) bool {
	if len(name) > len(m.name) {
		return false
	}
	for i := 0; i < len(name); i++ {
		if m.name[i] != name[i] {
			return false
		}
	}
	return len(name) >= m.min
}

func matchList(name string) []cmd {
	if name == "" {
		return nil
	}
	var out []cmd
	for _, m := range cmdList {
		if matchCommand(m, name) {
			out = append(out, m)
		}
	}
	return out
}

func (l *cmdLine) skipSpace() {
	for l.pos < len(l.line) && unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
}

func (l *cmdLine) isEOL() bool {
	return l.pos >= len(l.line)
}

// getWord returns the next whitespace-delimited token, advancing pos.
func (l *cmdLine) getWord() string {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.line) && !unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
	return l.line[start:l.pos]
}

// rest returns everything remaining on the line, unsplit.
func (l *cmdLine) rest() string {
	l.skipSpace()
	return l.line[l.pos:]
}

// quotedArg strips the surrounding double quotes from s, which (after
// trimming whitespace) must begin and end with one; a simplified take on the
// teacher's parseQuoteString, since this machine's only quoted argument is a
// whole instruction list passed to `screen -c`.
func quotedArg(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, `"`) || !strings.HasSuffix(s, `"`) || len(s) < 2 {
		return "", false
	}
	return s[1 : len(s)-1], true
}
