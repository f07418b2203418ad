/*
 * coresim - Command reader.
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

// Package reader drives the interactive console loop with peterh/liner,
// directly grounded on the teacher's command/reader/reader.go: the same
// Prompt/AppendHistory/ErrPromptAborted shape, re-pointed at this
// machine's Context instead of an emulator core.
package reader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/peterh/liner"

	"github.com/csopesy/core/command/parser"
)

const banner = `
.---------------------------------------------------------------------------.
|   ____ ___  ____  _____ ____ ___ __  __                                   |
|  / ___/ _ \|  _ \| ____/ ___|_ _|  \/  |                                  |
| | |  | | | | |_) |  _| \___ \| || |\/| |                                  |
| | |__| |_| |  _ <| |___ ___) | || |  | |                                  |
|  \____\___/|_| \_\_____|____/___|_|  |_|                                  |
'---------------------------------------------------------------------------'
Type 'initialize' to load a configuration and begin.
`

// ConsoleReader runs the REPL against ctx until `exit` or the prompt is
// aborted (Ctrl-D/Ctrl-C).
func ConsoleReader(ctx *parser.Context) {
	fmt.Print(banner)

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(input string) []string {
		return parser.CompleteCmd(input, ctx)
	})

	for {
		command, err := line.Prompt("coresim> ")
		if err == nil {
			line.AppendHistory(command)
			quit, err := parser.ProcessCommand(command, ctx)
			if err != nil {
				fmt.Println("Error: " + err.Error())
			}
			if quit {
				return
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return
		}
		slog.Error("error reading line: " + err.Error())
	}
}
