/*
 * coresim - Main process.
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

// Command coresim is the entry point for the console: it wires up
// logging and the getopt flags, then hands control to the liner REPL.
//
// Grounded directly on the teacher's top-level main.go for the
// getopt.StringLong/BoolLong flag style and the slog handler wiring; the
// teacher's telnet/master-channel/signal-driven IPL loop has no analogue
// here (there is no network listener), so it is replaced by a direct call
// into command/reader.ConsoleReader, which the teacher repo defines but
// never actually wires into its own main.
package main

import (
	"io"
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/csopesy/core/command/parser"
	"github.com/csopesy/core/command/reader"
	"github.com/csopesy/core/util/logger"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "config.txt", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optReport := getopt.StringLong("report", 'r', "report-util.txt", "report-util output path")
	optBacking := getopt.StringLong("backing", 'b', "backing-store.log", "Backing-store log path")
	optDebug := getopt.BoolLong("debug", 'd', "Enable debug logging")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var logWriter io.Writer
	if *optLogFile != "" {
		file, err := os.Create(*optLogFile)
		if err != nil {
			slog.Error("cannot open log file", "path", *optLogFile, "err", err)
			os.Exit(1)
		}
		logWriter = file
	}

	level := new(slog.LevelVar)
	if *optDebug {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	log := slog.New(logger.NewHandler(logWriter, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx := parser.New()
	ctx.ReportPath = *optReport
	ctx.BackingLogPath = *optBacking

	if *optConfig != "" {
		if _, err := os.Stat(*optConfig); err == nil {
			if err := ctx.Initialize(*optConfig); err != nil {
				slog.Error("initialization failed", "err", err)
				os.Exit(1)
			}
		}
	}

	reader.ConsoleReader(ctx)

	if ctx.Initialized() {
		ctx.Sched.Stop()
	}
	if err := ctx.Close(); err != nil {
		slog.Warn("cleanup failed", "err", err)
	}
	os.Exit(0)
}
