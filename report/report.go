/*
 * coresim - Memory stamp reports.
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

// Package report renders the periodic memory_stamp_<quantum>.txt files
// described in spec.md §6, wrapping vm/memory.Manager.WriteStamp with the
// naming convention and file lifecycle.
package report

import (
	"fmt"
	"os"
	"time"

	"github.com/csopesy/core/vm/memory"
)

// WriteMemoryStamp creates (or truncates) memory_stamp_<quantum>.txt in
// dir and renders mem's current state into it.
func WriteMemoryStamp(dir string, mem *memory.Manager, quantum uint64, now time.Time) (string, error) {
	path := fmt.Sprintf("%s/memory_stamp_%d.txt", dir, quantum)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	defer f.Close()

	if err := mem.WriteStamp(f, quantum, now); err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	return path, nil
}
