/*
 * coresim - Memory stamp report test set.
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

package report

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/csopesy/core/vm/memory"
)

func TestWriteMemoryStampCreatesNamedFile(t *testing.T) {
	dir := t.TempDir()
	mem := memory.NewManager(1024, 64, nil)
	if _, err := mem.Allocate("p", 128); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	path, err := WriteMemoryStamp(dir, mem, 7, time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC))
	if err != nil {
		t.Fatalf("WriteMemoryStamp: %v", err)
	}
	if !strings.HasSuffix(path, "memory_stamp_7.txt") {
		t.Errorf("path = %q, want suffix memory_stamp_7.txt", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "P1") {
		t.Errorf("stamp missing P1: %s", data)
	}
}
