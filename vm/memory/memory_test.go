/*
 * coresim - Paged virtual memory manager test set.
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

package memory

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestAllocateRejectsInvalidSize(t *testing.T) {
	m := NewManager(4096, 64, nil)
	cases := []int{0, 1, 63, 100, 65537, 70000}
	for _, sz := range cases {
		if _, err := m.Allocate("p", sz); err == nil {
			t.Errorf("Allocate(%d) expected error, got nil", sz)
		}
	}
}

func TestAllocateRejectsBelowPageSize(t *testing.T) {
	m := NewManager(4096, 128, nil)
	if _, err := m.Allocate("p", 64); err == nil {
		t.Errorf("Allocate(64) with pageSize=128 expected error")
	}
}

func TestAllocateNameInUse(t *testing.T) {
	m := NewManager(4096, 64, nil)
	if _, err := m.Allocate("p", 128); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := m.Allocate("p", 128); err == nil {
		t.Errorf("expected NameInUse error on second Allocate")
	}
}

func TestAllocateOutOfMemory(t *testing.T) {
	m := NewManager(256, 64, nil)
	if _, err := m.Allocate("a", 128); err != nil {
		t.Fatalf("Allocate a: %v", err)
	}
	if _, err := m.Allocate("b", 256); err == nil {
		t.Errorf("expected OutOfMemory, got nil")
	}
}

func TestDeallocateUnknownIsNoop(t *testing.T) {
	m := NewManager(4096, 64, nil)
	m.Deallocate("nope") // must not panic
}

func TestAccessPageIdempotentWhenResident(t *testing.T) {
	m := NewManager(256, 64, nil)
	if _, err := m.Allocate("p", 128); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := m.AccessPage("p", 0); err != nil {
		t.Fatalf("AccessPage: %v", err)
	}
	snap1 := m.Snapshot()
	if err := m.AccessPage("p", 0); err != nil {
		t.Fatalf("AccessPage (2nd): %v", err)
	}
	snap2 := m.Snapshot()
	f1 := frameOf(snap1, "p", 0)
	f2 := frameOf(snap2, "p", 0)
	if f1 != f2 {
		t.Errorf("frame changed across idempotent access: %d vs %d", f1, f2)
	}
}

func frameOf(s Snapshot, name string, page int) int {
	for _, p := range s.Processes {
		if p.Name == name {
			return p.Pages[page].FrameIndex
		}
	}
	return -2
}

// TestFIFOEviction mirrors spec.md §8 scenario 3: mem-per-frame=64, a
// 256-byte (4-page) process, frameCount=3. Accessing pages 0,1,2,3,0 in
// order faults four times then evicts page 0 then page 1, FIFO.
func TestFIFOEviction(t *testing.T) {
	m := NewManager(192, 64, nil)
	if _, err := m.Allocate("p", 256); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	order := []int{0, 1, 2, 3, 0}
	for _, pg := range order {
		if err := m.AccessPage("p", pg); err != nil {
			t.Fatalf("AccessPage(%d): %v", pg, err)
		}
	}
	snap := m.Snapshot()
	proc := snap.Processes[0]
	if proc.Pages[0].InMemory == false {
		t.Errorf("page 0 should be resident again after refault")
	}
	if proc.Pages[1].InMemory {
		t.Errorf("page 1 should have been evicted (FIFO victim after page 0's second fault)")
	}
	if !proc.Pages[2].InMemory || !proc.Pages[3].InMemory {
		t.Errorf("pages 2 and 3 should still be resident")
	}
}

func TestIsValidAccess(t *testing.T) {
	m := NewManager(256, 64, nil)
	if _, err := m.Allocate("p", 128); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if !m.IsValidAccess("p", 0) || !m.IsValidAccess("p", 1) {
		t.Errorf("expected pages 0,1 valid")
	}
	if m.IsValidAccess("p", 2) {
		t.Errorf("page 2 out of range should be invalid")
	}
	if m.IsValidAccess("nope", 0) {
		t.Errorf("unknown process should be invalid")
	}
}

func TestWriteThenReadPersistsAcrossEviction(t *testing.T) {
	m := NewManager(128, 64, nil)
	if _, err := m.Allocate("p", 128); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := m.WritePage("p", 0, 42); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	// Force eviction of page 0 by faulting page 1 (only one frame fits
	// alongside it depending on pool size, but here frameCount=2, so
	// explicitly deallocate/reallocate isn't needed: access page 1 then 0
	// again through a second process forcing pressure).
	if _, err := m.Allocate("q", 64); err != nil {
		t.Fatalf("Allocate q: %v", err)
	}
	if err := m.AccessPage("q", 0); err != nil {
		t.Fatalf("AccessPage q: %v", err)
	}
	if err := m.AccessPage("p", 1); err != nil {
		t.Fatalf("AccessPage p/1: %v", err)
	}
	// Now frames are full (2 frames, both q/0 and p/1 resident); refault p/0
	// evicting the oldest (q/0).
	v, err := m.ReadPage("p", 0)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if v != 42 {
		t.Errorf("ReadPage after eviction/refault = %d, want 42 (write must persist)", v)
	}
}

func TestFragmentation(t *testing.T) {
	m := NewManager(1024, 64, nil)
	if _, err := m.Allocate("a", 64); err != nil {
		t.Fatalf("Allocate a: %v", err)
	}
	m.Deallocate("a")
	if _, err := m.Allocate("a", 64); err != nil {
		t.Fatalf("re-Allocate a: %v", err)
	}
	if _, err := m.Allocate("b", 128); err != nil {
		t.Fatalf("Allocate b: %v", err)
	}
	snap := m.Snapshot()
	// Deallocate does not lower the high-water mark, so the re-allocated a
	// lands at [64,128) and b at [128,256): leading gap 64 + tail gap
	// 1024-256 = 768, 832 bytes = 0.8125 KiB.
	want := float64(1024-192) / 1024.0
	if snap.FragmentationKiB != want {
		t.Errorf("FragmentationKiB = %f, want %f", snap.FragmentationKiB, want)
	}
}

func TestBackingStoreLog(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(128, 64, &buf)
	if _, err := m.Allocate("p", 64); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := m.AccessPage("p", 0); err != nil {
		t.Fatalf("AccessPage: %v", err)
	}
	if !strings.Contains(buf.String(), "[LOAD] p page 0 -> frame") {
		t.Errorf("backing store log missing LOAD line: %q", buf.String())
	}
}

func TestWriteStampFormat(t *testing.T) {
	m := NewManager(1024, 64, nil)
	if _, err := m.Allocate("p", 128); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	var buf bytes.Buffer
	if err := m.WriteStamp(&buf, 1, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)); err != nil {
		t.Fatalf("WriteStamp: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"----end---- = 1024", "----start---- = 0", "P1"} {
		if !strings.Contains(out, want) {
			t.Errorf("WriteStamp output missing %q:\n%s", want, out)
		}
	}
}
