/*
 * coresim - Variable store.
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

// Package variable implements the per-process named 16-bit variable
// environment and the saturating arithmetic the instruction set relies on.
//
// Grounded on original_source/variable_manager.{h,cpp}: VariableManager's
// getValue/declare/has/clamp16 map directly onto Store's Get/Set/Has/Clamp16,
// split per-process instead of the original's single global instance (see
// DESIGN.md, "per-process variable environments").
package variable

// Store is a process-private mapping from variable name to a saturating
// unsigned 16-bit value. The zero value is ready to use.
type Store struct {
	values map[string]uint16
}

// NewStore returns an initialized, empty Store.
func NewStore() *Store {
	return &Store{values: make(map[string]uint16)}
}

// Get returns the value of name, or 0 if it was never declared.
func (s *Store) Get(name string) uint16 {
	if s.values == nil {
		return 0
	}
	return s.values[name]
}

// Set stores value for name, creating the entry if necessary.
func (s *Store) Set(name string, value uint16) {
	if s.values == nil {
		s.values = make(map[string]uint16)
	}
	s.values[name] = value
}

// Has reports whether name has ever been declared.
func (s *Store) Has(name string) bool {
	if s.values == nil {
		return false
	}
	_, ok := s.values[name]
	return ok
}

// Snapshot returns a copy of the current variable map, safe for a caller to
// retain after the Store continues mutating.
func (s *Store) Snapshot() map[string]uint16 {
	out := make(map[string]uint16, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Clamp16 saturates x to [0, 65535].
func Clamp16(x int64) uint16 {
	if x < 0 {
		return 0
	}
	if x > 65535 {
		return 65535
	}
	return uint16(x)
}
