/*
 * coresim - Random program generator.
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

// Package gen produces randomized instruction lists for the batch spawner.
//
// Grounded on original_source/console.cpp's generateRandomInstructions and
// generateNestedFor: same instruction mix (DECLARE/ADD/SUBTRACT/SLEEP/
// PRINT/FOR), the same SUBTRACT underflow-avoiding swap, and the same
// depth<3-with-coin-flip nested-FOR rule. Builds instr.Instruction values
// directly rather than the original's string-then-reparse approach, since
// this package sits on the same side of the parser as vm/instr.
package gen

import (
	"fmt"
	"math/rand"

	"github.com/csopesy/core/vm/instr"
)

const varCharset = "abcdefghijklmnopqrstuvwxyz"

// New returns a ProgramGenerator (see vm/scheduler) backed by r. Passing a
// fixed-seed *rand.Rand makes the generator's output reproducible in
// tests.
func New(r *rand.Rand) func(min, max int) []instr.Instruction {
	g := &generator{r: r}
	return g.Generate
}

type generator struct {
	r *rand.Rand
}

func (g *generator) randInt(min, max int) int {
	if max <= min {
		return min
	}
	return min + g.r.Intn(max-min+1)
}

func (g *generator) varName() string {
	n := g.randInt(1, 3)
	b := make([]byte, n)
	for i := range b {
		b[i] = varCharset[g.r.Intn(len(varCharset))]
	}
	return "var_" + string(b)
}

// Generate builds a flat instruction list of between min and max top-level
// instructions (a FOR counts as one top-level instruction but may expand
// to many leaves), mirroring the original's 1..6 instruction-type mix.
func (g *generator) Generate(min, max int) []instr.Instruction {
	count := g.randInt(min, max)
	if count <= 0 {
		count = 1
	}
	var out []instr.Instruction
	var declared []string

	for i := 0; i < count; i++ {
		switch g.randInt(1, 6) {
		case 1: // DECLARE
			v := g.varName()
			out = append(out, instr.Instruction{Op: instr.OpDeclare, Dst: v, A: fmt.Sprintf("%d", g.randInt(0, 65535))})
			declared = append(declared, v)

		case 2: // ADD
			v := g.varName()
			out = append(out, instr.Instruction{
				Op: instr.OpAdd, Dst: v,
				A: fmt.Sprintf("%d", g.randInt(0, 65535)),
				B: fmt.Sprintf("%d", g.randInt(0, 65535)),
			})
			declared = append(declared, v)

		case 3: // SUBTRACT
			v := g.varName()
			a, b := g.randInt(0, 65535), g.randInt(0, 65535)
			if b > a {
				a, b = b, a // avoid underflow, per the original generator
			}
			out = append(out, instr.Instruction{
				Op: instr.OpSubtract, Dst: v,
				A: fmt.Sprintf("%d", a),
				B: fmt.Sprintf("%d", b),
			})

		case 4: // SLEEP
			out = append(out, instr.Instruction{Op: instr.OpSleep, Ticks: g.randInt(1, 10)})

		case 5: // PRINT
			if len(declared) > 0 && g.r.Intn(2) == 1 {
				v := declared[g.r.Intn(len(declared))]
				out = append(out, instr.Instruction{Op: instr.OpPrint, Literal: "Value is: ", Var: v, HasVar: true})
			} else {
				out = append(out, instr.Instruction{Op: instr.OpPrint, Literal: "Hello world!"})
			}

		case 6: // FOR
			out = append(out, g.nestedFor(0))
		}
	}
	return out
}

// nestedFor mirrors generateNestedFor: a FOR repeated 2-4 times over a body
// of 2-4 non-FOR instructions, optionally followed by one more level of
// nesting while depth+1 < instr.MaxForDepth (depth counts from 0).
func (g *generator) nestedFor(depth int) instr.Instruction {
	repeat := g.randInt(2, 4)
	bodyLen := g.randInt(2, 4)
	var body []instr.Instruction

	for i := 0; i < bodyLen; i++ {
		switch g.randInt(1, 5) { // avoid recursive FOR among these picks
		case 1:
			body = append(body, instr.Instruction{Op: instr.OpDeclare, Dst: g.varName(), A: fmt.Sprintf("%d", g.randInt(0, 65535))})
		case 2:
			body = append(body, instr.Instruction{
				Op: instr.OpAdd, Dst: g.varName(),
				A: fmt.Sprintf("%d", g.randInt(0, 65535)),
				B: fmt.Sprintf("%d", g.randInt(0, 65535)),
			})
		case 3:
			a, b := g.randInt(0, 65535), g.randInt(0, 65535)
			if b > a {
				a, b = b, a
			}
			body = append(body, instr.Instruction{
				Op: instr.OpSubtract, Dst: g.varName(),
				A: fmt.Sprintf("%d", a),
				B: fmt.Sprintf("%d", b),
			})
		case 4:
			body = append(body, instr.Instruction{Op: instr.OpSleep, Ticks: g.randInt(1, 10)})
		case 5:
			body = append(body, instr.Instruction{Op: instr.OpPrint, Literal: "Hello world!"})
		}
	}

	if depth < instr.MaxForDepth-1 && g.r.Intn(2) == 1 {
		body = append(body, g.nestedFor(depth+1))
	}

	return instr.Instruction{Op: instr.OpFor, Body: body, Repeat: repeat}
}
