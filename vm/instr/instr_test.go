/*
 * coresim - Instruction language parser test set.
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

package instr

import (
	"errors"
	"testing"
)

func TestParseProgramBasic(t *testing.T) {
	prog, err := ParseProgram(`DECLARE(x, 5);ADD(x, x, 10);SUBTRACT(x, x, 3);PRINT("v=" + x)`)
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	if len(prog) != 4 {
		t.Fatalf("len(prog) = %d, want 4", len(prog))
	}
	if prog[0].Op != OpDeclare || prog[0].Dst != "x" || prog[0].A != "5" {
		t.Errorf("prog[0] = %+v", prog[0])
	}
	if prog[3].Op != OpPrint || prog[3].Literal != "v=" || !prog[3].HasVar || prog[3].Var != "x" {
		t.Errorf("prog[3] = %+v", prog[3])
	}
}

func TestParsePrintWithoutVar(t *testing.T) {
	prog, err := ParseProgram(`PRINT("hi")`)
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	if prog[0].HasVar {
		t.Errorf("expected no var, got %+v", prog[0])
	}
	if prog[0].Literal != "hi" {
		t.Errorf("Literal = %q, want hi", prog[0].Literal)
	}
}

func TestParseNestedFor(t *testing.T) {
	prog, err := ParseProgram(`FOR([DECLARE(x,0) @@ ADD(x,x,1)], 3)`)
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	if len(prog) != 1 || prog[0].Op != OpFor {
		t.Fatalf("prog = %+v", prog)
	}
	if prog[0].Repeat != 3 {
		t.Errorf("Repeat = %d, want 3", prog[0].Repeat)
	}
	if len(prog[0].Body) != 2 {
		t.Fatalf("Body = %+v", prog[0].Body)
	}
	if got := CountLeaves(prog); got != 6 {
		t.Errorf("CountLeaves = %d, want 6", got)
	}
}

func TestParseDeeplyNestedFor(t *testing.T) {
	src := `FOR([FOR([DECLARE(x,1)], 2) @@ PRINT("hi")], 2)`
	prog, err := ParseProgram(src)
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	// outer repeat 2 * (inner repeat 2 * 1 leaf + 1 leaf PRINT) = 2*(2+1) = 6
	if got := CountLeaves(prog); got != 6 {
		t.Errorf("CountLeaves = %d, want 6", got)
	}
}

func TestParseForExceedsDepth(t *testing.T) {
	src := `FOR([FOR([FOR([FOR([PRINT("x")], 1)], 1)], 1)], 1)`
	if _, err := ParseProgram(src); err == nil {
		t.Errorf("expected error for 4-level nesting, got nil")
	}
}

func TestParseReadWrite(t *testing.T) {
	prog, err := ParseProgram(`READ x 0x200;WRITE 0x10 x`)
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	if prog[0].Op != OpRead || prog[0].Var != "x" || prog[0].Addr != 0x200 {
		t.Errorf("prog[0] = %+v", prog[0])
	}
	if prog[1].Op != OpWrite || prog[1].Addr != 0x10 || prog[1].Value != "x" {
		t.Errorf("prog[1] = %+v", prog[1])
	}
}

func TestParseMalformedRejected(t *testing.T) {
	cases := []string{
		`DECLARE(x)`,
		`ADD(x, 1)`,
		`PRINT(hi)`,
		`FOOBAR(1,2)`,
		`FOR([PRINT("x")], abc)`,
		``,
	}
	for _, c := range cases {
		_, err := ParseProgram(c)
		if err == nil {
			t.Errorf("ParseProgram(%q) expected error, got nil", c)
			continue
		}
		if !errors.Is(err, ErrParseError) {
			t.Errorf("ParseProgram(%q) err = %v, want wrapping ErrParseError", c, err)
		}
	}
}

func TestCountLeavesFlat(t *testing.T) {
	prog, err := ParseProgram(`DECLARE(x,1);ADD(x,x,1);SUBTRACT(x,x,1)`)
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	if got := CountLeaves(prog); got != 3 {
		t.Errorf("CountLeaves = %d, want 3", got)
	}
}
