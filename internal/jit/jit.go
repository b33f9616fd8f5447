//go:build amd64

// Package jit compiles and runs the pure-Number/Boolean fast path of a
// dgeval program as native x86-64 machine code, falling back to
// bytecode.Interp for every statement that touches a String, an Array, or
// a function call. See codegen_amd64.go for the translation rules and
// DESIGN.md for why the scope stops there.
package jit

import (
	"unsafe"

	"github.com/sarowish/dgeval/internal/ast"
	"github.com/sarowish/dgeval/internal/bytecode"
	"github.com/sarowish/dgeval/internal/runtime"
)

// Program drives execution of one compiled dgeval program statement by
// statement, compiling each eligible one to native code on first use and
// caching the result, and interpreting everything else. Both paths read
// and write the same bytecode.Interp slot storage, so a Number a JIT
// statement assigns is visible to a later interpreted statement (and
// back) exactly as if everything had run in the interpreter.
type Program struct {
	inst      []bytecode.Instruction
	bounds    []int
	rt        *runtime.Runtime
	cache     *Cache
	interp    *bytecode.Interp
	boolSlot  []bool
	attempted map[int]bool
	reads     map[int][]int // statement index -> slot indices it loads
	writes    map[int][]int // statement index -> slot indices it stores
}

// New builds a driver over inst (already DependencySorted, TypeChecked,
// Folded, generated, and Peephole-optimized), with bounds as returned by
// bytecode.Generate/PeepholeWithBounds marking each statement's start.
// boolSlot reports, for each slot index, whether the type checker declared
// that symbol Boolean — the native fast path stores every Number and
// Boolean as a float64 XMM value, so callNative needs this to convert a
// Boolean slot back to the bool the interpreter expects on write-back.
func New(rt *runtime.Runtime, inst []bytecode.Instruction, bounds []int, boolSlot []bool) *Program {
	return &Program{
		inst:      inst,
		bounds:    bounds,
		rt:        rt,
		cache:     NewCache(),
		interp:    bytecode.NewInterp(rt, len(boolSlot)),
		boolSlot:  boolSlot,
		attempted: make(map[int]bool),
		reads:     make(map[int][]int),
		writes:    make(map[int][]int),
	}
}

// Run executes every statement in program order, then always runs the
// trailing post_exec_cleanup LRT call that Generate appends after the
// last statement. If a statement raises the runtime's exception flag
// (an out-of-bounds array_element), Run skips every statement after it
// and jumps straight to that cleanup call — it is both the IR's mandated
// epilogue and the exception unwind target.
func (p *Program) Run() {
	cleanup := len(p.inst)
	if cleanup > 0 {
		cleanup--
	}
	for i := range p.bounds {
		end := cleanup
		if i+1 < len(p.bounds) {
			end = p.bounds[i+1]
		}
		stmt := p.inst[p.bounds[i]:end]
		if p.bounds[i] > 0 {
			// Jump/JumpFalse targets index the whole stream; both executors
			// index the statement's own slice, so rebase them onto it.
			stmt = append([]bytecode.Instruction(nil), stmt...)
			for k := range stmt {
				if stmt[k].Op == ast.OpJump || stmt[k].Op == ast.OpJumpFalse {
					stmt[k].Parameter -= p.bounds[i]
				}
			}
		}
		p.runStatement(i, stmt)
		if p.rt.CheckException() {
			break
		}
	}
	p.interp.Run(p.inst[cleanup:])
}

func (p *Program) runStatement(i int, stmt []bytecode.Instruction) {
	if cf := p.cache.Get(i); cf != nil {
		p.callNative(cf, i, stmt)
		return
	}
	if !p.attempted[i] {
		p.attempted[i] = true
		if code, ok := CompileStatement(stmt); ok {
			if cf := p.cache.Put(i, code); cf != nil {
				p.reads[i] = slotIndices(stmt, ast.OpIdentifier)
				p.writes[i] = slotIndices(stmt, ast.OpAssign)
				p.callNative(cf, i, stmt)
				return
			}
		}
	}
	p.interp.Run(stmt)
}

// callNative runs a cached compiled statement, syncing its slots in and
// out of the interpreter's shared slot storage: scratch is a throwaway
// float64 view of exactly the slots this statement touches, since
// Interp's slots are interface{} (to also hold strings and arrays for
// other statements) and can't be handed to native code directly.
func (p *Program) callNative(cf *CompiledFunc, i int, stmt []bytecode.Instruction) {
	slots := p.interp.Slots()
	scratch := make([]float64, len(slots))
	for _, idx := range p.reads[i] {
		if v, ok := slots[idx].(float64); ok {
			scratch[idx] = v
		} else if v, ok := slots[idx].(bool); ok {
			if v {
				scratch[idx] = 1
			}
		}
	}
	var base uintptr
	if len(scratch) > 0 {
		base = uintptr(unsafe.Pointer(&scratch[0]))
	}
	callCompiled(cf.Entry, base)
	for _, idx := range p.writes[i] {
		if p.boolSlot[idx] {
			slots[idx] = scratch[idx] != 0
		} else {
			slots[idx] = scratch[idx]
		}
	}
}

// slotIndices collects the distinct slot indices an OpIdentifier or
// OpAssign instruction in stmt refers to.
func slotIndices(stmt []bytecode.Instruction, op ast.Opcode) []int {
	seen := make(map[int]bool)
	var out []int
	for _, in := range stmt {
		if in.Op == op && !seen[in.Parameter] {
			seen[in.Parameter] = true
			out = append(out, in.Parameter)
		}
	}
	return out
}

// Close releases every statement's compiled native code.
func (p *Program) Close() { p.cache.Clear() }
