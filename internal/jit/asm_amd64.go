//go:build amd64

// Package jit emits and executes x86-64 machine code for the pure-numeric
// fast path of a compiled dgeval program; see codegen_amd64.go for scope
// and DESIGN.md for why it doesn't cover the whole language.
//
// This file is the low-level assembler: instruction encoding for the
// System V AMD64 register set, both general-purpose (RDI holds the slot
// pointer, RAX carries SETcc/immediate bit patterns, RBP is saved and
// restored as CompileStatement's frame pointer) and XMM (for
// double-precision arithmetic, dgeval's only numeric type).
//
// Encoding format: [prefix] [REX] [opcode] [ModR/M] [SIB] [disp] [imm]
// REX.W selects a 64-bit operand, REX.R/X/B extend the reg/index/base
// fields past the 3 bits ModR/M and SIB otherwise allow.
package jit

import "encoding/binary"

// X64Reg is a general-purpose x86-64 register.
type X64Reg int

const (
	RAX X64Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	RegNone X64Reg = -1
)

func (r X64Reg) String() string {
	names := []string{
		"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
	}
	if r >= 0 && int(r) < len(names) {
		return names[r]
	}
	return "???"
}

func (r X64Reg) IsExtended() bool { return r >= R8 && r <= R15 }
func (r X64Reg) LowBits() byte    { return byte(r) & 0x7 }

// XMMReg is an SSE2 register, used for every double-precision value.
type XMMReg int

const (
	XMM0 XMMReg = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
)

func (r XMMReg) IsExtended() bool { return false } // XMM8-15 unused, no REX.R/B needed
func (r XMMReg) LowBits() byte    { return byte(r) & 0x7 }

// X64Assembler accumulates machine code and resolves label-relative jumps
// once the whole function has been emitted.
type X64Assembler struct {
	code   []byte
	labels map[int]int
	relocs []x64Reloc
}

type x64Reloc struct {
	offset int
	target int
	size   int
}

func NewX64Assembler() *X64Assembler {
	return &X64Assembler{code: make([]byte, 0, 256), labels: make(map[int]int)}
}

func (a *X64Assembler) Reset() {
	a.code = a.code[:0]
	a.labels = make(map[int]int)
	a.relocs = nil
}

func (a *X64Assembler) Code() []byte {
	a.resolveRelocations()
	return a.code
}

func (a *X64Assembler) Len() int { return len(a.code) }

func (a *X64Assembler) emit(bytes ...byte) { a.code = append(a.code, bytes...) }

func (a *X64Assembler) emitU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	a.code = append(a.code, buf[:]...)
}

func (a *X64Assembler) emitU64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	a.code = append(a.code, buf[:]...)
}

func rex(w, r, x, b bool) byte {
	var v byte = 0x40
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 0x7) << 3) | (rm & 0x7)
}

// Label records the current code offset under id, for a later relocation
// to resolve against.
func (a *X64Assembler) Label(id int) {
	a.labels[id] = len(a.code)
}

// ----------------------------------------------------------------------
// general-purpose data movement
// ----------------------------------------------------------------------

func (a *X64Assembler) MovRegImm64(reg X64Reg, imm uint64) {
	a.emit(rex(true, false, false, reg.IsExtended()))
	a.emit(0xB8 + reg.LowBits())
	a.emitU64(imm)
}

func (a *X64Assembler) emitMemOperand(reg byte, base X64Reg, offset int32) {
	baseCode := base.LowBits()
	needSIB := base == RSP || base == R12

	switch {
	case offset == 0 && base != RBP && base != R13:
		if needSIB {
			a.emit(modrm(0, reg, 4))
			a.emit(0x24)
		} else {
			a.emit(modrm(0, reg, baseCode))
		}
	case offset >= -128 && offset <= 127:
		if needSIB {
			a.emit(modrm(1, reg, 4))
			a.emit(0x24)
		} else {
			a.emit(modrm(1, reg, baseCode))
		}
		a.emit(byte(offset))
	default:
		if needSIB {
			a.emit(modrm(2, reg, 4))
			a.emit(0x24)
		} else {
			a.emit(modrm(2, reg, baseCode))
		}
		a.emitU32(uint32(offset))
	}
}

// SetE/SetNE write the ZF condition flag into the low byte of reg (0/1),
// used to materialise a dgeval boolean from a comparison.
func (a *X64Assembler) SetE(reg X64Reg)  { a.setcc(0x94, reg) }
func (a *X64Assembler) SetNE(reg X64Reg) { a.setcc(0x95, reg) }

func (a *X64Assembler) setcc(opcode byte, reg X64Reg) {
	if reg.IsExtended() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x0F, opcode)
	a.emit(modrm(3, 0, reg.LowBits()))
}

func (a *X64Assembler) MovzxReg8(dst, src X64Reg) {
	a.emit(rex(true, dst.IsExtended(), false, src.IsExtended()))
	a.emit(0x0F, 0xB6)
	a.emit(modrm(3, dst.LowBits(), src.LowBits()))
}

// ----------------------------------------------------------------------
// stack, call, jump
// ----------------------------------------------------------------------

// Push/Pop bracket CompileStatement's body as a minimal prologue/epilogue,
// preserving RBP the way System V requires of any callee.
func (a *X64Assembler) Push(reg X64Reg) {
	if reg.IsExtended() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x50 + reg.LowBits())
}

func (a *X64Assembler) Pop(reg X64Reg) {
	if reg.IsExtended() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x58 + reg.LowBits())
}

// Jmp/Je emit a 32-bit relative jump to the block later registered under
// blockID via Label; the displacement is patched by resolveRelocations
// once every label is known.
func (a *X64Assembler) Jmp(blockID int) { a.jcc([]byte{0xE9}, blockID) }
func (a *X64Assembler) Je(blockID int)  { a.jcc([]byte{0x0F, 0x84}, blockID) }

func (a *X64Assembler) jcc(opcode []byte, blockID int) {
	a.emit(opcode...)
	a.relocs = append(a.relocs, x64Reloc{offset: len(a.code), target: blockID, size: 4})
	a.emitU32(0)
}

func (a *X64Assembler) Call(reg X64Reg) {
	if reg.IsExtended() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0xFF)
	a.emit(modrm(3, 2, reg.LowBits()))
}

func (a *X64Assembler) Ret() { a.emit(0xC3) }

func (a *X64Assembler) resolveRelocations() {
	for _, reloc := range a.relocs {
		if target, ok := a.labels[reloc.target]; ok {
			offset := int32(target - (reloc.offset + reloc.size))
			binary.LittleEndian.PutUint32(a.code[reloc.offset:], uint32(offset))
		}
	}
}

// ----------------------------------------------------------------------
// SSE2 double-precision — dgeval's Number type end-to-end
// ----------------------------------------------------------------------

// MovqXmmReg loads the raw 64-bit pattern of a GPR into an XMM register
// (movq xmm, r64): the standard way to materialise a double immediate,
// since x86-64 has no mov-immediate-to-xmm form.
func (a *X64Assembler) MovqXmmReg(dst XMMReg, src X64Reg) {
	a.emit(0x66)
	a.emit(rex(true, dst.IsExtended(), false, src.IsExtended()))
	a.emit(0x0F, 0x6E)
	a.emit(modrm(3, dst.LowBits(), src.LowBits()))
}

func (a *X64Assembler) MovsdRegReg(dst, src XMMReg) {
	a.emit(0xF2)
	a.emit(rex(false, dst.IsExtended(), false, src.IsExtended()))
	a.emit(0x0F, 0x10)
	a.emit(modrm(3, dst.LowBits(), src.LowBits()))
}

func (a *X64Assembler) MovsdRegMem(dst XMMReg, base X64Reg, offset int32) {
	a.emit(0xF2)
	a.emit(rex(false, dst.IsExtended(), false, base.IsExtended()))
	a.emit(0x0F, 0x10)
	a.emitMemOperand(dst.LowBits(), base, offset)
}

func (a *X64Assembler) MovsdMemReg(base X64Reg, offset int32, src XMMReg) {
	a.emit(0xF2)
	a.emit(rex(false, src.IsExtended(), false, base.IsExtended()))
	a.emit(0x0F, 0x11)
	a.emitMemOperand(src.LowBits(), base, offset)
}

func (a *X64Assembler) AddsdRegReg(dst, src XMMReg) { a.sseArith(0x58, dst, src) }
func (a *X64Assembler) SubsdRegReg(dst, src XMMReg) { a.sseArith(0x5C, dst, src) }
func (a *X64Assembler) MulsdRegReg(dst, src XMMReg) { a.sseArith(0x59, dst, src) }
func (a *X64Assembler) DivsdRegReg(dst, src XMMReg) { a.sseArith(0x5E, dst, src) }

// XorpdRegReg is XORPD (66 0F 57), not an F2-prefixed scalar op, so it
// does not go through sseArith.
func (a *X64Assembler) XorpdRegReg(dst, src XMMReg) {
	a.emit(0x66)
	a.emit(rex(false, dst.IsExtended(), false, src.IsExtended()))
	a.emit(0x0F, 0x57)
	a.emit(modrm(3, dst.LowBits(), src.LowBits()))
}

func (a *X64Assembler) sseArith(opcode byte, dst, src XMMReg) {
	a.emit(0xF2)
	a.emit(rex(false, dst.IsExtended(), false, src.IsExtended()))
	a.emit(0x0F, opcode)
	a.emit(modrm(3, dst.LowBits(), src.LowBits()))
}

// Cvtsi2sdRegReg converts a signed 64-bit integer in src (typically a
// zero-extended SETcc result) into a double in dst.
func (a *X64Assembler) Cvtsi2sdRegReg(dst XMMReg, src X64Reg) {
	a.emit(0xF2)
	a.emit(rex(true, dst.IsExtended(), false, src.IsExtended()))
	a.emit(0x0F, 0x2A)
	a.emit(modrm(3, dst.LowBits(), src.LowBits()))
}

// ComisdRegReg compares dst and src, setting EFLAGS ZF/CF/PF the way
// integer Cmp does, so the Set/Jcc instructions above drive a dgeval
// comparison operator directly off a double compare.
func (a *X64Assembler) ComisdRegReg(dst, src XMMReg) {
	a.emit(0x66)
	a.emit(rex(false, dst.IsExtended(), false, src.IsExtended()))
	a.emit(0x0F, 0x2F)
	a.emit(modrm(3, dst.LowBits(), src.LowBits()))
}

// SetB/SetBE/SetAE/SetA read the unsigned-compare flags COMISD leaves
// behind (CF/ZF), which double-precision ordering needs instead of the
// signed SETL/SETLE/SETG/SETGE used for integers.
func (a *X64Assembler) SetB(reg X64Reg)  { a.setcc(0x92, reg) }
func (a *X64Assembler) SetBE(reg X64Reg) { a.setcc(0x96, reg) }
func (a *X64Assembler) SetAE(reg X64Reg) { a.setcc(0x93, reg) }
func (a *X64Assembler) SetA(reg X64Reg)  { a.setcc(0x97, reg) }
