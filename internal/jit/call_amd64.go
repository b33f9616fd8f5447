//go:build amd64

package jit

// callCompiled invokes a natively compiled statement (see
// codegen_amd64.go) with slots as its single pointer argument and returns
// its XMM0 result. Implemented in call_amd64.s using the same System V
// register convention the generated code itself follows: the argument in
// RDI, the return value in XMM0.
func callCompiled(fn uintptr, slots uintptr) float64
