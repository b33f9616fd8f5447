package runtime

import "github.com/sarowish/dgeval/internal/ast"

// Runtime is the ambient, process-lifetime object a compiled program's
// generated code reads and writes. It owns every string and array
// allocated during execution in two arena lists, freed en masse by
// PostExecCleanup, and carries the in-band exception flag that
// ArrayElement raises on an out-of-bounds access. This is a region
// discipline, not reference counting — see DESIGN.md.
type Runtime struct {
	strings   []*string
	arrays    []*Array
	Exception bool
}

func New() *Runtime {
	return &Runtime{}
}

// AllocateArray registers a new array built from the top `count` stack
// values (already popped by the caller, oldest first) and returns it.
func (rt *Runtime) AllocateArray(itemType ast.TypeDescriptor, count int, items []interface{}) *Array {
	a := NewArray(itemType, items)
	rt.arrays = append(rt.arrays, a)
	return a
}

// ArrayElement indexes arr, raising Exception and returning nil on an
// out-of-bounds index rather than panicking.
func (rt *Runtime) ArrayElement(arr *Array, index float64) interface{} {
	i := int(index)
	if i < 0 || i >= arr.Len() {
		rt.Exception = true
		return nil
	}
	return arr.Items[i]
}

// AppendElement grows arr in place and returns it (append_element).
func (rt *Runtime) AppendElement(arr *Array, value interface{}) *Array {
	arr.Items = append(arr.Items, value)
	return arr
}

// AllocateString registers s in the arena and returns it by value — the
// registration exists so PostExecCleanup has a place to release it, even
// though Go's GC makes the release itself a no-op.
func (rt *Runtime) AllocateString(s string) string {
	rt.strings = append(rt.strings, &s)
	return s
}

func (rt *Runtime) CatString(s1, s2 string) string {
	return rt.AllocateString(s1 + s2)
}

// CheckException reports and clears the in-band exception flag: callers
// that observe true must stop executing the current statement's
// remaining instructions and skip straight to PostExecCleanup.
func (rt *Runtime) CheckException() bool {
	ex := rt.Exception
	rt.Exception = false
	return ex
}

// PostExecCleanup releases the arena's owned strings and arrays. It is the
// final instruction of every compiled program's IR (CallLRT sub-op 8).
func (rt *Runtime) PostExecCleanup() {
	rt.strings = nil
	rt.arrays = nil
}
