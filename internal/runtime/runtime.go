// Package runtime implements the dgeval language runtime library: the
// array/string arena a compiled program allocates into, the in-band
// exception flag used for array-out-of-bounds, and the fixed set of
// callable builtin functions (stddev, print, random, ...).
package runtime

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"github.com/sarowish/dgeval/internal/ast"
)

// Array is a runtime array value. Items holds float64, string, bool, or
// *Array depending on ItemType, mirroring the original's
// Array/ArrayDouble/ArrayString/ArrayBool/ArrayArray hierarchy collapsed
// into one Go type with a type tag, which is the idiomatic equivalent of
// that class family.
type Array struct {
	ItemType ast.TypeDescriptor
	Items    []interface{}
}

func NewArray(itemType ast.TypeDescriptor, items []interface{}) *Array {
	return &Array{ItemType: itemType, Items: items}
}

func (a *Array) Len() int { return len(a.Items) }

// ElementsEqual is structural equality between two arrays, used by arrcmp.
func ElementsEqual(a, b *Array) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := range a.Items {
		if !elementEqual(a.Items[i], b.Items[i]) {
			return false
		}
	}
	return true
}

func elementEqual(x, y interface{}) bool {
	switch xv := x.(type) {
	case float64:
		yv, ok := y.(float64)
		return ok && xv == yv
	case string:
		yv, ok := y.(string)
		return ok && xv == yv
	case bool:
		yv, ok := y.(bool)
		return ok && xv == yv
	case *Array:
		yv, ok := y.(*Array)
		return ok && ElementsEqual(xv, yv)
	default:
		return false
	}
}

// Stddev, Mean, Count, Min, Max operate on a Number array, returning 0 on
// an empty array rather than NaN (matching the original's formulas:
// variance = E[x²] − E[x]², stddev = sqrt(variance)).
func Stddev(a *Array) float64 {
	n := float64(a.Len())
	if n == 0 {
		return 0
	}
	var sum, sumSq float64
	for _, v := range a.Items {
		x := v.(float64)
		sum += x
		sumSq += x * x
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

func Mean(a *Array) float64 {
	n := float64(a.Len())
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range a.Items {
		sum += v.(float64)
	}
	return sum / n
}

func Count(a *Array) float64 { return float64(a.Len()) }

func Min(a *Array) float64 {
	if a.Len() == 0 {
		return 0
	}
	m := a.Items[0].(float64)
	for _, v := range a.Items[1:] {
		if x := v.(float64); x < m {
			m = x
		}
	}
	return m
}

func Max(a *Array) float64 {
	if a.Len() == 0 {
		return 0
	}
	m := a.Items[0].(float64)
	for _, v := range a.Items[1:] {
		if x := v.(float64); x > m {
			m = x
		}
	}
	return m
}

// NumberToString formats a number with a fixed 6 decimal places, e.g. 5
// becomes "5.000000".
func NumberToString(n float64) string {
	return fmt.Sprintf("%f", n)
}

// Strcmp compares two strings under the strcmp sub-op comparison kinds:
// 0=eq, 1=ne, 2=gt, 3=lt, 4=ge, 5=le.
func Strcmp(s1, s2 string, kind int) bool {
	switch kind {
	case 0:
		return s1 == s2
	case 1:
		return s1 != s2
	case 2:
		return s1 > s2
	case 3:
		return s1 < s2
	case 4:
		return s1 >= s2
	case 5:
		return s1 <= s2
	default:
		return false
	}
}

// Arrcmp compares two arrays under the same comparison-kind numbering, but
// only equal/not-equal are reachable (the type checker rejects ordering
// comparisons on arrays).
func Arrcmp(a1, a2 *Array, kind int) bool {
	eq := ElementsEqual(a1, a2)
	if kind == 1 {
		return !eq
	}
	return eq
}

// Right returns the last n characters of s; Left the first n. n is clamped
// to [0, len(s)] so an out-of-range count never panics.
func Right(s string, n float64) string {
	k := clamp(n, len(s))
	return s[len(s)-k:]
}

func Left(s string, n float64) string {
	k := clamp(n, len(s))
	return s[:k]
}

func clamp(n float64, max int) int {
	k := int(n)
	if k < 0 {
		return 0
	}
	if k > max {
		return max
	}
	return k
}

// Trig/transcendental builtins: pi is nullary, the rest accept zero or one
// Number argument, defaulting to 0 when omitted.
func Sin(x float64) float64  { return math.Sin(x) }
func Cos(x float64) float64  { return math.Cos(x) }
func Tan(x float64) float64  { return math.Tan(x) }
func Pi() float64            { return math.Pi }
func Atan(x float64) float64 { return math.Atan(x) }
func Asin(x float64) float64 { return math.Asin(x) }
func Acos(x float64) float64 { return math.Acos(x) }
func Exp(x float64) float64  { return math.Exp(x) }
func Ln(x float64) float64   { return math.Log(x) }

// Print writes s without a trailing newline and returns its length,
// matching the original's print() builtin.
func Print(s string) float64 {
	fmt.Fprint(os.Stdout, s)
	return float64(len(s))
}

// Random returns a uniform sample in [0, n). Not cryptographically secure;
// there is no such requirement for a dataflow expression's random() builtin.
func Random(n float64) float64 {
	return rand.Float64() * n
}

func Len(s string) float64 { return float64(len(s)) }
