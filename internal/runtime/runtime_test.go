package runtime

import (
	"math"
	"testing"

	"github.com/sarowish/dgeval/internal/ast"
)

func numArray(vals ...float64) *Array {
	items := make([]interface{}, len(vals))
	for i, v := range vals {
		items[i] = v
	}
	return NewArray(ast.TypeDescriptor{Type: ast.TNumber, Dimension: 1}, items)
}

func TestStatsOnEmptyArrayAreZero(t *testing.T) {
	empty := numArray()
	for name, got := range map[string]float64{
		"Stddev": Stddev(empty), "Mean": Mean(empty),
		"Count": Count(empty), "Min": Min(empty), "Max": Max(empty),
	} {
		if got != 0 {
			t.Errorf("%s on empty array = %v, want 0", name, got)
		}
	}
}

func TestStatsOnNonEmptyArray(t *testing.T) {
	a := numArray(1, 2, 3, 4)
	if Mean(a) != 2.5 {
		t.Errorf("Mean = %v, want 2.5", Mean(a))
	}
	if Count(a) != 4 {
		t.Errorf("Count = %v, want 4", Count(a))
	}
	if Min(a) != 1 {
		t.Errorf("Min = %v, want 1", Min(a))
	}
	if Max(a) != 4 {
		t.Errorf("Max = %v, want 4", Max(a))
	}
	want := math.Sqrt(1.25)
	if math.Abs(Stddev(a)-want) > 1e-9 {
		t.Errorf("Stddev = %v, want %v", Stddev(a), want)
	}
}

func TestStrcmpKinds(t *testing.T) {
	cases := []struct {
		kind int
		want bool
	}{
		{0, false}, // eq
		{1, true},  // ne
		{2, false}, // gt
		{3, true},  // lt
		{4, false}, // ge
		{5, true},  // le
	}
	for _, c := range cases {
		if got := Strcmp("a", "b", c.kind); got != c.want {
			t.Errorf("Strcmp(a,b,kind=%d) = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestArrcmpOnlyEqAndNeReachable(t *testing.T) {
	a := numArray(1, 2)
	b := numArray(1, 2)
	c := numArray(1, 3)
	if !Arrcmp(a, b, 0) {
		t.Error("expected equal arrays to compare equal")
	}
	if Arrcmp(a, c, 0) {
		t.Error("expected unequal arrays to compare unequal")
	}
	if !Arrcmp(a, c, 1) {
		t.Error("expected ne to hold for unequal arrays")
	}
	if Arrcmp(a, b, 1) {
		t.Error("expected ne to be false for equal arrays")
	}
}

func TestRightLeftClampToStringLength(t *testing.T) {
	if got := Right("hello", 3); got != "llo" {
		t.Errorf("Right = %q, want llo", got)
	}
	if got := Left("hello", 3); got != "hel" {
		t.Errorf("Left = %q, want hel", got)
	}
	if got := Right("hi", 10); got != "hi" {
		t.Errorf("Right with n>len = %q, want hi", got)
	}
	if got := Left("hi", 10); got != "hi" {
		t.Errorf("Left with n>len = %q, want hi", got)
	}
	if got := Right("hi", -5); got != "" {
		t.Errorf("Right with negative n = %q, want empty", got)
	}
	if got := Left("hi", -5); got != "" {
		t.Errorf("Left with negative n = %q, want empty", got)
	}
}

func TestNumberToStringFixedDecimals(t *testing.T) {
	if got := NumberToString(5); got != "5.000000" {
		t.Errorf("NumberToString(5) = %q, want 5.000000", got)
	}
}

func TestElementsEqualAcrossNestedArrays(t *testing.T) {
	inner1 := numArray(1, 2)
	inner2 := numArray(1, 2)
	outer1 := NewArray(ast.TypeDescriptor{Type: ast.TNumber, Dimension: 2}, []interface{}{inner1})
	outer2 := NewArray(ast.TypeDescriptor{Type: ast.TNumber, Dimension: 2}, []interface{}{inner2})
	if !ElementsEqual(outer1, outer2) {
		t.Error("expected structurally equal nested arrays to compare equal")
	}
}

func TestTrigAndTranscendentalBuiltins(t *testing.T) {
	if math.Abs(Sin(0)) > 1e-12 {
		t.Errorf("Sin(0) = %v, want 0", Sin(0))
	}
	if math.Abs(Cos(0)-1) > 1e-12 {
		t.Errorf("Cos(0) = %v, want 1", Cos(0))
	}
	if math.Abs(Pi()-math.Pi) > 1e-12 {
		t.Errorf("Pi() = %v, want %v", Pi(), math.Pi)
	}
	if math.Abs(Exp(0)-1) > 1e-12 {
		t.Errorf("Exp(0) = %v, want 1", Exp(0))
	}
	if math.Abs(Ln(1)) > 1e-12 {
		t.Errorf("Ln(1) = %v, want 0", Ln(1))
	}
}

func TestLen(t *testing.T) {
	if got := Len("hello"); got != 5 {
		t.Errorf("Len = %v, want 5", got)
	}
}
