package bytecode

import "github.com/sarowish/dgeval/internal/ast"

// Peephole runs the two local rewrite rules to a fixed point, sinks
// terminal literals through conditional branches, and compacts the
// instruction stream, remapping every Jump/JumpFalse target to the
// resulting live index.
func Peephole(inst []Instruction, flags Flags) []Instruction {
	out, _ := PeepholeWithBounds(inst, nil, flags)
	return out
}

// PeepholeWithBounds runs Peephole's rewrites and also remaps bounds (as
// produced by Generate) to the post-compaction indices, so a caller that
// needs per-statement instruction slices — the JIT dispatcher, a
// statement-at-a-time driver — can still find statement i at inst[new
// bounds[i]:...] after optimization.
func PeepholeWithBounds(inst []Instruction, bounds []int, flags Flags) ([]Instruction, []int) {
	if !flags.has(FlagPeepholeOffload) && !flags.has(FlagPeepholeConstsink) {
		return inst, bounds
	}
	for {
		if !applyWindowRules(inst, flags) {
			break
		}
	}
	if flags.has(FlagPeepholeConstsink) {
		sinkBranchTerminalLiterals(inst)
	}
	return compactWithBounds(inst, bounds)
}

func isLiteralPush(in Instruction) bool {
	return in.Op == ast.OpLiteral || (in.Op == ast.OpCallLRT && in.Parameter == LRTAllocateString)
}

// applyWindowRules slides a 3-instruction window over the live (non-None)
// instructions once and reports whether it removed anything.
func applyWindowRules(inst []Instruction, flags Flags) bool {
	changed := false
	for i := 0; i < len(inst); i++ {
		if inst[i].Op == ast.OpNone {
			continue
		}
		j := nextLive(inst, i+1)
		if j < 0 {
			continue
		}

		// Rule 1: Assign x; Pop k (k>=1); Identifier x -> drop Pop+Identifier.
		if flags.has(FlagPeepholeOffload) && inst[i].Op == ast.OpAssign && inst[j].Op == ast.OpPop && inst[j].Parameter >= 1 {
			k := nextLive(inst, j+1)
			if k >= 0 && inst[k].Op == ast.OpIdentifier && inst[k].Parameter == inst[i].Parameter {
				inst[j].Op = ast.OpNone
				inst[k].Op = ast.OpNone
				changed = true
				continue
			}
		}

		// Rule 2: literal push immediately followed by a matching Pop.
		if flags.has(FlagPeepholeConstsink) && isLiteralPush(inst[i]) && inst[j].Op == ast.OpPop && inst[j].Parameter >= 1 {
			inst[i].Op = ast.OpNone
			if inst[j].Parameter == 1 {
				inst[j].Op = ast.OpNone
			} else {
				inst[j].Parameter--
			}
			changed = true
		}
	}
	return changed
}

func nextLive(inst []Instruction, from int) int {
	for i := from; i < len(inst); i++ {
		if inst[i].Op != ast.OpNone {
			return i
		}
	}
	return -1
}

// sinkBranchTerminalLiterals finds every JumpFalse/Jump pair produced by
// Conditional lowering and, when both branches end in a literal push and
// the join point is a Pop, strips the two literals and shrinks the Pop —
// "never pushed" instead of "pushed then popped".
func sinkBranchTerminalLiterals(inst []Instruction) {
	for i := 0; i < len(inst); i++ {
		jf := inst[i]
		if jf.Op != ast.OpJumpFalse {
			continue
		}
		jumpIdx := jf.Parameter - 1
		if jumpIdx < 0 || jumpIdx >= len(inst) || inst[jumpIdx].Op != ast.OpJump {
			continue
		}
		falseStart := jf.Parameter
		joinIdx := inst[jumpIdx].Parameter
		if joinIdx <= falseStart || joinIdx > len(inst) {
			continue
		}

		trueLast := lastLiveBefore(inst, jumpIdx)
		falseLast := lastLiveBefore(inst, joinIdx)
		if trueLast < 0 || falseLast < 0 {
			continue
		}
		if !isLiteralPush(inst[trueLast]) || !isLiteralPush(inst[falseLast]) {
			continue
		}
		if joinIdx >= len(inst) || inst[joinIdx].Op != ast.OpPop || inst[joinIdx].Parameter < 1 {
			continue
		}

		inst[trueLast].Op = ast.OpNone
		inst[falseLast].Op = ast.OpNone
		if inst[joinIdx].Parameter == 1 {
			inst[joinIdx].Op = ast.OpNone
		} else {
			inst[joinIdx].Parameter--
		}
	}
}

func lastLiveBefore(inst []Instruction, end int) int {
	for i := end - 1; i >= 0; i-- {
		if inst[i].Op != ast.OpNone {
			return i
		}
	}
	return -1
}

// compactWithBounds removes every None instruction and remaps Jump/JumpFalse
// targets from old indices to their post-compaction live index.
func compactWithBounds(inst []Instruction, bounds []int) ([]Instruction, []int) {
	newIndex := make([]int, len(inst))
	live := 0
	for i, in := range inst {
		if in.Op == ast.OpNone {
			newIndex[i] = -1
			continue
		}
		newIndex[i] = live
		live++
	}

	out := make([]Instruction, 0, live)
	for _, in := range inst {
		if in.Op == ast.OpNone {
			continue
		}
		if in.Op == ast.OpJump || in.Op == ast.OpJumpFalse {
			target := in.Parameter
			for target < len(newIndex) && newIndex[target] == -1 {
				target++
			}
			if target < len(newIndex) {
				in.Parameter = newIndex[target]
			} else {
				in.Parameter = live
			}
		}
		out = append(out, in)
	}

	if bounds == nil {
		return out, nil
	}
	newBounds := make([]int, len(bounds))
	for i, b := range bounds {
		target := b
		for target < len(newIndex) && newIndex[target] == -1 {
			target++
		}
		if target < len(newIndex) {
			newBounds[i] = newIndex[target]
		} else {
			newBounds[i] = live
		}
	}
	return out, newBounds
}
