package task

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/tudurom/rwsh/calc"
	"github.com/tudurom/rwsh/lang"
	"github.com/tudurom/rwsh/sre"
	"github.com/tudurom/rwsh/vars"
)

// execSwitch evaluates s.Value once and runs arms top-to-bottom, per
// spec.md §4.5: the first matching arm's body runs and the switch
// stops there unless that arm carries the `fallthrough` keyword (see
// lang.SwitchArm.FallThrough), in which case the next arm's body runs
// unconditionally, without re-testing its own pattern.
func (r *Runner) execSwitch(s *lang.Switch) (int, error) {
	value, err := r.expandWordScalar(s.Value)
	if err != nil {
		return 1, err
	}

	status := 0
	i := 0
	ran := false
	for !ran && i < len(s.Arms) {
		arm := s.Arms[i]
		if !arm.Default {
			matched, err := r.patternMatches(arm.Pattern, value)
			if err != nil {
				return 1, err
			}
			if !matched {
				i++
				continue
			}
		}
		ran = true
		for {
			arm = s.Arms[i]
			r.vars.PushFrame()
			status, err = r.execBody(arm.Body)
			r.vars.PopFrame()
			if err != nil {
				return status, err
			}
			if !arm.FallThrough || i+1 >= len(s.Arms) {
				break
			}
			i++
		}
	}
	return status, nil
}

func (r *Runner) patternMatches(pattern, value string) (bool, error) {
	m, err := r.resolveRegex(pattern)
	if err != nil {
		return false, err
	}
	match, err := m.FindFrom([]rune(value), 0)
	if err != nil {
		return false, err
	}
	return match != nil, nil
}

// matchEvent is one arm match against the match-block input, ordered
// per spec.md §4.5: "by match start ascending, ties broken by arm
// order".
type matchEvent struct {
	start  int64
	armIdx int
	arm    lang.MatchArm
	m      *sre.Match
}

// execMatch reads all of stdin and runs every arm whose pattern
// matches anywhere in it, once per match, binding capture groups as
// $1..$n and named captures, per spec.md §4.5.
func (r *Runner) execMatch(s *lang.Match) (int, error) {
	data, err := io.ReadAll(r.stdin)
	if err != nil {
		return 1, err
	}
	text := []rune(string(data))

	var events []matchEvent
	for i, arm := range s.Arms {
		matcher, err := r.resolveRegex(arm.Pattern)
		if err != nil {
			return 1, err
		}
		matches, err := matcher.FindAllNonOverlapping(text, 0, len(text))
		if err != nil {
			return 1, err
		}
		for _, m := range matches {
			events = append(events, matchEvent{start: m.Start, armIdx: i, arm: arm, m: m})
		}
	}
	sort.SliceStable(events, func(a, b int) bool {
		if events[a].start != events[b].start {
			return events[a].start < events[b].start
		}
		return events[a].armIdx < events[b].armIdx
	})

	status := 0
	for _, ev := range events {
		r.vars.PushFrame()
		bindCaptures(r.vars, ev.m)
		status, err = r.execBody(ev.arm.Body)
		r.vars.PopFrame()
		if err != nil {
			return status, err
		}
	}
	return status, nil
}

func bindCaptures(v *vars.Store, m *sre.Match) {
	for i, g := range m.Positional {
		if i == 0 {
			continue
		}
		v.Set(strconv.Itoa(i), []string{g}, vars.Local)
	}
	for name, g := range m.Groups {
		v.Set(name, []string{g}, vars.Local)
	}
}

// execLet evaluates a `let` statement per spec.md §4.5/§6 and
// SPEC_FULL.md §4's bare-`let NAME` supplement.
func (r *Runner) execLet(a *lang.Assign) (int, error) {
	if a.Erase {
		env := a.Export
		if err := r.vars.Erase(a.Name, env); err != nil {
			return 1, err
		}
		return 0, nil
	}

	if a.Op == "" {
		vals, err := r.vars.Lookup(a.Name, 0)
		if err != nil {
			return 1, err
		}
		_, err = io.WriteString(r.stdout, joinValue(a.Name, vals)+"\n")
		if err != nil {
			return 1, err
		}
		return 0, nil
	}

	rhs, err := r.expandWords(a.Value)
	if err != nil {
		return 1, err
	}

	var flags vars.Flags
	if a.Local {
		flags |= vars.Local
	}
	if a.Export {
		flags |= vars.Export
	}

	switch a.Op {
	case "=":
		if err := r.vars.Set(a.Name, rhs, flags); err != nil {
			return 1, err
		}
	case "++=":
		cur, _ := r.vars.Lookup(a.Name, 0)
		if err := r.vars.Set(a.Name, append(append([]string{}, cur...), rhs...), flags); err != nil {
			return 1, err
		}
	case "::=":
		cur, _ := r.vars.Lookup(a.Name, 0)
		if err := r.vars.Set(a.Name, append(append([]string{}, rhs...), cur...), flags); err != nil {
			return 1, err
		}
	case "+=", "-=", "*=", "/=", "%=":
		cur, err := r.vars.Lookup(a.Name, 1)
		if err != nil {
			cur = []string{"0"}
		}
		curVal := ""
		if len(cur) > 0 {
			curVal = cur[0]
		}
		rhsVal := ""
		if len(rhs) > 0 {
			rhsVal = rhs[0]
		}
		result, err := calc.Eval(curVal + " " + strings.TrimSuffix(a.Op, "=") + " " + rhsVal)
		if err != nil {
			return 1, err
		}
		if err := r.vars.Set(a.Name, []string{result}, flags); err != nil {
			return 1, err
		}
	default:
		if err := r.vars.Set(a.Name, rhs, flags); err != nil {
			return 1, err
		}
	}
	return 0, nil
}
