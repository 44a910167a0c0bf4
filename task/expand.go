package task

import (
	"os/user"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tudurom/rwsh/lang"
	"golang.org/x/xerrors"
)

const tildeMarker = "\x00TILDE\x00"

// expandWords expands a list of Words into the flat argv spec.md §4.4
// describes: each Word normally contributes exactly one argument, but
// a Word consisting solely of an unquoted array-valued $name, an
// unquoted $( … ), or a glob pattern contributes one argument per
// element/match ("array splat").
func (r *Runner) expandWords(words []lang.Word) ([]string, error) {
	var out []string
	for _, w := range words {
		vs, err := r.expandWord(w)
		if err != nil {
			return nil, err
		}
		out = append(out, vs...)
	}
	return out, nil
}

// expandWord expands one Word, splitting into multiple result strings
// only in the array-splat cases described on expandWords.
func (r *Runner) expandWord(w lang.Word) ([]string, error) {
	if len(w.Parts) == 1 {
		switch part := w.Parts[0].(type) {
		case lang.VarRef:
			if !part.Quoted {
				vals, err := r.vars.Lookup(part.Name, part.Index)
				if err != nil {
					return nil, err
				}
				return vals, nil
			}
		case lang.CmdSubst:
			out, err := r.runCmdSubst(part)
			if err != nil {
				return nil, err
			}
			if part.Quoted {
				return []string{out}, nil
			}
			fields := strings.Fields(out)
			if fields == nil {
				fields = []string{}
			}
			return fields, nil
		case lang.Glob:
			matches, err := filepath.Glob(part.Pattern)
			if err != nil || len(matches) == 0 {
				// Per SPEC_FULL.md §4, an unmatched glob expands to its
				// own literal pattern text rather than vanishing or
				// erroring, matching the common shell "nullglob off"
				// default.
				return []string{part.Pattern}, nil
			}
			sort.Strings(matches)
			return matches, nil
		}
	}

	var sb strings.Builder
	for _, part := range w.Parts {
		s, err := r.expandPartScalar(part)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	return []string{sb.String()}, nil
}

// expandWordScalar expands w to a single string regardless of any
// array-splat case, for contexts that must stay one value (SRE stage
// program text, the switch value).
func (r *Runner) expandWordScalar(w lang.Word) (string, error) {
	var sb strings.Builder
	for _, part := range w.Parts {
		s, err := r.expandPartScalar(part)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func (r *Runner) expandPartScalar(part lang.WordPart) (string, error) {
	switch p := part.(type) {
	case lang.Lit:
		if strings.HasPrefix(p.Value, tildeMarker) {
			return expandTilde(strings.TrimPrefix(p.Value, tildeMarker)), nil
		}
		return p.Value, nil
	case lang.VarRef:
		vals, err := r.vars.Lookup(p.Name, p.Index)
		if err != nil {
			return "", err
		}
		return joinValue(p.Name, vals), nil
	case lang.CmdSubst:
		return r.runCmdSubst(p)
	case lang.Glob:
		return p.Pattern, nil
	default:
		return "", xerrors.Errorf("task: unhandled word part %T", part)
	}
}

// joinValue joins a variable's array value for use inside a
// concatenated word, per spec.md §4.4/§4.6: ":" for *PATH names, " "
// otherwise.
func joinValue(name string, vals []string) string {
	if strings.HasSuffix(name, "PATH") {
		return strings.Join(vals, ":")
	}
	return strings.Join(vals, " ")
}

// expandTilde resolves a "~" or "~user" prefix against the process
// user database. No example repo performs user-directory resolution
// and there is no third-party alternative to the os/user syscall
// wrapper for it, so this one piece of word expansion is the
// stdlib-only exception noted in DESIGN.md.
func expandTilde(prefix string) string {
	if prefix == "~" {
		if u, err := user.Current(); err == nil {
			return u.HomeDir
		}
		return prefix
	}
	name := strings.TrimPrefix(prefix, "~")
	if u, err := user.Lookup(name); err == nil {
		return u.HomeDir
	}
	return prefix
}

// runCmdSubst runs body as a pipeline with stdin disconnected and
// captures its stdout, trimming exactly the trailing newlines per
// spec.md §4.5.
func (r *Runner) runCmdSubst(c lang.CmdSubst) (string, error) {
	var buf strings.Builder
	sub := &Runner{
		vars:       r.vars,
		stdin:      strings.NewReader(""),
		stdout:     &buf,
		stderr:     r.stderr,
		log:        r.log,
		regexCache: r.regexCache,
	}
	if _, err := sub.execPipeline(c.Body); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
