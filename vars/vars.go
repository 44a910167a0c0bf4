// Package vars implements the scoped variable store of spec.md §4.6:
// arrays of strings addressed by name, with push/pop scope frames, a
// read-only "?" holding the last exit status, and lazy split/join of
// "*PATH"-suffixed names against the process environment.
//
// There is no analogue of a variable store in the teacher repo (T is a
// text editor, not a shell), so this package follows spec.md directly;
// its error handling and exported-name conventions still follow the
// teacher's plain, xerrors-wrapped style used throughout the rest of
// this module.
package vars

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// ErrReadOnly is returned when a script attempts to set or erase "?".
var ErrReadOnly = xerrors.New("vars: \"?\" is read-only")

// ErrNotFound is returned by lookup when a name is unset in every
// frame and is not a lazily-split *PATH environment variable.
var ErrNotFound = xerrors.New("vars: name not found")

// VarError reports a failed variable-store operation (unknown name, or
// an attempt to write the read-only "?"), per spec.md §7. It wraps
// ErrNotFound or ErrReadOnly so errors.Is/errors.As still match the
// sentinel through Unwrap.
type VarError struct {
	Name  string
	Cause error
}

func (e *VarError) Error() string {
	return xerrors.Errorf("vars: %s: %w", e.Name, e.Cause).Error()
}

func (e *VarError) Unwrap() error { return e.Cause }

// Flags control how Set behaves, mirroring spec.md §4.5's `let` flags.
type Flags int

const (
	// Local creates the variable in the innermost frame only.
	Local Flags = 1 << iota
	// Export marks the variable for inclusion in a child process's
	// environment, and immediately syncs it to os.Setenv.
	Export
)

type binding struct {
	value    []string
	exported bool
}

// frame is one lexical scope: a function body, a control-flow body, or
// the top-level script.
type frame struct {
	vars map[string]*binding
}

func newFrame() *frame { return &frame{vars: map[string]*binding{}} }

// Store is a stack of frames plus the running "?" exit-status cell.
type Store struct {
	frames []*frame
	status string
}

// New returns a Store with one top-level frame, seeded from the
// process environment the way a freshly started shell inherits it.
func New() *Store {
	s := &Store{frames: []*frame{newFrame()}, status: "0"}
	for _, kv := range os.Environ() {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			continue
		}
		name, val := kv[:i], kv[i+1:]
		s.frames[0].vars[name] = &binding{value: splitValue(name, val), exported: true}
	}
	return s
}

// PushFrame enters a new inner scope.
func (s *Store) PushFrame() { s.frames = append(s.frames, newFrame()) }

// PopFrame exits the innermost scope. It is a no-op if only the
// top-level frame remains.
func (s *Store) PopFrame() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// SetStatus records the last command's exit status, backing the
// read-only "?" variable.
func (s *Store) SetStatus(code int) { s.status = strconv.Itoa(code) }

// Status returns the current "?" value.
func (s *Store) Status() string { return s.status }

// Lookup returns name's value. If index > 0, only that 1-based element
// is returned as a single-element slice; an out-of-range index yields
// a single empty string rather than an error, per spec.md's silence on
// the matter (SPEC_FULL.md §4, resolved as: array indexing never
// fails, it just reads as empty past the end).
func (s *Store) Lookup(name string, index int) ([]string, error) {
	if name == "?" {
		return applyIndex([]string{s.status}, index), nil
	}
	for i := len(s.frames) - 1; i >= 0; i-- {
		if b, ok := s.frames[i].vars[name]; ok {
			return applyIndex(b.value, index), nil
		}
	}
	if strings.HasSuffix(name, "PATH") {
		val := splitValue(name, os.Getenv(name))
		return applyIndex(val, index), nil
	}
	return nil, &VarError{Name: name, Cause: ErrNotFound}
}

func applyIndex(v []string, index int) []string {
	if index <= 0 {
		return v
	}
	if index > len(v) {
		return []string{""}
	}
	return []string{v[index-1]}
}

// Set assigns value to name according to flags, per spec.md §4.5.
func (s *Store) Set(name string, value []string, flags Flags) error {
	if name == "?" {
		return &VarError{Name: name, Cause: ErrReadOnly}
	}
	var target *frame
	if flags&Local != 0 {
		target = s.frames[len(s.frames)-1]
	} else {
		for i := len(s.frames) - 1; i >= 0; i-- {
			if _, ok := s.frames[i].vars[name]; ok {
				target = s.frames[i]
				break
			}
		}
		if target == nil {
			// A non-local binding that doesn't already exist anywhere is
			// created in the outermost frame, not the innermost one, so
			// it survives the PopFrame that ends the block it was set
			// in — a plain `let x = 1` inside a pushed frame must behave
			// like top-level scope, not like `let -l`.
			target = s.frames[0]
		}
	}
	exported := flags&Export != 0
	if b, ok := target.vars[name]; ok && !exported {
		exported = b.exported
	}
	target.vars[name] = &binding{value: value, exported: exported}
	if exported {
		if err := syncEnv(name, value); err != nil {
			return err
		}
	}
	return nil
}

// Erase removes name from the innermost frame that defines it. If env
// is true, it is also unset from the process environment.
func (s *Store) Erase(name string, env bool) error {
	if name == "?" {
		return &VarError{Name: name, Cause: ErrReadOnly}
	}
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i].vars[name]; ok {
			delete(s.frames[i].vars, name)
			break
		}
	}
	if env {
		return os.Unsetenv(name)
	}
	return nil
}

// splitValue splits a raw environment string into an array: ":" for
// names ending in "PATH" (spec.md §4.6), otherwise a single element.
func splitValue(name, raw string) []string {
	if raw == "" {
		if strings.HasSuffix(name, "PATH") {
			return nil
		}
		return []string{""}
	}
	if strings.HasSuffix(name, "PATH") {
		return strings.Split(raw, ":")
	}
	return []string{raw}
}

// joinValue is splitValue's inverse, used when exporting a *PATH
// variable back to the process environment.
func joinValue(name string, value []string) string {
	if strings.HasSuffix(name, "PATH") {
		return strings.Join(value, ":")
	}
	if len(value) == 0 {
		return ""
	}
	return value[0]
}

func syncEnv(name string, value []string) error {
	if err := os.Setenv(name, joinValue(name, value)); err != nil {
		return xerrors.Errorf("vars: export %s: %w", name, err)
	}
	return nil
}
