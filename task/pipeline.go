package task

import (
	"strings"

	"github.com/tudurom/rwsh/builtins"
	"github.com/tudurom/rwsh/lang"
	"github.com/tudurom/rwsh/pizza"
	"github.com/tudurom/rwsh/sre"
	"golang.org/x/xerrors"
)

// execPipeline runs one pipeline to completion and sets "?" to its
// exit status, per spec.md §4.5.
func (r *Runner) execPipeline(pl *lang.Pipeline) (int, error) {
	status, err := r.runPipelineBody(pl)
	if err != nil {
		if _, ok := err.(*builtins.ExitRequest); ok {
			return status, err
		}
		status = r.logDiagnostic(err)
	}
	if pl.Negate {
		if status == 0 {
			status = 1
		} else {
			status = 0
		}
	}
	r.vars.SetStatus(status)
	return status, nil
}

// runPipelineBody builds and runs the pipeline before negation is
// applied, so a genuine *builtins.ExitRequest can still be told apart
// from an ordinary runtime error by its caller.
func (r *Runner) runPipelineBody(pl *lang.Pipeline) (int, error) {
	// A lone external-looking stage is tried as a builtin first, so
	// `let`'s siblings (`cd`, `exit`, `true`, …) run in-process instead
	// of forking; builtins inside a longer pipeline still run as real
	// child processes, since pizza has no mechanism to splice an
	// in-process builtin into the middle of a piped OS stream.
	if len(pl.Stages) == 1 && pl.Stages[0].Cmd.SRE == nil {
		argv, err := r.expandWords(pl.Stages[0].Cmd.Args)
		if err != nil {
			return 1, err
		}
		if len(argv) == 0 {
			return 0, nil
		}
		if b, ok := builtins.Lookup(argv[0]); ok {
			status, err := b(r, argv[1:])
			if err != nil {
				if _, isExit := err.(*builtins.ExitRequest); isExit {
					return status, err
				}
				return r.logDiagnostic(err), nil
			}
			return status, nil
		}
		return r.runPizza([]pizza.Stage{pizza.External{Argv: argv}})
	}

	stages, err := r.buildStages(pl.Stages)
	if err != nil {
		return 1, err
	}
	return r.runPizza(stages)
}

func (r *Runner) runPizza(stages []pizza.Stage) (int, error) {
	res, err := pizza.Run(spawnContext(), &pizza.Pipeline{Stages: stages}, r.stdin, r.stdout, r.stderr)
	if err != nil {
		return 1, err
	}
	return res.ExitStatus, nil
}

// buildStages turns parsed pipeline stages into pizza stages: a
// stage's own Command tells us whether it is an external argv or an
// SRE program, independent of which connector introduced it.
func (r *Runner) buildStages(stages []lang.PipelineStage) ([]pizza.Stage, error) {
	out := make([]pizza.Stage, 0, len(stages))
	for _, st := range stages {
		if st.Cmd.SRE != nil {
			s, err := r.buildSREStage(*st.Cmd.SRE)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
			continue
		}
		argv, err := r.expandWords(st.Cmd.Args)
		if err != nil {
			return nil, err
		}
		if len(argv) == 0 {
			return nil, xerrors.New("task: empty pipeline stage")
		}
		out = append(out, pizza.External{Argv: argv})
	}
	return out, nil
}

func (r *Runner) buildSREStage(w lang.Word) (pizza.SRE, error) {
	text, err := r.expandWordScalar(w)
	if err != nil {
		return pizza.SRE{}, err
	}
	cmd, rest, err := sre.ParseCommand(text)
	if err != nil {
		return pizza.SRE{}, err
	}
	if strings.TrimSpace(rest) != "" {
		return pizza.SRE{}, &sre.ParseError{Message: "trailing text after SRE command: " + rest}
	}
	return pizza.SRE{Cmd: cmd, Resolve: r.resolveRegex}, nil
}
