// pipeline.go implements the orchestration sequence itself: start line,
// optional validation gate, download gate, success line.
//
// The observable contract is load-bearing for operators' scripts:
//
//	Starting validation and download at <timestamp>
//	❌ Download script exited with error code <n>   (failure, exit 1)
//	✅ Done at <timestamp>                          (success, exit 0)
//
// The start line is printed before any subprocess is invoked; the Done
// line is printed only after the download step reports success.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gmkovacs/tilerun/internal/config"
	"github.com/gmkovacs/tilerun/internal/model"
)

// timestampFormat matches the default output of date(1), which is what
// operators are used to seeing in the status lines.
const timestampFormat = time.UnixDate

// Pipeline orchestrates the external steps of one run.
type Pipeline struct {
	// Manifest supplies the step command lines and the runValidation flag.
	Manifest *config.Manifest

	// Runner executes the individual steps.
	Runner Runner

	// Out receives the human-readable status lines. Defaults to stdout.
	Out io.Writer

	// Log, when non-nil, receives verbose diagnostics (wired to the CLI's
	// --verbose flag).
	Log func(format string, args ...interface{})

	// Now supplies timestamps. Defaults to time.Now; overridable in tests
	// for deterministic output.
	Now func() time.Time
}

// New creates a Pipeline with defaults applied for the optional fields.
func New(manifest *config.Manifest, runner Runner) *Pipeline {
	return &Pipeline{
		Manifest: manifest,
		Runner:   runner,
		Out:      os.Stdout,
		Now:      time.Now,
	}
}

// Run executes the full pipeline: the validation step when enabled,
// then the download step, each a hard gate on the next.
//
// The returned RunRecord is complete in both the success and failure
// case, so callers can persist it regardless of outcome. The returned
// error is nil on success and a model.CLIError with ExitStepFailed when
// a step reported a non-zero status or could not be started.
func (p *Pipeline) Run(ctx context.Context) (*model.RunRecord, error) {
	rec := p.newRecord()

	// The start line goes out before anything is spawned.
	fmt.Fprintf(p.out(), "Starting validation and download at %s\n", p.stamp(rec.StartedAt))

	if p.Manifest.RunValidation {
		res, err := p.invoke(ctx, model.StepValidate)
		rec.Steps = append(rec.Steps, res)
		if err != nil || !res.Succeeded() {
			// Validation failed: the download step is never invoked.
			rec.Steps = append(rec.Steps, skippedStep(model.StepDownload))
			return rec, p.fail(rec, res, err)
		}
	} else {
		p.logf("validation step disabled (runValidation: false), skipping")
		rec.Steps = append(rec.Steps, skippedStep(model.StepValidate))
	}

	res, err := p.invoke(ctx, model.StepDownload)
	rec.Steps = append(rec.Steps, res)
	if err != nil || !res.Succeeded() {
		return rec, p.fail(rec, res, err)
	}

	return rec, p.succeed(rec)
}

// RunOnly executes a single named step outside the full sequence. This
// backs the `tilerun validate` and `tilerun download` subcommands, which
// expose the external programs individually.
func (p *Pipeline) RunOnly(ctx context.Context, name model.StepName) (*model.RunRecord, error) {
	rec := p.newRecord()

	fmt.Fprintf(p.out(), "Starting %s at %s\n", strings.ToLower(name.DisplayName()), p.stamp(rec.StartedAt))

	res, err := p.invoke(ctx, name)
	rec.Steps = append(rec.Steps, res)
	if err != nil || !res.Succeeded() {
		return rec, p.fail(rec, res, err)
	}

	return rec, p.succeed(rec)
}

// invoke resolves the step's configured command line and hands it to the
// runner, emitting verbose diagnostics around the invocation.
func (p *Pipeline) invoke(ctx context.Context, name model.StepName) (model.StepResult, error) {
	step, err := p.Manifest.StepCommandFor(name)
	if err != nil {
		return model.StepResult{Name: name, Status: model.StatusFailed, ExitCode: -1}, err
	}

	p.logf("invoking %s step: %s %s", name, step.Command, strings.Join(step.Args, " "))
	res, err := p.Runner.Run(ctx, name, step.Command, step.Args)
	p.logf("%s step finished: status=%s exit=%d duration=%s", name, res.Status, res.ExitCode, res.Duration)
	return res, err
}

// succeed finalizes a successful run: exit code 0 and the Done line.
func (p *Pipeline) succeed(rec *model.RunRecord) error {
	rec.FinishedAt = p.now()
	rec.ExitCode = int(model.ExitSuccess)
	fmt.Fprintf(p.out(), "✅ Done at %s\n", p.stamp(rec.FinishedAt))
	return nil
}

// fail finalizes a failed run: exit code 1, the failure line for the
// offending step, and a CLIError that terminates the CLI with status 1.
// No Done line is printed.
func (p *Pipeline) fail(rec *model.RunRecord, res model.StepResult, invokeErr error) error {
	rec.FinishedAt = p.now()
	rec.ExitCode = int(model.ExitStepFailed)

	if invokeErr != nil {
		// The subprocess never produced an exit status.
		fmt.Fprintf(p.out(), "❌ %s script could not be started\n", res.Name.DisplayName())
		return model.WrapCLIError(model.ExitStepFailed,
			fmt.Sprintf("%s step could not be started", res.Name), invokeErr)
	}

	fmt.Fprintf(p.out(), "❌ %s script exited with error code %d\n", res.Name.DisplayName(), res.ExitCode)
	return model.NewCLIError(model.ExitStepFailed,
		fmt.Sprintf("%s step failed with exit status %d", res.Name, res.ExitCode))
}

// newRecord starts a fresh run record with a unique ID.
func (p *Pipeline) newRecord() *model.RunRecord {
	return &model.RunRecord{
		ID:        uuid.NewString(),
		StartedAt: p.now(),
	}
}

// skippedStep builds the placeholder result for a step that was never
// invoked, keeping RunRecord.Steps positionally complete.
func skippedStep(name model.StepName) model.StepResult {
	return model.StepResult{
		Name:     name,
		Status:   model.StatusSkipped,
		ExitCode: -1,
	}
}

func (p *Pipeline) out() io.Writer {
	if p.Out != nil {
		return p.Out
	}
	return os.Stdout
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) stamp(t time.Time) string {
	return t.Format(timestampFormat)
}

func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.Log != nil {
		p.Log(format, args...)
	}
}
