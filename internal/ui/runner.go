package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig describes a multi-step command
type RunnerConfig struct {
	Title     string
	Command   string
	Params    []Field
	StepNames []string
	// Troubleshooting returns tips for a failure; nil shows none
	Troubleshooting func(err error) []string
	Output          io.Writer
	Width           int
}

// Operation does the work and returns the details for the success box
type Operation func(onStep StepCallback) ([]Field, error)

// Runner prints a header, reports steps as they finish and ends with a
// result box.
type Runner struct {
	config   RunnerConfig
	header   *Header
	progress *Progress
	output   io.Writer
	width    int
}

// NewRunner creates a runner; Output defaults to stdout, Width to the
// terminal width.
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := config.Width
	if width == 0 {
		width = GetTerminalWidth()
	}

	return &Runner{
		config:   config,
		header:   NewHeader(config.Title, config.Command, config.Params).SetWidth(width),
		progress: NewProgress(config.StepNames).SetWidth(width),
		output:   config.Output,
		width:    width,
	}
}

// Progress exposes the step tracker
func (r *Runner) Progress() *Progress {
	return r.progress
}

// Run executes op and prints the outcome. The operation's error is
// returned unchanged.
func (r *Runner) Run(ctx context.Context, op Operation) error {
	start := time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	details, err := op(r.onStep)
	duration := time.Since(start).Round(time.Millisecond)

	_, _ = fmt.Fprintln(r.output)
	if err != nil {
		r.progress.SkipRemaining("")
		var tips []string
		if r.config.Troubleshooting != nil {
			tips = r.config.Troubleshooting(err)
		}
		result := NewFailureResult(r.config.Title+" failed", err, tips).SetWidth(r.width)
		_, _ = fmt.Fprintln(r.output, result.Render())
		return err
	}

	details = append(details, Field{Key: "Duration", Value: duration.String()})
	result := NewSuccessResult(r.config.Title+" passed", details).SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())
	return nil
}

func (r *Runner) onStep(stepNumber int, name string, status StepStatus, message string) {
	if stepNumber < 1 || stepNumber > r.progress.Total() {
		return
	}
	if name != "" {
		r.progress.Steps[stepNumber-1].Name = name
	}
	r.progress.UpdateStep(stepNumber, status, message)

	line := r.progress.renderStepLine(r.progress.Steps[stepNumber-1])
	switch status {
	case StepRunning:
		// overwritten once the step finishes
		_, _ = fmt.Fprint(r.output, line+"\r")
	case StepComplete, StepFailed, StepSkipped:
		_, _ = fmt.Fprintln(r.output, line)
	}
}
