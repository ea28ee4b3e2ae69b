package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus is the state of one step
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
	StepSkipped
)

// Step is one line of a multi-step operation
type Step struct {
	Number  int
	Name    string
	Status  StepStatus
	Message string
}

// StepCallback reports progress. An empty name keeps the configured one.
type StepCallback func(stepNumber int, name string, status StepStatus, message string)

// Progress tracks steps and renders them with a progress bar
type Progress struct {
	Steps   []Step
	Current int
	Percent float64
	Width   int
	bar     progress.Model
}

// NewProgress creates a tracker with one pending step per name
func NewProgress(names []string) *Progress {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Number: i + 1, Name: name}
	}
	p := &Progress{Steps: steps}
	p.SetWidth(GetTerminalWidth())
	return p
}

// SetWidth sizes the bar for width
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := width - 20
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithGradient(string(PrimaryColor), string(SuccessColor)),
		progress.WithWidth(barWidth),
	)
	return p
}

// Total returns the number of steps
func (p *Progress) Total() int {
	return len(p.Steps)
}

// UpdateStep sets a step's status and note. Out-of-range steps are ignored.
func (p *Progress) UpdateStep(stepNumber int, status StepStatus, message string) {
	if stepNumber < 1 || stepNumber > len(p.Steps) {
		return
	}
	p.Steps[stepNumber-1].Status = status
	p.Steps[stepNumber-1].Message = message

	if status == StepRunning {
		p.Current = stepNumber
		return
	}

	done := 0
	for _, s := range p.Steps {
		if s.Status == StepComplete || s.Status == StepSkipped {
			done++
		}
	}
	p.Percent = float64(done) / float64(len(p.Steps))
}

// SkipRemaining marks every pending step as skipped
func (p *Progress) SkipRemaining(message string) {
	for i := range p.Steps {
		if p.Steps[i].Status == StepPending {
			p.UpdateStep(i+1, StepSkipped, message)
		}
	}
}

// Render returns the bar followed by the step list
func (p *Progress) Render() string {
	lines := []string{p.renderBar(), ""}
	for _, s := range p.Steps {
		lines = append(lines, p.renderStepLine(s))
	}
	return strings.Join(lines, "\n")
}

func (p *Progress) renderBar() string {
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%  [%d/%d]", p.bar.ViewAs(p.Percent), p.Percent*100, p.Current, p.Total()))
}

func (p *Progress) renderStepLine(step Step) string {
	var (
		marker string
		style  lipgloss.Style
	)
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, style = StepMarkerSkipped, StepPendingStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", step.Number, p.Total())
	b.WriteString(style.Render(step.Name))

	// align markers in one column
	padding := 40 - lipgloss.Width(step.Name)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(style.Render(marker))

	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}

func (p *Progress) String() string {
	return p.Render()
}
