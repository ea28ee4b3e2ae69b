package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result is a success, failure or warning box
type Result struct {
	Type            ResultType
	Title           string
	Details         []Field
	Error           error
	Troubleshooting []string
	Width           int
}

// NewSuccessResult creates a success box
func NewSuccessResult(title string, details []Field) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure box with troubleshooting tips
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewWarningResult creates a warning box
func NewWarningResult(title string, details []Field) *Result {
	return &Result{
		Type:    ResultWarning,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the width for rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail appends a key/value line
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Field{Key: key, Value: value})
	return r
}

// Render returns the styled box
func (r *Result) Render() string {
	width := clampWidth(r.Width)

	var (
		title  string
		color  lipgloss.Color
		titleS lipgloss.Style
	)
	switch r.Type {
	case ResultFailure:
		title = fmt.Sprintf("   %s  FAILED  ─  %s", FailureMarker, r.Title)
		color, titleS = ErrorColor, ErrorTitleStyle
	case ResultWarning:
		title = fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, r.Title)
		color, titleS = WarningColor, WarningTitleStyle
	default:
		title = fmt.Sprintf("   %s  SUCCESS  ─  %s", SuccessMarker, r.Title)
		color, titleS = SuccessColor, SuccessTitleStyle
	}

	lines := []string{"", titleS.Render(title), ""}

	for _, d := range r.Details {
		lines = append(lines, ResultKeyStyle.Render("   "+d.Key+":")+" "+ResultValueStyle.Render(d.Value))
	}
	if len(r.Details) > 0 {
		lines = append(lines, "")
	}

	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
	}

	if len(r.Troubleshooting) > 0 {
		lines = append(lines, r.renderTroubleshootingBox(width), "")
	}

	return boxStyle(width, color).Render(strings.Join(lines, "\n"))
}

func (r *Result) renderTroubleshootingBox(width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, TroubleshootingItemStyle.Render("  • "+tip))
	}

	innerWidth := width - 12
	if innerWidth < 40 {
		innerWidth = 40
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(innerWidth).
		Padding(0, 1).
		MarginLeft(3).
		Render(strings.Join(lines, "\n"))
}

func (r *Result) String() string {
	return r.Render()
}
