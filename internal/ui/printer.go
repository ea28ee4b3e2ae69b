package ui

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// RunOnceModel is a Bubble Tea model that renders its content once and quits
type RunOnceModel struct {
	content string
	width   int
	height  int
}

// NewRunOnceModel creates a model for content
func NewRunOnceModel(content string) RunOnceModel {
	width, height := GetTerminalSize()
	return RunOnceModel{content: content, width: width, height: height}
}

func (m RunOnceModel) Init() tea.Cmd {
	return tea.Quit
}

func (m RunOnceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width, m.height = clampWidth(size.Width), size.Height
	}
	return m, nil
}

func (m RunOnceModel) View() string {
	return m.content
}

// RenderOnce draws content to w through Bubble Tea when w is a terminal
// and prints it plainly otherwise (pipes, journald, buffers).
func RenderOnce(w io.Writer, content string) error {
	if !isTerminalWriter(w) {
		_, err := fmt.Fprintln(w, content)
		return err
	}
	p := tea.NewProgram(NewRunOnceModel(content), tea.WithOutput(w), tea.WithInput(nil))
	_, err := p.Run()
	return err
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Printer writes UI components to a writer
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a printer; nil means stdout
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

func (p *Printer) render(content string) {
	if err := RenderOnce(p.out, content); err != nil {
		_, _ = fmt.Fprintln(p.out, content)
	}
}

// PrintHeader prints a command banner
func (p *Printer) PrintHeader(title, command string, params []Field) {
	p.render(NewHeader(title, command, params).SetWidth(p.width).Render() + "\n")
}

// PrintSuccess prints a success box
func (p *Printer) PrintSuccess(title string, details []Field) {
	p.render(NewSuccessResult(title, details).SetWidth(p.width).Render())
}

// PrintWarning prints a warning box
func (p *Printer) PrintWarning(title string, details []Field) {
	p.render(NewWarningResult(title, details).SetWidth(p.width).Render())
}

// PrintError prints a failure box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.render(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}
