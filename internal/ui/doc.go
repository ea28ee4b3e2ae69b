// Package ui renders the terminal output of the mejalight-agent CLI.
//
// Components follow a "run once and exit" pattern: they draw styled output
// with Lipgloss but never wait for input.
//
//   - Header: command banner with the parameters in effect
//   - Progress: step list with a progress bar
//   - Result: success, failure or warning box
//   - Runner: drives header, steps and result for a multi-step check
//
// Example:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "Agent Check",
//	    Command:   "mejalight-agent check",
//	    Params:    []ui.Field{{Key: "Config", Value: path}},
//	    StepNames: []string{"Load configuration", "Poll endpoint"},
//	})
//
//	err := runner.Run(ctx, func(onStep ui.StepCallback) ([]ui.Field, error) {
//	    onStep(1, "", ui.StepRunning, "")
//	    // ...
//	    onStep(1, "", ui.StepComplete, "3 stations")
//	    return nil, nil
//	})
//
// Logging is controlled separately via MEJALIGHT_LOG_LEVEL. When it is unset
// zap stays silent so the styled output is not interleaved with log lines.
package ui
