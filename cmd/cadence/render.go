package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cadence/internal/feedback"
	"cadence/internal/realtime"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var titleCaser = cases.Title(language.Und)

// titleCase renders identifiers such as feedback categories for display.
func titleCase(value string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), "_", " ")
	if cleaned == "" {
		return ""
	}
	return titleCaser.String(cleaned)
}

func statusCell(status feedback.PipelineStatus, colorize bool) string {
	label := string(status)
	if label == "" {
		label = "-"
	}
	if !colorize {
		return label
	}
	switch status {
	case feedback.StatusCompleted:
		return ansiGreen + label + ansiReset
	case feedback.StatusFailed:
		return ansiRed + label + ansiReset
	case feedback.StatusProcessing, feedback.StatusRetrying:
		return ansiYellow + label + ansiReset
	default:
		return label
	}
}

func subscriptionLine(state realtime.State, colorize bool) string {
	label := fmt.Sprintf("Subscription: %s", state)
	if !colorize {
		return label
	}
	switch state {
	case realtime.StateActive:
		return ansiGreen + label + ansiReset
	case realtime.StateError:
		return ansiRed + label + ansiReset
	case realtime.StateConnecting:
		return ansiYellow + label + ansiReset
	default:
		return label
	}
}

func checkLine(name string, passed bool, detail string, colorize bool) string {
	mark := "FAIL"
	color := ansiRed
	if passed {
		mark = "OK"
		color = ansiGreen
	}
	line := fmt.Sprintf("  %-18s [%s] %s", name+":", mark, detail)
	if colorize {
		return color + line + ansiReset
	}
	return line
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
