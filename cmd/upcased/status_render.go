package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"upcase/internal/daemonctl"
	"upcase/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

func statusLines(status daemonctl.Status, colorize bool) []string {
	lines := renderSectionHeader("upcased", colorize)

	switch {
	case status.Running && status.PID > 0:
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	case status.Running:
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "Running (pid file unreadable)", colorize))
	default:
		lines = append(lines, renderStatusLine("Daemon", statusError, "Not running", colorize))
	}

	switch {
	case status.FIFOPresent && status.Running:
		lines = append(lines, renderStatusLine("Public FIFO", statusOK, "Accepting clients", colorize))
	case status.FIFOPresent:
		lines = append(lines, renderStatusLine("Public FIFO", statusWarn, "Left behind by a previous daemon", colorize))
	case status.Running:
		lines = append(lines, renderStatusLine("Public FIFO", statusError, "Missing", colorize))
	default:
		lines = append(lines, renderStatusLine("Public FIFO", statusInfo, "Not installed", colorize))
	}

	lines = append(lines,
		renderStatusLine("Strategy", statusInfo, status.Strategy, colorize),
		renderStatusLine("Syslog", statusInfo, yesNo(status.Syslog), colorize),
	)
	return lines
}

func checkLines(results []preflight.Result, colorize bool) []string {
	lines := renderSectionHeader("Checks", colorize)
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}

func pathRows(status daemonctl.Status, configPath string) []pathRow {
	if configPath == "" {
		configPath = "(defaults)"
	}
	return []pathRow{
		{"Config", configPath},
		{"Public FIFO", status.PublicFIFO},
		{"Client FIFOs", status.FIFODir},
		{"State", status.StateDir},
		{"Lock", status.LockPath},
		{"PID", status.PIDPath},
	}
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
