package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
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
	statusLabelWidth = 14
	statusIndent     = "  "
	progressWidth    = 24
)

var statusStyles = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style, ok := statusStyles[kind]
	if !ok {
		style = statusStyles[statusInfo]
	}
	badge := "[" + style.label + "]"
	if colorize {
		badge = style.color + badge + ansiReset
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", badge)
	if message != "" {
		line += " " + message
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	title = strings.TrimSpace(title)
	rule := strings.Repeat("─", len([]rune(title)))
	if colorize {
		return []string{ansiBlue + title + ansiReset, ansiBlue + rule + ansiReset}
	}
	return []string{title, rule}
}

// renderProgress draws done/total as a fixed-width bar followed by the counts.
func renderProgress(done, total int) string {
	if total <= 0 {
		return fmt.Sprintf("[%s] 0/0", strings.Repeat("·", progressWidth))
	}
	done = min(max(done, 0), total)
	filled := done * progressWidth / total
	pct := done * 100 / total
	return fmt.Sprintf("[%s%s] %d/%d (%d%%)",
		strings.Repeat("█", filled), strings.Repeat("·", progressWidth-filled), done, total, pct)
}

func shouldColorize(writer io.Writer) bool {
	if _, disabled := os.LookupEnv("NO_COLOR"); disabled {
		return false
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
