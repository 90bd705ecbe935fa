package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

const (
	colorRed    = color.FgRed
	colorGreen  = color.FgGreen
	colorYellow = color.FgYellow
	colorBlue   = color.FgBlue
	colorCyan   = color.FgCyan
	colorDim    = color.Faint
	colorBold   = color.Bold
)

func colorize(attr color.Attribute, text string) string {
	c := color.New(attr)
	if noColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c.Sprint(text)
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

func printStep(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, colorize(colorCyan, "→ "+fmt.Sprintf(format, args...)))
}
