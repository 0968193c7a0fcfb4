package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ASCII logo for the application
const ASCIILogo = `
    ╔═══════════════════════════════════════════════════════════╗
    ║ ██████╗ ███████╗██████╗ ███╗   ██╗ ██████╗ ████████╗███████╗║
    ║ ██╔══██╗██╔════╝██╔══██╗████╗  ██║██╔═══██╗╚══██╔══╝██╔════╝║
    ║ ██████╔╝█████╗  ██║  ██║██╔██╗ ██║██║   ██║   ██║   █████╗  ║
    ║ ██╔══██╗██╔══╝  ██║  ██║██║╚██╗██║██║   ██║   ██║   ██╔══╝  ║
    ║ ██║  ██║███████╗██████╔╝██║ ╚████║╚██████╔╝   ██║   ███████╗║
    ║ ╚═╝  ╚═╝╚══════╝╚═════╝ ╚═╝  ╚═══╝ ╚═════╝    ╚═╝   ╚══════╝║
    ║              NOTE EXTRACTION & INTERACTION TOOL           ║
    ╚═══════════════════════════════════════════════════════════╝
`

var (
	// Out receives everything the Print helpers write.
	Out io.Writer = os.Stdout

	quietMode        bool
	progressOnlyMode bool
	colorEnabled     = term.IsTerminal(int(os.Stdout.Fd()))
)

// SetQuietMode suppresses everything except errors.
func SetQuietMode(quiet bool) { quietMode = quiet }

// SetProgressOnlyMode keeps progress lines, warnings and errors only.
func SetProgressOnlyMode(on bool) { progressOnlyMode = on }

// SetColor overrides terminal detection.
func SetColor(on bool) { colorEnabled = on }

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colorEnabled {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func withDetail(msg string, args []interface{}) string {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		return msg + ": " + fmt.Sprint(args[0])
	}
	return msg
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	if quietMode || progressOnlyMode {
		return
	}
	fmt.Fprint(Out, Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	fmt.Fprintln(Out, Red(withDetail(msg, args)))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if quietMode {
		return
	}
	fmt.Fprintln(Out, Green(msg))
}

// PrintInfo prints a labelled value
func PrintInfo(label string, value string) {
	if quietMode || progressOnlyMode {
		return
	}
	fmt.Fprintf(Out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if quietMode {
		return
	}
	fmt.Fprintln(Out, Yellow(withDetail(msg, args)))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if quietMode || progressOnlyMode {
		return
	}
	fmt.Fprintln(Out, Magenta(msg))
}
