package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/jward/tscache"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("green"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text", "yaml"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, ", "))
}

// outputResult writes result to stdout in the selected format.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, flagFormat, result)
}

func writeResult(w io.Writer, format string, result CLIResult) error {
	switch format {
	case "text":
		return writeText(w, result.Results)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		return err
	}
	_ = writeResult(os.Stdout, flagFormat, CLIResult{Command: command, Error: err.Error()})
	return err
}

// writeText dispatches to the text formatter for the result type.
func writeText(w io.Writer, v any) error {
	switch r := v.(type) {
	case *tscache.RefreshSummary:
		formatRefreshText(w, r)
	case []CLISymbol:
		formatSymbolsText(w, r)
	case CLIDiagnostics:
		formatDiagnosticsText(w, r)
	case []*tscache.TestFile:
		formatTestFilesText(w, r)
	case []*tscache.RefreshRun:
		formatRunsText(w, r)
	case string:
		fmt.Fprintln(w, r)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

func formatRefreshText(w io.Writer, s *tscache.RefreshSummary) {
	status := okStyle.Render("up to date")
	if s.Changed() {
		status = headerStyle.Render("refreshed")
	}
	fmt.Fprintf(w, "%s in %s: %d added, %d updated, %d removed, %d hits (%d early), %d misses\n",
		status, s.Duration.Round(time.Millisecond),
		s.Added, s.Updated, s.Removed, s.CacheHits, s.EarlyCacheHits, s.CacheMisses)
	if len(s.Affected) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Affected:"))
		for _, fqn := range s.Affected {
			fmt.Fprintf(w, "  %s\n", fqn)
		}
	}
	for _, e := range s.Errors {
		fmt.Fprintln(w, errorStyle.Render(e.Error()))
	}
}

func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSCOPE\tFILE\tLINE\tDEPTH\tREQUIRED BY")
	for _, s := range syms {
		depth := "-"
		if s.Depth != nil {
			depth = fmt.Sprint(*s.Depth)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			s.Name, s.Kind, s.Scope, s.File, s.StartLine, depth, s.RequiredBy)
	}
	tw.Flush()
}

func formatDiagnosticsText(w io.Writer, d CLIDiagnostics) {
	if d.Files != nil {
		for _, f := range d.Files {
			fmt.Fprintln(w, f)
		}
		return
	}
	r := d.Report
	for _, diag := range r.Errors {
		fmt.Fprintf(w, "%s %s\n", errorStyle.Render(diagPrefix(diag)), diag.Message)
	}
	for _, diag := range r.Warnings {
		fmt.Fprintf(w, "%s %s\n", warningStyle.Render(diagPrefix(diag)), diag.Message)
	}
	summary := fmt.Sprintf("%d file(s): %d error(s) in %d file(s), %d warning(s) in %d file(s)",
		r.FileCount, r.ErrorCount, len(r.ErrorFiles), r.WarningCount, len(r.WarningFiles))
	if r.ErrorCount > 0 {
		fmt.Fprintln(w, errorStyle.Render(summary))
	} else {
		fmt.Fprintln(w, okStyle.Render(summary))
	}
}

func diagPrefix(d tscache.Diagnostic) string {
	return fmt.Sprintf("%s:%d:%d TS%d", d.SourceFilepath, d.Location.LineNumber, d.Location.Column, d.Code)
}

func formatTestFilesText(w io.Writer, files []*tscache.TestFile) {
	for _, tf := range files {
		title := tf.Filepath
		switch {
		case tf.VerySlow():
			title += " " + errorStyle.Render("(very slow)")
		case tf.Slow():
			title += " " + warningStyle.Render("(slow)")
		}
		fmt.Fprintln(w, headerStyle.Render(title))
		for _, r := range tf.AllBlocks() {
			formatRegionText(w, r, 1)
		}
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  %d test(s), %d skipped, %d line(s), %s",
			tf.Tests, tf.SkippedTests, tf.TestLines, tf.Duration.Round(time.Millisecond))))
	}
}

func formatRegionText(w io.Writer, r *tscache.Region, depth int) {
	indent := strings.Repeat("  ", depth)
	label := fmt.Sprintf("%s%s %q [%d-%d]", indent, r.Kind, r.Description, r.StartLine, r.EndLine)
	if r.Skip {
		label = mutedStyle.Render(label + " skipped")
	}
	fmt.Fprintln(w, label)
	for _, d := range r.Diagnostics {
		fmt.Fprintf(w, "%s  %s %s\n", indent, errorStyle.Render(diagPrefix(d)), d.Message)
	}
	for _, c := range r.Children {
		formatRegionText(w, c, depth+1)
	}
}

func formatRunsText(w io.Writer, runs []*tscache.RefreshRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tADDED\tUPDATED\tREMOVED\tHITS\tMISSES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Duration.Round(time.Millisecond),
			r.Added, r.Updated, r.Removed, r.CacheHits, r.CacheMisses)
	}
	tw.Flush()
}
