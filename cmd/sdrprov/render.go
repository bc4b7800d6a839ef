// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"sdrprov/internal/install"
	"sdrprov/internal/issue"
	"sdrprov/internal/orchestrator"
	"sdrprov/internal/pkgmgr"
)

const (
	markOK   = "✓"
	markFail = "✗"
	markWarn = "!"
)

// renderSummary prints the end-of-run report.
func renderSummary(w io.Writer, sum *orchestrator.Summary, pathLocation string) {
	var b strings.Builder

	manager := sum.Manager
	if manager == "" {
		manager = "none detected"
	}
	b.WriteString(sectionStyle.Render("Packages") + SubtitleStyle.Render(" ("+manager+")") + "\n")
	if len(sum.Packages) == 0 {
		b.WriteString("  " + SubtitleStyle.Render("skipped") + "\n")
	}
	for _, p := range sum.Packages {
		switch {
		case p.Err != nil:
			line(&b, WarningStyle.Render(markWarn), p.Name, "failed: "+p.Err.Error())
		case p.Result == pkgmgr.Skipped:
			line(&b, SubtitleStyle.Render("-"), p.Name, p.Result.String())
		default:
			line(&b, SuccessStyle.Render(markOK), p.Name, p.Result.String())
		}
	}

	b.WriteString(sectionStyle.Render("Tools") + "\n")
	for _, t := range sum.Tools {
		renderTool(&b, t)
	}

	b.WriteString(sectionStyle.Render("Python") + "\n")
	env := sum.Environment
	switch {
	case env.Ran:
		detail := env.Report.Mode.String()
		if env.Report.Dir != "" {
			detail += " " + PathStyle.Render(env.Report.Dir)
		}
		line(&b, SuccessStyle.Render(markOK), env.Report.Interpreter.Version, detail)
	case env.Err != nil:
		line(&b, WarningStyle.Render(markWarn), "requirements", env.Err.Error())
	}

	if len(sum.PathAdded) > 0 {
		b.WriteString(sectionStyle.Render("PATH") + SubtitleStyle.Render(" ("+pathLocation+")") + "\n")
		for _, dir := range sum.PathAdded {
			b.WriteString("  + " + PathStyle.Render(dir) + "\n")
		}
		b.WriteString("  " + SubtitleStyle.Render("open a new terminal to pick up the change") + "\n")
	}

	b.WriteString("\n")
	if sum.Clean() {
		b.WriteString(SuccessStyle.Render("Provisioning complete") + "\n")
	} else {
		fmt.Fprintf(&b, "%s\n", WarningStyle.Render(fmt.Sprintf("Provisioning finished with %d warning(s)", len(sum.Warnings))))
	}

	_, _ = io.WriteString(w, b.String())
}

func renderTool(b *strings.Builder, t install.Outcome) {
	if t.OK() {
		detail := t.Status.String()
		if len(t.BinDirs) > 0 {
			detail += "  " + PathStyle.Render(strings.Join(t.BinDirs, ", "))
		}
		line(b, SuccessStyle.Render(markOK), t.Tool, detail)
		return
	}

	reason := t.Status.String()
	if t.Err != nil {
		reason = t.Err.Error()
	}
	line(b, ErrorStyle.Render(markFail), t.Tool, reason)
	for _, r := range t.Remediation {
		b.WriteString("      • " + r + "\n")
	}
}

// renderCheck prints the read-only host report.
func renderCheck(w io.Writer, rep orchestrator.CheckReport) {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Host") + "\n")
	switch {
	case rep.Privileged:
		line(&b, SuccessStyle.Render(markOK), "privileges", "administrator")
	case rep.CanElevate:
		line(&b, SuccessStyle.Render(markOK), "privileges", "via sudo")
	default:
		line(&b, ErrorStyle.Render(markFail), "privileges", "insufficient; provisioning will abort")
	}
	if rep.ManagerErr != nil {
		line(&b, WarningStyle.Render(markWarn), "package manager", "none detected")
	} else {
		line(&b, SuccessStyle.Render(markOK), "package manager", rep.Manager)
	}
	if rep.InterpreterErr != nil {
		line(&b, WarningStyle.Render(markWarn), "python", rep.InterpreterErr.Error())
	} else {
		line(&b, SuccessStyle.Render(markOK), "python", rep.Interpreter.String())
	}

	b.WriteString(sectionStyle.Render("Tools") + "\n")
	for _, t := range rep.Tools {
		source := "archive"
		if t.FromSource {
			source = "source"
		}
		if t.Satisfied {
			line(&b, SuccessStyle.Render(markOK), t.Name, "installed")
		} else {
			line(&b, ErrorStyle.Render(markFail), t.Name, "missing "+strings.Join(t.Missing, ", ")+" (from "+source+")")
		}
	}

	b.WriteString("\n")
	if rep.Ready() {
		b.WriteString(SuccessStyle.Render("Nothing to install") + "\n")
	} else {
		b.WriteString(SubtitleStyle.Render("Run sdrprov to install what is missing") + "\n")
	}
	_, _ = io.WriteString(w, b.String())
}

// renderFatal prints err, and the long-form catalog entry when one is
// linked. An empty colorScheme lets glamour pick from the terminal.
func renderFatal(w io.Writer, err error, verbose bool, colorScheme string) {
	fmt.Fprintln(w, ErrorStyle.Render(markFail+" ")+formatErrorForDisplay(err, verbose))

	is := issue.IssueOf(err)
	if is == nil {
		return
	}
	if colorScheme == "" {
		colorScheme = "auto"
	}
	if md, rerr := is.Render(colorScheme); rerr == nil {
		fmt.Fprint(w, md)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

func line(b *strings.Builder, mark, name, detail string) {
	b.WriteString("  " + mark + " " + nameStyle.Render(name) + detail + "\n")
}
