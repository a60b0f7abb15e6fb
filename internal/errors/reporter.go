package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Reporter formats verifier violations for terminal output.
type Reporter struct {
	packageName string
}

// NewReporter creates a reporter for one package's diagnostics.
func NewReporter(packageName string) *Reporter {
	return &Reporter{packageName: packageName}
}

// FormatViolation formats a single violation with colored, rustc-like styling
func (r *Reporter) FormatViolation(v Violation) string {
	var result strings.Builder

	levelColor := r.getLevelColor(v.Level)
	dim := color.New(color.Faint).SprintFunc()

	// Header: error[V0040]: message
	if v.Code != "" {
		result.WriteString(fmt.Sprintf("%s[%s]: %s\n",
			levelColor(string(v.Level)), v.Code, v.Message))
	} else {
		result.WriteString(fmt.Sprintf("%s: %s\n",
			levelColor(string(v.Level)), v.Message))
	}

	// Location line: --> package/@func:block
	site := v.Site
	if site.Package == "" {
		site.Package = r.packageName
	}
	result.WriteString(fmt.Sprintf("  %s %s\n", dim("-->"), site))

	if v.Rule != "" {
		result.WriteString(fmt.Sprintf("  %s rule: %s\n", dim("│"), v.Rule))
	}
	for _, note := range v.Notes {
		noteColor := color.New(color.FgBlue).SprintFunc()
		result.WriteString(fmt.Sprintf("  %s %s %s\n", dim("│"), noteColor("note:"), note))
	}

	result.WriteString("\n")
	return result.String()
}

// FormatAll formats a violation set, grouped by function and ordered
// deterministically, with a closing summary line.
func (r *Reporter) FormatAll(violations []Violation) string {
	sorted := make([]Violation, len(violations))
	copy(sorted, violations)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Site.Function != sorted[j].Site.Function {
			return sorted[i].Site.Function < sorted[j].Site.Function
		}
		return sorted[i].Code < sorted[j].Code
	})

	var result strings.Builder
	for _, v := range sorted {
		result.WriteString(r.FormatViolation(v))
	}
	result.WriteString(r.Summary(len(violations)))
	return result.String()
}

// Summary renders the closing line for a verifier run.
func (r *Reporter) Summary(count int) string {
	if count == 0 {
		green := color.New(color.FgGreen, color.Bold).SprintFunc()
		return fmt.Sprintf("%s: package %s passes all verifier rules\n", green("ok"), r.packageName)
	}
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	plural := "violations"
	if count == 1 {
		plural = "violation"
	}
	return fmt.Sprintf("%s: package %s has %d %s\n", red("failed"), r.packageName, count, plural)
}

// getLevelColor returns the appropriate color function for a level
func (r *Reporter) getLevelColor(level Level) func(...interface{}) string {
	switch level {
	case Error:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case Note:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}
