package release

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
)

// RenderMarkdown formats a Report as a release-readiness markdown
// document: a PASS/FAIL summary list followed by per-check detail.
func RenderMarkdown(report Report) string {
	var b strings.Builder
	b.WriteString("# Release Readiness Report\n\n")
	fmt.Fprintf(&b, "- Overall: %s\n", passFail(report.OK))
	for _, c := range report.Checks {
		fmt.Fprintf(&b, "- %s: %s\n", titleize(c.Name), passFail(c.OK))
	}
	b.WriteString("\n## Check Detail\n\n")
	for _, c := range report.Checks {
		fmt.Fprintf(&b, "### %s\n\n", titleize(c.Name))
		if len(c.Detail) > 0 {
			for k, v := range c.Detail {
				fmt.Fprintf(&b, "- %s: %v\n", k, v)
			}
		}
		if len(c.Failures) == 0 {
			b.WriteString("- no failures\n")
		} else {
			for _, f := range c.Failures {
				fmt.Fprintf(&b, "- FAIL: %s\n", f)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// WriteReport renders report to path as markdown, verifying the output
// parses as well-formed markdown (rendering it to HTML with goldmark and
// discarding the result) before the write is considered successful —
// a cheap sanity check that the generated document isn't malformed.
func WriteReport(report Report, path string) error {
	md := RenderMarkdown(report)

	var htmlBuf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &htmlBuf); err != nil {
		return fmt.Errorf("release: generated report failed markdown rendering: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("release: create report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return fmt.Errorf("release: write report: %w", err)
	}
	return nil
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func titleize(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
