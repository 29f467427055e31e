// Command loomctl is the release-readiness CLI: check-release runs
// every hardening check and exits non-zero on failure; write-release-report
// additionally renders the findings to a markdown file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/loomrun/loom/release"
)

func main() {
	jsonOut := flag.Bool("json", false, "print the report as JSON instead of PASS/FAIL text")
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	root := "."
	traceDir, err := os.MkdirTemp("", "loomctl-release-*")
	if err != nil {
		fmt.Fprintln(os.Stderr, "loomctl:", err)
		os.Exit(1)
	}
	defer os.RemoveAll(traceDir)

	switch args[0] {
	case "check-release":
		report := release.Run(root, traceDir)
		printReport(report, *jsonOut)
		if !report.OK {
			os.Exit(1)
		}
	case "write-release-report":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "loomctl: write-release-report requires a path argument")
			os.Exit(2)
		}
		report := release.Run(root, traceDir)
		if err := release.WriteReport(report, args[1]); err != nil {
			fmt.Fprintln(os.Stderr, "loomctl:", err)
			os.Exit(1)
		}
		printReport(report, *jsonOut)
		if !report.OK {
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

// printReport prints either a plain PASS/FAIL summary line per check (the
// default) or the full report as JSON when --json is given.
func printReport(report release.Report, asJSON bool) {
	if asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "loomctl: encode report:", err)
			return
		}
		fmt.Println(string(data))
		return
	}
	overall := "FAIL"
	if report.OK {
		overall = "PASS"
	}
	fmt.Println(overall)
	for _, c := range report.Checks {
		status := "FAIL"
		if c.OK {
			status = "PASS"
		}
		fmt.Printf("  %s: %s\n", status, c.Name)
		for _, f := range c.Failures {
			fmt.Printf("    - %s\n", f)
		}
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: loomctl [--json] check-release | write-release-report <path>")
}
