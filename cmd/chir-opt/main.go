// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	"chir/internal/chir"
	"chir/internal/chirtext"
	"chir/internal/pipeline"
)

func main() {
	verbose := false
	args := make([]string, 0, len(os.Args)-1)
	for _, arg := range os.Args[1:] {
		if arg == "-v" || arg == "--verbose" {
			verbose = true
			continue
		}
		args = append(args, arg)
	}
	if len(args) < 1 {
		fmt.Println("Usage: chir-opt [-v] <file.chir>")
		os.Exit(1)
	}

	// 0 = info level; verbose raises it to debug
	level := 0
	if verbose {
		level = 1
	}
	commonlog.Configure(level, nil)

	startTime := time.Now()
	path := args[0]

	pkg, err := chirtext.ParseFile(path)
	if err != nil {
		color.Red("Failed after %s", formatDuration(time.Since(startTime)))
		os.Exit(1)
	}

	if err := pipeline.New().Run(pkg); err != nil {
		if verr, ok := err.(*pipeline.VerificationError); ok {
			fmt.Print(verr.Report())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		color.Red("Failed after %s", formatDuration(time.Since(startTime)))
		os.Exit(1)
	}

	fmt.Print(chir.Print(pkg))
	color.Green("Successfully processed %s in %s", path, formatDuration(time.Since(startTime)))
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.2fmin", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}
