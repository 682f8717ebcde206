// Package main runs the study space administration CLI.
package main

import (
	"fmt"
	"os"

	"github.com/louisbranch/study.space/internal/cmd/studyctl"
)

func main() {
	if err := studyctl.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "studyctl:", err)
		os.Exit(1)
	}
}
