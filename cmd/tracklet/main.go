// Package main provides the tracklet CLI: build a candidate graph from
// detections, solve it, and archive the resulting tracks.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
