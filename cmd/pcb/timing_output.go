package main

import (
	"fmt"
	"io"
	"time"

	"pcb/internal/buildpipeline"
)

func printStageTimings(out io.Writer, timings *buildpipeline.Timings) {
	if out == nil || timings == nil {
		return
	}
	for _, stage := range buildpipeline.Stages {
		if timings.Has(stage) {
			fmt.Fprintf(out, "%-8s %.1f ms\n", stage, toMillis(timings.Duration(stage)))
		}
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
