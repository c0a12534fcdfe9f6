package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"pcb/internal/buildpipeline"
	"pcb/internal/ui"
)

type buildOutcome struct {
	result buildpipeline.Result
	err    error
}

func runBuildWithUI(ctx context.Context, title string, req *buildpipeline.Request) (buildpipeline.Result, error) {
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan buildOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = buildpipeline.ChannelSink{Ch: events}
		res, err := buildpipeline.Build(ctx, &reqCopy)
		outcomeCh <- buildOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, req.Files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
