package cli

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/psm/internal/core"
)

// loadCohorts reads both cohort files into o concurrently. The first
// failure is returned; the other slot may still have loaded.
func loadCohorts(ctx context.Context, o *core.Orchestrator, experiment, control string) error {
	g, ctx := errgroup.WithContext(ctx)

	for slot, path := range map[core.Slot]string{
		core.SlotExperiment: experiment,
		core.SlotControl:    control,
	} {
		g.Go(func() error {
			return loadFile(ctx, o, slot, path)
		})
	}
	return g.Wait()
}

func loadFile(ctx context.Context, o *core.Orchestrator, slot core.Slot, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &core.ReadError{Slot: slot, File: path, Err: err}
	}
	defer f.Close()

	return o.Load(ctx, slot, filepath.Base(path), f)
}
