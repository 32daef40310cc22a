package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remedyops/remedy/internal/config"
	"github.com/remedyops/remedy/internal/logging"
)

var checkOnceCmd = &cobra.Command{
	Use:   "check-once",
	Short: "Run one detection sweep and exit",
	Long:  `Collects readings from the --metrics file, opens incidents for services past the deviation threshold, and exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			if metricsFile == "" {
				return fmt.Errorf("check-once requires --metrics")
			}
			created, err := rt.monitor.CheckOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Detected %d incident(s)\n", len(created))
			for _, inc := range created {
				fmt.Printf("  %s  %-8s  %s\n", inc.ID, inc.Severity, inc.Title)
			}
			return nil
		})
	},
}

var generateOnceCmd = &cobra.Command{
	Use:   "generate-once",
	Short: "Run one analysis pass over detected incidents and exit",
	Long:  `Generates hypotheses and proposed remediations for every detected incident, pages on-call, and exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			processed, err := rt.monitor.GenerateOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Analyzed %d incident(s)\n", processed)
			return nil
		})
	},
}

// withRuntime loads config, wires the service graph without the HTTP
// surface, runs fn, and tears down.
func withRuntime(fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "remedy",
	})

	ctx := context.Background()
	rt, err := buildRuntime(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	return fn(ctx, rt)
}
