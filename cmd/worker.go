package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cv-shortlist/domain"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the analysis scheduler without the REST API",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)
	if err := startWorker(ctx, g, a); err != nil {
		return err
	}
	return g.Wait()
}

// startWorker runs the scheduler in g. With an event bus configured, analysis requests
// wake the scheduler instead of waiting for the next poll.
func startWorker(ctx context.Context, g *errgroup.Group, a *app) error {
	scheduler, err := a.scheduler(ctx)
	if err != nil {
		return err
	}
	g.Go(func() error { return scheduler.Run(ctx) })

	if a.rabbit == nil {
		return nil
	}
	g.Go(func() error {
		err := a.rabbit.ConsumeAnalysisRequests(ctx, a.cfg.RabbitMQQueue, func(event domain.JobOpeningEvent) {
			a.log.WithField("job_opening_id", event.JobOpeningID).Debug("analysis requested")
			scheduler.Wake()
		})
		if err != nil {
			// Polling still picks up submitted job openings.
			a.log.WithError(err).Warn("stopped consuming analysis requests")
		}
		return nil
	})
	return nil
}
