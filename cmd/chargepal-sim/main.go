package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chargepal/chargepald/pkg/client"
	"github.com/chargepal/chargepald/pkg/log"
	"github.com/chargepal/chargepald/pkg/types"
)

var (
	serverAddr       = flag.String("server", "localhost:50059", "Controller RPC address")
	robotCount       = flag.Int("robots", 1, "Number of simulated robots, named ChargePal1..N")
	pollInterval     = flag.Duration("poll-interval", time.Second, "Pause between job fetches")
	operationTime    = flag.Duration("operation-time", 2*time.Second, "Simulated transport time per job")
	handshakeTimeout = flag.Duration("handshake-timeout", 90*time.Second, "Give up plugging in after this long")
	failEvery        = flag.Int("fail-every", 0, "Report every Nth job as failed (0 = never)")
	logLevel         = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()
	log.Init(log.Config{Level: log.Level(*logLevel)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("Stopping simulated robots")
		cancel()
	}()

	var wg sync.WaitGroup
	for i := 1; i <= *robotCount; i++ {
		name := fmt.Sprintf("ChargePal%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runRobot(ctx, name)
		}()
	}
	wg.Wait()
}

// runRobot drives one robot: fetch a job, pretend to drive, run the
// plug-in handshake for charger deliveries, report the outcome. The
// connection is re-dialed after errors so a controller restart only
// costs one poll interval.
func runRobot(ctx context.Context, name string) {
	logger := log.WithRobot(name)
	var conn *client.Client
	defer func() {
		if conn != nil {
			_ = conn.Close()
		}
	}()

	jobs := 0
	for {
		if sleepCtx(ctx, *pollInterval) {
			return
		}

		if conn == nil {
			c, err := client.NewClient(*serverAddr)
			if err != nil {
				logger.Warn().Err(err).Str("server", *serverAddr).Msg("Controller unreachable")
				continue
			}
			conn = c
			logger.Info().Str("server", *serverAddr).Msg("Connected to controller")
		}

		job, err := conn.FetchJob(name)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to fetch job")
			_ = conn.Close()
			conn = nil
			continue
		}
		if job.JobType == "" {
			continue
		}

		jobs++
		if err := workJob(ctx, conn, name, job, jobs); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Uint64("job_id", job.JobID).Msg("Job aborted")
			_ = conn.Close()
			conn = nil
		}
	}
}

// workJob simulates one transport and reports its outcome
func workJob(ctx context.Context, conn *client.Client, name string, job types.JobDetails, count int) error {
	logger := log.WithRobot(name)
	logger.Info().
		Uint64("job_id", job.JobID).
		Str("type", job.JobType).
		Str("cart", job.Cart).
		Str("source", job.SourceStation).
		Str("target", job.TargetStation).
		Msg("Job received")

	if job.Cart != "" {
		if estimate, err := conn.OperationTime(job.Cart); err == nil {
			logger.Debug().Dur("estimate", estimate).Msg("Controller operation estimate")
		}
	}

	if sleepCtx(ctx, *operationTime) {
		return ctx.Err()
	}

	status := string(types.JobUpdateSuccess)
	if *failEvery > 0 && count%*failEvery == 0 {
		status = string(types.JobUpdateFailure)
	} else if job.JobType == string(types.JobTypeBringCharger) {
		_ = conn.LogText(name, fmt.Sprintf("%s: arrived at %s", name, job.TargetStation))
		if !plugIn(ctx, conn, name) {
			status = string(types.JobUpdateFailure)
		}
	}

	confirmed, err := conn.UpdateJobMonitor(name, job.JobType, status)
	if err != nil {
		return fmt.Errorf("failed to report job: %w", err)
	}
	if !confirmed {
		logger.Warn().Uint64("job_id", job.JobID).Msg("Controller rejected the job report")
	}
	logger.Info().Uint64("job_id", job.JobID).Str("status", status).Msg("Job finished")
	return nil
}

// plugIn polls the handshake endpoint until the vehicle side confirms.
// A timeout is reported like any failed delivery; the controller resets
// the booking and schedules a fresh attempt.
func plugIn(ctx context.Context, conn *client.Client, name string) bool {
	logger := log.WithRobot(name)
	deadline := time.Now().Add(*handshakeTimeout)
	for time.Now().Before(deadline) {
		ready, err := conn.Ready2PlugInADS(name)
		if err != nil {
			logger.Warn().Err(err).Msg("Handshake call failed")
			return false
		}
		if ready {
			logger.Info().Msg("Plugging in")
			return true
		}
		if sleepCtx(ctx, *pollInterval) {
			return false
		}
	}
	logger.Warn().Dur("timeout", *handshakeTimeout).Msg("Handshake timed out")
	return false
}

// sleepCtx pauses for d, reporting whether ctx ended first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
