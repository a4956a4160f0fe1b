// pulsecheck drives a real browser through a scripted user journey and
// reports one pass/fail result, with screenshots at checkpoints and at the
// point of failure.
//
// Usage:
//
//	pulsecheck -scenario student-benchmark -base-url http://localhost:3000
//	pulsecheck -file scenarios/learn-top.yaml -out ./verification -s3
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/kuitang/pulsecheck/internal/browser"
	"github.com/kuitang/pulsecheck/internal/capture"
	"github.com/kuitang/pulsecheck/internal/config"
	"github.com/kuitang/pulsecheck/internal/errs"
	"github.com/kuitang/pulsecheck/internal/interact"
	"github.com/kuitang/pulsecheck/internal/journeys"
	"github.com/kuitang/pulsecheck/internal/obs"
	"github.com/kuitang/pulsecheck/internal/s3client"
	"github.com/kuitang/pulsecheck/internal/scenario"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, scenario.Browser)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, acquire func(browser.Config) scenario.AcquireFunc) int {
	flags, err := config.ParseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "\nbuilt-in scenarios: %s\n", strings.Join(journeys.Names(), ", "))
			return errs.ExitOK
		}
		return errs.ExitConfig
	}
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return errs.ExitConfig
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	obs.InitWithLevel(level)
	log := obs.Pkg("main")
	cfg.PrintStartupSummary()

	now := time.Now()
	sc, err := selectScenario(cfg, scenario.Vars{
		BaseURL:   cfg.BaseURL,
		Email:     journeys.UniqueEmail(now),
		Password:  cfg.Password,
		Timestamp: now.Unix(),
	})
	if err != nil {
		log.Error("scenario selection failed", "error", err)
		fmt.Fprintln(stderr, err)
		return errs.ExitCode(errs.CodeOf(err))
	}

	runID := uuid.NewString()
	sink, mirror, err := buildSink(ctx, cfg, runID)
	if err != nil {
		log.Error("artifact sink setup failed", "error", err)
		fmt.Fprintln(stderr, err)
		return errs.ExitConfig
	}

	runner := scenario.NewRunner(
		acquire(browser.Config{
			Browser:        cfg.Browser,
			Headless:       cfg.Headless,
			ViewportWidth:  cfg.ViewportWidth,
			ViewportHeight: cfg.ViewportHeight,
			Permissions:    cfg.Permissions,
			ActionTimeout:  cfg.ActionTimeout,
			NavTimeout:     cfg.NavTimeout,
			BaseURL:        sc.BaseURL,
			Install:        cfg.InstallBrowsers,
			TagRequests:    cfg.TagRequests,
		}),
		sink,
		scenario.Options{
			Interact: interact.Options{ActionTimeout: cfg.ActionTimeout, NavTimeout: cfg.NavTimeout},
			Trace:    stdout,
			Color:    stdout == os.Stdout && !color.NoColor,
			NewRunID: func() string { return runID },
		},
	)
	res := runner.Run(ctx, sc)
	if mirror != nil {
		reportMirror(ctx, log, mirror)
	}
	return res.ExitCode()
}

// selectScenario loads the YAML file when given, else builds the named
// built-in journey.
func selectScenario(cfg *config.Config, vars scenario.Vars) (scenario.Scenario, error) {
	if cfg.ScenarioFile != "" {
		return scenario.Load(cfg.ScenarioFile, vars)
	}
	if cfg.Scenario == "" {
		return scenario.Scenario{}, errs.New(errs.InvalidArgument,
			fmt.Sprintf("pass -scenario (%s) or -file", strings.Join(journeys.Names(), ", ")))
	}
	build, ok := journeys.Lookup(cfg.Scenario)
	if !ok {
		return scenario.Scenario{}, errs.New(errs.InvalidArgument,
			fmt.Sprintf("unknown scenario %q (available: %s)", cfg.Scenario, strings.Join(journeys.Names(), ", ")))
	}
	labels := journeys.DefaultLabels()
	if cfg.LabelsFile != "" {
		var err error
		if labels, err = journeys.LoadLabels(cfg.LabelsFile); err != nil {
			return scenario.Scenario{}, err
		}
	}
	return build(journeys.Params{
		BaseURL:  vars.BaseURL,
		Email:    vars.Email,
		Password: vars.Password,
		Labels:   labels,
	}), nil
}

// buildSink writes to the output directory and, when enabled, mirrors to S3
// under "<prefix>/<run-id>/". The mirror is nil when S3 is off.
func buildSink(ctx context.Context, cfg *config.Config, runID string) (capture.Sink, *capture.S3Sink, error) {
	local := capture.NewOSDirSink(cfg.OutputDir)
	if !cfg.UploadS3 {
		return local, nil, nil
	}
	client, err := s3client.New(ctx, s3client.Config{
		Endpoint:        cfg.AWSEndpointS3,
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		BucketName:      cfg.AWSBucketName,
		PublicURL:       cfg.S3PublicURL,
		PublicRead:      cfg.S3PublicRead,
		UsePathStyle:    cfg.AWSEndpointS3 != "",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	mirror := capture.NewS3Sink(client, path.Join(cfg.S3Prefix, runID))
	return capture.MultiSink{local, mirror}, mirror, nil
}

// reportMirror logs what actually landed in the bucket for this run.
func reportMirror(ctx context.Context, log *slog.Logger, mirror *capture.S3Sink) {
	keys, err := mirror.Keys(ctx)
	if err != nil {
		log.Warn("could not list mirrored artifacts", "error", err)
		return
	}
	log.Info("artifacts mirrored", "count", len(keys), "keys", keys)
}
