package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"graphload/internal/config"
	"graphload/internal/logging"

	// register all store backends with the graph factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "graphload/internal/graph/all"
)

// main is the entry point for the graphload binary. It loads the import
// config, sets up logging and metrics, and runs the import.
func main() {
	var (
		cfgPath           string
		dataDir           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		statsdAddrFlg     string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/import.yaml", "import config path (.json, .yaml, .yml or .toml)")
	flag.StringVar(&dataDir, "data", "", "input directory (overrides source.file.path and forces the file source)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (prometheus, datadog, none); overrides metrics.backend")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides metrics.pushgateway_url and env PUSHGATEWAY_URL)")
	flag.StringVar(&statsdAddrFlg, "statsd-addr", "", "DogStatsD address (overrides metrics.statsd_addr and env DD_DOGSTATSD_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable debug logs")

	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	if dataDir != "" {
		cfg.Source.Kind = "file"
		cfg.Source.File.Path = dataDir
	}
	// Decide metrics settings: flag → env → document.
	if metricsBackendFlg != "" {
		cfg.Metrics.Backend = metricsBackendFlg
	}
	cfg.Metrics.PushgatewayURL = firstNonEmpty(pushGatewayURLFlg, os.Getenv("PUSHGATEWAY_URL"), cfg.Metrics.PushgatewayURL)
	cfg.Metrics.StatsdAddr = firstNonEmpty(statsdAddrFlg, os.Getenv("DD_DOGSTATSD_URL"), cfg.Metrics.StatsdAddr)
	if *verbose {
		cfg.Log.Level = "debug"
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fatalf("configuration is invalid: %s", cfgPath)
	}
	if validate {
		fmt.Fprintf(os.Stderr, "configuration is valid: %s\n", cfgPath)
		os.Exit(0)
	}

	log, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fatalf("logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	rep, err := runImport(ctx, cfg, log)
	printReport(os.Stdout, rep)
	if err != nil {
		log.Errorw("import aborted", "error", err)
		stop()
		_ = log.Sync()
		os.Exit(1)
	}
	if rep.Err != nil {
		log.Errorw("import finished with failures", "failed_files", len(rep.Failed()), "elapsed", time.Since(start).Truncate(time.Millisecond))
		stop()
		_ = log.Sync()
		os.Exit(2)
	}
	log.Infow("import completed", "elapsed", time.Since(start).Truncate(time.Millisecond))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
