package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxfile/fluxfile/fileset"
	"github.com/fluxfile/fluxfile/internal/cmdutil"
	"github.com/fluxfile/fluxfile/internal/contextutil"
	"github.com/fluxfile/fluxfile/internal/version"
	"github.com/fluxfile/fluxfile/metrics"
	"github.com/fluxfile/fluxfile/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fluxfile-host", flag.ContinueOnError)
	fs.SetOutput(stderr)

	defaultCompress, _ := cmdutil.EnvBool("FLUXFILE_COMPRESS", false)
	defaultUptime, _ := cmdutil.EnvDuration("FLUXFILE_MAX_UPTIME", 0)

	cfg := session.DefaultHostConfig()
	listen := fs.String("listen", cmdutil.EnvString("FLUXFILE_LISTEN", cfg.ListenAddr), "TCP address to bind")
	root := fs.String("root", cmdutil.EnvString("FLUXFILE_ROOT", "."), "directory to serve")
	passphrase := fs.String("passphrase", cmdutil.EnvString("FLUXFILE_PASSPHRASE", ""), "shared passphrase; empty disables encryption")
	forceCompress := fs.Bool("compress", defaultCompress, "force compression on regardless of client request")
	metricsListen := fs.String("metrics-listen", cmdutil.EnvString("FLUXFILE_METRICS_LISTEN", ""), "optional address to serve Prometheus metrics on")
	maxUptime := fs.Duration("max-uptime", defaultUptime, "stop accepting connections and exit after this long, 0 disables")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String(buildVersion, buildCommit, buildDate))
		return 0
	}

	logger := log.New(stderr, "", log.LstdFlags)

	files, err := fileset.Build(*root)
	if err != nil {
		return reportErr(stderr, &cmdutil.UsageError{Msg: fmt.Sprintf("build file set from %q: %v", *root, err)})
	}

	cfg.ListenAddr = *listen
	cfg.Passphrase = *passphrase
	cfg.ForceCompression = *forceCompress
	cfg.Logger = logger

	if *metricsListen != "" {
		reg, m := metrics.NewRegistry()
		cfg.Metrics = m
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsListen, mux); err != nil {
				logger.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	host, err := session.NewHost(cfg, files)
	if err != nil {
		fmt.Fprintf(stderr, "configure host: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelUptime := contextutil.WithTimeout(ctx, *maxUptime)
	defer cancelUptime()

	if err := host.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(stderr, "host stopped: %v\n", err)
		return 1
	}
	return 0
}

// reportErr prints err to stderr and maps cmdutil usage errors to exit code
// 2, matching how fs.Parse failures are reported.
func reportErr(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "fluxfile-host: %v\n", err)
	if cmdutil.IsUsage(err) {
		return 2
	}
	return 1
}
