package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxfile/fluxfile/internal/cmdutil"
	"github.com/fluxfile/fluxfile/internal/contextutil"
	"github.com/fluxfile/fluxfile/internal/version"
	"github.com/fluxfile/fluxfile/progress"
	"github.com/fluxfile/fluxfile/session"
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
	fs := flag.NewFlagSet("fluxfile-client", flag.ContinueOnError)
	fs.SetOutput(stderr)

	defaultCompress, _ := cmdutil.EnvBool("FLUXFILE_COMPRESS", false)
	defaultOverwrite, _ := cmdutil.EnvBool("FLUXFILE_OVERWRITE", true)
	defaultJSON, _ := cmdutil.EnvBool("FLUXFILE_JSON", false)
	defaultTimeout, _ := cmdutil.EnvDuration("FLUXFILE_TIMEOUT", 0)

	cfg := session.DefaultClientConfig()
	server := fs.String("server", cmdutil.EnvString("FLUXFILE_SERVER", ""), "host address to dial, host:port")
	dest := fs.String("dest", cmdutil.EnvString("FLUXFILE_DEST", "."), "destination directory")
	passphrase := fs.String("passphrase", cmdutil.EnvString("FLUXFILE_PASSPHRASE", ""), "shared passphrase; empty disables encryption")
	wantCompress := fs.Bool("compress", defaultCompress, "request compression from the host")
	overwrite := fs.Bool("overwrite", defaultOverwrite, "allow clobbering a file already present at the destination; set -overwrite=false to refuse")
	quiet := fs.Bool("quiet", false, "suppress per-file progress output")
	jsonOut := fs.Bool("json", defaultJSON, "emit progress as newline-delimited JSON instead of text")
	timeout := fs.Duration("timeout", defaultTimeout, "overall deadline for the whole transfer, 0 disables")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String(buildVersion, buildCommit, buildDate))
		return 0
	}
	if *server == "" {
		return reportErr(stderr, &cmdutil.UsageError{Msg: "fluxfile-client: -server is required"})
	}

	logger := log.New(stderr, "", log.LstdFlags)

	cfg.ServerAddr = *server
	cfg.DestRoot = *dest
	cfg.Passphrase = *passphrase
	cfg.WantCompression = *wantCompress
	cfg.Overwrite = *overwrite
	cfg.Logger = logger

	if !*quiet {
		var sink progress.Sink
		if *jsonOut {
			sink = jsonSink{out: stdout}
		} else {
			sink = consoleSink{out: stdout}
		}
		cfg.Progress = progress.NewDispatcher(sink)
		defer cfg.Progress.Close()
	}

	client, err := session.NewClient(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "configure client: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := contextutil.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	if err := client.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "transfer failed: %v\n", err)
		return 1
	}
	return 0
}

// reportErr prints err to stderr and maps cmdutil usage errors to exit code
// 2, matching how fs.Parse failures are reported.
func reportErr(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "fluxfile-client: %v\n", err)
	if cmdutil.IsUsage(err) {
		return 2
	}
	return 1
}

// consoleSink renders progress events as single lines to an io.Writer; it
// never blocks the session goroutine since progress.Dispatcher drops events
// rather than waiting on a full channel.
type consoleSink struct {
	out io.Writer
}

func (s consoleSink) Progress(ev progress.Event) {
	switch ev.Kind {
	case progress.EventHandshakeAck:
		fmt.Fprintf(s.out, "session established: %d bytes advertised, compression=%v\n", ev.AdvertisedTotalBytes, ev.CompressionOn)
	case progress.EventFileStarted:
		fmt.Fprintf(s.out, "receiving %s (%d bytes)\n", ev.Path, ev.Size)
	case progress.EventFileFinished:
		if ev.Matched {
			fmt.Fprintf(s.out, "  ok\n")
		} else {
			fmt.Fprintf(s.out, "  digest mismatch, retrying\n")
		}
	case progress.EventCompleted:
		fmt.Fprintf(s.out, "transfer complete in %s\n", ev.Duration)
	}
}

// jsonSink renders each progress event as one JSON object per line, for
// callers scripting against the client instead of reading a human terminal.
type jsonSink struct {
	out io.Writer
}

func (s jsonSink) Progress(ev progress.Event) {
	_ = cmdutil.WriteJSON(s.out, jsonEvent{
		Kind:                 ev.Kind.String(),
		Path:                 ev.Path,
		Size:                 ev.Size,
		Matched:              ev.Matched,
		AdvertisedTotalBytes: ev.AdvertisedTotalBytes,
		CompressionOn:        ev.CompressionOn,
		DurationMS:           ev.Duration.Milliseconds(),
	}, false)
}

type jsonEvent struct {
	Kind                 string `json:"kind"`
	Path                 string `json:"path,omitempty"`
	Size                 uint64 `json:"size,omitempty"`
	Matched              bool   `json:"matched,omitempty"`
	AdvertisedTotalBytes uint64 `json:"advertised_total_bytes,omitempty"`
	CompressionOn        bool   `json:"compression_on,omitempty"`
	DurationMS           int64  `json:"duration_ms,omitempty"`
}
