// Command pubship reads newline-delimited payloads from stdin and
// publishes them to a Google Cloud Pub/Sub topic in batches.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/pubship"
	"github.com/bft-labs/pubship/internal/config"
	"github.com/bft-labs/pubship/pkg/log"
	"github.com/bft-labs/pubship/plugins/configwatcher"
)

const helpDescription = `
Batch and publish stdin lines to a Google Cloud Pub/Sub topic.

Each line becomes one message. Messages are grouped into batches bounded
by byte size, message count, and delay, and each batch goes out in a
single Publish call. Transient failures are retried with exponential
backoff; SIGINT/SIGTERM drains pending batches before exiting.
`

var exampleUsage = strings.TrimSpace(`
  tail -f app.log | pubship --project my-project --topic app-events
  pubship --config /etc/pubship/config.toml < payloads.ndjson
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := config.DefaultConfig()
	var cfgPath string

	logger := log.NewZerologConsole()

	root := &cobra.Command{
		Use:     "pubship",
		Short:   "Batch and publish stdin lines to a Pub/Sub topic",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.pubship/config.toml),
			// then env, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = config.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && config.FileExists(cfgFile) {
				fc, err := config.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := config.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := config.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			opts := []pubship.Option{pubship.WithLogger(logger)}
			if cfgFile != "" && config.FileExists(cfgFile) {
				opts = append(opts, configwatcher.WithDefaultConfigWatcher(cfgFile))
			}

			pub, err := pubship.New(cfg, opts...)
			if err != nil {
				return fmt.Errorf("create publisher: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := pub.Start(ctx); err != nil {
				return fmt.Errorf("start publisher: %w", err)
			}

			if cfg.MetricsAddr != "" {
				go serveMetrics(cfg.MetricsAddr, pub, logger)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			// Feed stdin lines into the publisher until EOF or signal.
			lines := make(chan []byte)
			readErr := make(chan error, 1)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(os.Stdin)
				scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
				for scanner.Scan() {
					line := make([]byte, len(scanner.Bytes()))
					copy(line, scanner.Bytes())
					select {
					case lines <- line:
					case <-ctx.Done():
						return
					}
				}
				readErr <- scanner.Err()
			}()

		loop:
			for {
				select {
				case <-sigCh:
					logger.Info("received signal, draining...")
					break loop
				case line, ok := <-lines:
					if !ok {
						if err := <-readErr; err != nil {
							logger.Error("stdin read failed", log.Err(err))
						}
						break loop
					}
					if err := pub.Publish(line, nil); err != nil {
						return fmt.Errorf("publish: %w", err)
					}
				}
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := pub.Shutdown(shutdownCtx); err != nil {
				var dropped *pubship.DroppedError
				if errors.As(err, &dropped) {
					logger.Warn("drained with losses", log.Int("dropped", dropped.Messages))
					return err
				}
				return fmt.Errorf("shutdown: %w", err)
			}
			logger.Info("drained cleanly")
			return nil
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.pubship/config.toml)")
	root.Flags().StringVar(&cfg.ProjectID, "project", cfg.ProjectID, "Google Cloud project ID")
	root.Flags().StringVar(&cfg.TopicID, "topic", cfg.TopicID, "destination Pub/Sub topic ID")
	root.Flags().StringVar(&cfg.CredentialsFile, "credentials", cfg.CredentialsFile, "path to a service account key file (default: application default credentials)")

	root.Flags().IntVar(&cfg.MaxBytes, "max-bytes", cfg.MaxBytes, "maximum serialized bytes per batch")
	root.Flags().IntVar(&cfg.MaxCount, "max-count", cfg.MaxCount, "maximum messages per batch")
	root.Flags().DurationVar(&cfg.MaxDelay, "max-delay", cfg.MaxDelay, "maximum time a message waits in a batch")

	root.Flags().IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "send attempts per batch before dropping it")
	root.Flags().DurationVar(&cfg.BackoffInitial, "backoff-initial", cfg.BackoffInitial, "initial retry backoff")
	root.Flags().DurationVar(&cfg.BackoffMax, "backoff-max", cfg.BackoffMax, "retry backoff ceiling")

	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (e.g. :9090)")

	if err := root.Execute(); err != nil {
		logger.Error("pubship", log.Err(err))
		os.Exit(1)
	}
}

func serveMetrics(addr string, pub *pubship.Publisher, logger log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", pub.MetricsHandler())

	logger.Info("serving metrics", log.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", log.Err(err))
	}
}
