package testevents

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Aygren/balendip-sub000/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	logFilePermission  = 0o600
	defaultNumEvents   = 1000
	defaultTestTimeout = 10 * time.Minute
)

// SetupLogging configures logging to stdout and, when logFile is set, to
// that file as well.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
		closer = file
	}
	if err := logger.InitWriter(w); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closer, nil
}

// RunFunc executes a configured test.
type RunFunc func(ctx context.Context, cfg *Config) (*Stats, error)

// NewCommand builds the test-events root command around run.
func NewCommand(run RunFunc) *cobra.Command {
	cfg := &Config{}
	var (
		end         string
		testTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "test-events",
		Short: "Load and consistency test for the balendip API",
		Long: `test-events generates journal events, submits them concurrently, then
checks that the server's analytics and paginated listing agree with a local
recomputation over the events it created.`,
		Example: `  test-events --events 5000 --workers 16 --url http://localhost:8080
  test-events --secret "$BALENDIP_JWT_SECRET" --user alice --days 30`,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.NumEvents < 1 {
				return fmt.Errorf("--events must be positive")
			}
			if end != "" {
				t, err := time.Parse(time.DateOnly, end)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				cfg.End = t
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			closer, err := SetupLogging(cfg.LogFile, cfg.Verbose)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), testTimeout)
			defer cancel()
			_, err = run(ctx, cfg)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "Base URL of the service")
	f.IntVar(&cfg.NumEvents, "events", defaultNumEvents, "Number of events to generate and submit")
	f.IntVar(&cfg.Workers, "workers", defaultWorkers, "Number of concurrent submitters")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.DurationVar(&testTimeout, "test-timeout", defaultTestTimeout, "Overall test deadline")
	f.IntVar(&cfg.Days, "days", defaultDays, "Spread events over this many days")
	f.StringVar(&end, "end", "", "Last event date (YYYY-MM-DD, default today)")
	f.Uint64Var(&cfg.Seed, "seed", 0, "Generator seed (default from the clock)")
	f.IntVar(&cfg.PageSize, "page-size", defaultPageSize, "Page size used to walk the listing")
	f.StringVar(&cfg.Token, "token", "", "Bearer token to send")
	f.StringVar(&cfg.Secret, "secret", "", "JWT secret used to mint a token when --token is empty")
	f.StringVar(&cfg.UserID, "user", "", "User id for a minted token (default a fresh id)")
	f.StringVar(&cfg.OutputFile, "output", "", "Write created events to this JSON file")
	f.StringVar(&cfg.LogFile, "log", "", "Also write logs to this file")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose logging")
	return cmd
}
