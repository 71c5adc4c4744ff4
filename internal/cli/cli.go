package cli

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/clelom/titan/internal/app"
	"github.com/spf13/cobra"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

type flags struct {
	topology        string
	healthcheckPort int
	logFormat       string
	logLevel        string
	logFile         string
	cacheDB         string
	radio           string
	radioURL        string
	timeUnit        time.Duration
	duration        time.Duration
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	var (
		f      flags
		ran    bool
		config *app.Config
	)

	cmd := &cobra.Command{
		Use:   "titan [flags] [TOPOLOGY_PATH]",
		Short: "Titan - simulate a network of dataflow sensor nodes",
		Long: `Titan simulates a network of sensor nodes running task graphs. A master
pushes every configuration of the topology to its node, samplers feed
generated signals into sensor tasks and a report of the network is printed
when the run ends.

TOPOLOGY_PATH is a single .hcl file or a directory containing .hcl files.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			path := f.topology
			if path == "" && len(args) > 0 {
				path = args[0]
			}
			slog.Debug("Topology path determined.", "path", path)
			if path == "" {
				slog.Debug("No topology path provided, printing usage and exiting.")
				return cmd.Help()
			}

			cfg, err := validate(path, f)
			if err != nil {
				return err
			}
			config = cfg
			return nil
		},
	}
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(output)
	cmd.SetErr(output)

	fs := cmd.Flags()
	fs.StringVarP(&f.topology, "topology", "t", "", "Path to the topology file or directory.")
	fs.IntVar(&f.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	fs.StringVar(&f.logFormat, "log-format", "json", "Log output format. Options: 'text' or 'json'.")
	fs.StringVar(&f.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	fs.StringVar(&f.logFile, "log-file", "", "Also write logs to this file, rotated by size.")
	fs.StringVar(&f.cacheDB, "cache-db", "", "SQLite file keeping node configuration caches across runs. Empty keeps them in memory.")
	fs.StringVar(&f.radio, "radio", app.RadioMemory, "Radio transport. Options: 'mem' or 'socketio'.")
	fs.StringVar(&f.radioURL, "radio-url", "", "Relay server URL for the socketio radio.")
	fs.DurationVar(&f.timeUnit, "time-unit", 0, "Protocol time unit. 0 uses the topology's value.")
	fs.DurationVar(&f.duration, "duration", 10*time.Second, "How long to run the simulation. 0 runs until interrupted.")

	if err := cmd.Execute(); err != nil {
		if exitErr, ok := err.(*ExitError); ok {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if !ran || config == nil {
		// Help was requested or no topology was given.
		return nil, true, nil
	}
	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

func validate(path string, f flags) (*app.Config, error) {
	logFormat := strings.ToLower(f.logFormat)
	if logFormat != "text" && logFormat != "json" {
		return nil, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(f.logLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	cfg, err := app.NewConfig(app.Config{
		TopologyPath:    path,
		HealthcheckPort: f.healthcheckPort,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		LogFile:         f.logFile,
		CacheDB:         f.cacheDB,
		Radio:           strings.ToLower(f.radio),
		RadioURL:        f.radioURL,
		TimeUnit:        f.timeUnit,
		Duration:        f.duration,
	})
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, nil
}
