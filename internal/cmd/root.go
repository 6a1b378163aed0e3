package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pmoves-ai/pulse/internal/catalog"
	"github.com/pmoves-ai/pulse/internal/event"
	"github.com/pmoves-ai/pulse/internal/frontend/status"
	pulsehttp "github.com/pmoves-ai/pulse/internal/http"
	"github.com/pmoves-ai/pulse/internal/logger"
	"github.com/pmoves-ai/pulse/internal/metrics"
	"github.com/pmoves-ai/pulse/internal/monitor"
	"github.com/pmoves-ai/pulse/internal/probe"
	"github.com/pmoves-ai/pulse/internal/xff"
	"github.com/pmoves-ai/pulse/internal/zpages"
)

const longHelp = `
Run the pulse health aggregation server.

Each CLI argument has a corresponding environment variable in the form of the CLI argument prefixed
with PULSE. If both the flag and environment variable form are specified, the flag form takes
precedence.

Examples
  --http-port       PULSE_HTTP_PORT
  --catalog-path    PULSE_CATALOG_PATH
  --nats-url        PULSE_NATS_URL
`

// EnvNamePrefix defines the environment variable prefix required for all environment configuration.
const EnvNamePrefix = "PULSE"

// RootCommandOptions encompasses all the configurability of the RootCommand.
type RootCommandOptions struct {
	HTTPPort int `mapstructure:"http-port"`

	CatalogPath string `mapstructure:"catalog-path"`
	Watch       bool   `mapstructure:"watch"`

	ProbeInterval    time.Duration `mapstructure:"probe-interval"`
	ProbeConcurrency int           `mapstructure:"probe-concurrency"`

	NATSURL string `mapstructure:"nats-url"`

	TrustedProxies string `mapstructure:"trusted-proxies"`

	Debug bool `mapstructure:"debug"`
}

// RootCommand is the root command that represents the entrypoint to pulse.
type RootCommand struct {
	*cobra.Command
	vpr  *viper.Viper
	Opts RootCommandOptions
}

// NewRootCommand creates new RootCommand instance.
func NewRootCommand() (*RootCommand, error) {
	rootCmd := &RootCommand{
		Command: &cobra.Command{
			Use:          os.Args[0],
			Long:         longHelp,
			SilenceUsage: true,
		},
	}

	rootCmd.PreRunE = rootCmd.PreRun
	rootCmd.RunE = rootCmd.Run
	rootCmd.Flags().SortFlags = false // Print flag help in the order they're specified.

	// Ensure keys with `-` use `_` for env keys else Viper won't match them.
	rootCmd.vpr = viper.NewWithOptions(viper.EnvKeyReplacer(strings.NewReplacer("-", "_")))
	rootCmd.vpr.SetEnvPrefix(EnvNamePrefix)

	if err := rootCmd.configureFlags(); err != nil {
		return nil, err
	}

	return rootCmd, nil
}

// PreRun satisfies cobra.Command.PreRunE and unmarshalls. Its responsible for populating c.Opts.
func (c *RootCommand) PreRun(*cobra.Command, []string) error {
	if err := c.vpr.Unmarshal(&c.Opts); err != nil {
		return err
	}

	return c.validateOpts()
}

// Run executes pulse.
func (c *RootCommand) Run(cmd *cobra.Command, _ []string) error {
	log, err := logger.New("pulse", c.Opts.Debug)
	if err != nil {
		return errors.Errorf("initialize logger: %v", err)
	}

	log.Info("Root command options", "opts", fmt.Sprintf("%+v", c.Opts))

	m := metrics.New()
	m.State.Set(metrics.Initializing)

	initial, err := catalog.FromYAMLFile(c.Opts.CatalogPath)
	if err != nil {
		return errors.Errorf("load catalog: %v", err)
	}
	store := catalog.NewStore(initial)
	m.CatalogSize.Set(float64(initial.Len()))

	var publisher *event.Publisher
	if c.Opts.NATSURL != "" {
		publisher, err = event.Connect(log, c.Opts.NATSURL)
		if err != nil {
			return errors.Errorf("connect event bus: %v", err)
		}
		defer publisher.Close()
	}

	mon := monitor.New(monitor.Config{
		Logger:      log,
		Store:       store,
		Prober:      probe.New(),
		Publisher:   publisher,
		Metrics:     m,
		Interval:    c.Opts.ProbeInterval,
		Concurrency: c.Opts.ProbeConcurrency,
	})

	router := gin.New()
	router.Use(
		logger.Middleware(log),
		gin.Recovery(),
		metrics.InstrumentRequestCount(m.Registry()),
		metrics.InstrumentRequestDuration(m.Registry()),
	)

	zpages.Configure(router, m.Registry(), mon, time.Now())

	frontend := status.New(log, store, mon)
	frontend.Configure(router)

	handler, err := xff.HandlerFromUnparsed(router, c.Opts.TrustedProxies)
	if err != nil {
		return err
	}

	// Listen for signals to gracefully shutdown.
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	var routines run.Group

	routines.Add(
		func() error { return mon.Run(ctx) },
		func(error) { cancel() },
	)

	routines.Add(
		func() error {
			return pulsehttp.Serve(ctx, log, fmt.Sprintf(":%v", c.Opts.HTTPPort), handler)
		},
		func(error) { cancel() },
	)

	if c.Opts.Watch {
		watcher := catalog.NewWatcher(log, c.Opts.CatalogPath, store)
		watcher.OnSwap(func(*catalog.Catalog) { mon.Kick() })

		routines.Add(
			func() error { return watcher.Watch(ctx) },
			func(error) { cancel() },
		)
	}

	m.State.Set(metrics.Ready)

	return routines.Run()
}

func (c *RootCommand) configureFlags() error {
	c.Flags().Int("http-port", 50811, "Port to listen on for HTTP requests")

	c.Flags().String("catalog-path", "", "Path to the YAML service catalog")
	c.Flags().Bool("watch", true, "Reload the catalog when the file changes")

	c.Flags().Duration("probe-interval", monitor.DefaultInterval, "Interval between health sweeps")
	c.Flags().Int("probe-concurrency", probe.DefaultConcurrency, "Maximum number of concurrent probes in a sweep")

	c.Flags().String("nats-url", "", "URL of the NATS server to publish transition events on; empty disables publishing")

	c.Flags().String(
		"trusted-proxies",
		"",
		"A commma separated list of allowed peer IPs and/or CIDR blocks to replace with X-Forwarded-For",
	)

	c.Flags().Bool("debug", false, "Use human friendly development logging")

	if err := c.vpr.BindPFlags(c.Flags()); err != nil {
		return err
	}

	var err error
	c.Flags().VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = c.vpr.BindEnv(f.Name)
	})

	return err
}

func (c *RootCommand) validateOpts() error {
	if c.Opts.CatalogPath == "" {
		return errors.New("--catalog-path is required")
	}

	if c.Opts.HTTPPort <= 0 || c.Opts.HTTPPort > 65535 {
		return errors.Errorf("invalid --http-port: %v", c.Opts.HTTPPort)
	}

	return nil
}
