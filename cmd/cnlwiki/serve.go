package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/cnlwiki"
	"github.com/vango-dev/cnlwiki/internal/config"
	"github.com/vango-dev/cnlwiki/internal/errors"
	"github.com/vango-dev/cnlwiki/pkg/backend"
	"github.com/vango-dev/cnlwiki/pkg/params"
)

type serveOptions struct {
	configPath     string
	addr           string
	logFormat      string
	logLevel       string
	logDir         string
	acquireTimeout time.Duration
	dev            bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the wiki server",
		Long: `Start the wiki server.

The descriptor's named backends are constructed and published while the
instances start; an instance bound to a named backend waits for it up to
the acquire timeout. The server stops gracefully on SIGINT or SIGTERM.

Examples:
  cnlwiki serve
  cnlwiki serve --config deploy/cnlwiki.yaml --addr :9000
  cnlwiki serve --log-format json --acquire-timeout 30s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("acquire-timeout") {
				opts.acquireTimeout = -1
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	addDescriptorFlag(cmd, &opts.configPath)
	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "Listen address (default from descriptor)")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "", "Log format: text or json (default from descriptor)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	cmd.Flags().StringVar(&opts.logDir, "log-dir", "", "Directory for cnlwiki.log (default: context logdir)")
	cmd.Flags().DurationVar(&opts.acquireTimeout, "acquire-timeout", config.DefaultAcquireTimeout, "How long instances wait for a named backend (0 waits forever)")
	cmd.Flags().BoolVar(&opts.dev, "dev", false, "Show fault details in error responses")

	return cmd
}

func addDescriptorFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", "", "Deployment descriptor (default: cnlwiki.yaml in the working directory)")
}

// loadDescriptor reads the descriptor at path, or the one in the working
// directory when path is empty.
func loadDescriptor(path string) (*config.Config, error) {
	if path == "" {
		return config.Load(".")
	}
	return config.LoadFile(path)
}

func runServe(ctx context.Context, opts serveOptions) error {
	desc, err := loadDescriptor(opts.configPath)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		desc.Server.Addr = opts.addr
	}
	if opts.logFormat != "" {
		desc.Server.LogFormat = opts.logFormat
	}
	if opts.acquireTimeout >= 0 {
		desc.Server.AcquireTimeout = config.Duration(opts.acquireTimeout)
	}
	if opts.dev {
		desc.Server.DevMode = true
	}
	if err := desc.Validate(); err != nil {
		return err
	}

	logDir := opts.logDir
	if logDir == "" {
		logDir = params.Resolve(nil, desc.Context).Get(params.KeyLogDir)
	}
	logger, closer, err := newLogger(os.Stderr, desc.Server.LogFormat, opts.logLevel, logDir)
	if err != nil {
		return errors.New("E102").WithDetail(err.Error())
	}
	defer closer.Close()
	logger = logger.With("service", "cnlwiki")

	app := cnlwiki.New(cnlwiki.Config{
		Logger:             logger,
		AcquireTimeout:     acquireTimeout(desc.Server.AcquireTimeout.Std()),
		PollInterval:       desc.Server.PollInterval.Std(),
		SessionIdleTimeout: desc.Server.SessionIdleTimeout.Std(),
		CookieName:         desc.Server.CookieName,
		SecureCookies:      desc.Server.SecureCookies,
		DevMode:            desc.Server.DevMode,
	})

	logger.Info("starting",
		"descriptor", desc.Path(),
		"version", version,
		"backends", len(desc.Backends),
		"instances", len(desc.Instances))

	if err := app.Start(ctx, desc); err != nil {
		app.Shutdown(context.Background())
		return startupError(err)
	}
	if ctx.Err() != nil {
		logger.Info("startup interrupted")
		return app.Shutdown(context.Background())
	}

	ln, err := net.Listen("tcp", desc.Server.Addr)
	if err != nil {
		app.Shutdown(context.Background())
		return errors.New("E203").
			WithDetail(fmt.Sprintf("Could not listen on %s", desc.Server.Addr)).
			WithSuggestion("Pick another address with --addr").
			Wrap(err)
	}
	return app.Serve(ctx, ln)
}

// acquireTimeout maps the descriptor's timeout, where zero disables the
// bound, to the App's, where a negative value does.
func acquireTimeout(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

// startupError maps a startup failure to its coded error.
func startupError(err error) error {
	if stderrors.Is(err, backend.ErrStartupUnavailable) {
		return errors.New("E201").
			WithSuggestion("Check that every referenced backend is declared and starts, or raise --acquire-timeout").
			Wrap(err)
	}
	return errors.New("E202").
		WithSuggestion("Check the data directory and the parsing engine settings").
		Wrap(err)
}
