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
	"syscall"

	"aurora/pkg/api"
	"aurora/pkg/auth/jwt"
	"aurora/pkg/auth/middleware"
	"aurora/pkg/auth/rbac"
	"aurora/pkg/config"
	"aurora/pkg/extension"
	"aurora/pkg/extensions"
	"aurora/pkg/lifecycle"
	"aurora/pkg/messages"
	"aurora/pkg/pixel"
)

// secretKeyEnv holds the master key of the file secret store.
const secretKeyEnv = "AURORA_SECRET_KEY"

type options struct {
	configFile string
	logLevel   string
	logFormat  string
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseFlags(args []string, outW io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("aurora", flag.ContinueOnError)
	fs.SetOutput(outW)
	fs.StringVar(&opts.configFile, "config", "config.yaml", "Configuration file")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides general.log_level")
	fs.StringVar(&opts.logFormat, "log-format", "", "Log format (text, json); overrides general.log_format")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func run(outW io.Writer, args []string) error {
	opts, err := parseFlags(args, outW)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	store, err := config.Load(opts.configFile, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	settings, err := store.Settings()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, format := settings.LogLevel, settings.LogFormat
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	if opts.logFormat != "" {
		format = opts.logFormat
	}
	logger := newLogger(level, format, outW)
	slog.SetDefault(logger)

	driver, err := openDriver(settings)
	if err != nil {
		return err
	}
	strip := pixel.NewStrip(settings.MaxPixels, driver)
	defer func() {
		if err := strip.Close(); err != nil {
			logger.Error("failed to close output", "error", err)
		}
	}()

	msgs := messages.NewLog()
	registry := extension.NewRegistry(strip, extension.DirProvider{}, logger, msgs)
	if err := extensions.RegisterAll(registry); err != nil {
		return fmt.Errorf("failed to register extensions: %w", err)
	}

	coord := lifecycle.NewCoordinator(store, registry, strip, msgs, logger)
	if err := coord.Bootstrap(); err != nil {
		// the daemon keeps running so the extension can be changed remotely
		logger.Warn("bootstrap incomplete", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var watcher *config.FileWatcher
	if settings.Watch {
		watcher, err = watchConfig(store, coord, logger)
		if err != nil {
			logger.Warn("config watch disabled", "error", err)
		}
	}

	var server *api.Server
	if settings.WebEnabled {
		server, err = newServer(settings, coord, logger)
		if err != nil {
			return err
		}
		server.Start()
	}

	loop := lifecycle.NewLoop(coord, strip, settings.LoopInterval, msgs, logger)
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	<-ctx.Done()
	logger.Info("shutting down")

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			logger.Warn("failed to stop config watcher", "error", err)
		}
	}

	if server != nil {
		if err := server.Stop(context.Background()); err != nil {
			logger.Error("failed to stop api server", "error", err)
		}
	}
	<-loopDone
	if err := coord.Shutdown(); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
	return nil
}

func openDriver(settings config.Settings) (pixel.Driver, error) {
	switch settings.Output {
	case "device":
		if settings.DevicePath == "" {
			return nil, fmt.Errorf("%s.%s is required when output is device", config.SectionAurora, config.KeyDevicePath)
		}
		return pixel.OpenDevice(settings.DevicePath)
	default:
		return pixel.NewMemoryDriver(), nil
	}
}

// watchConfig reloads the coordinator when the config file is edited by
// someone other than the store itself.
func watchConfig(store *config.Store, coord *lifecycle.Coordinator, logger *slog.Logger) (*config.FileWatcher, error) {
	watcher := config.NewFileWatcher(logger)
	if err := watcher.Start(); err != nil {
		return nil, err
	}
	err := watcher.Watch(store.Path(), func() {
		changed, err := store.ChangedOnDisk()
		if err != nil {
			logger.Warn("failed to check config file", "error", err)
			return
		}
		if !changed {
			return
		}
		logger.Info("config file changed, reloading", "path", store.Path())
		if err := coord.Reload(); err != nil {
			logger.Error("config reload failed", "error", err)
		}
	})
	if err != nil {
		_ = watcher.Stop()
		return nil, err
	}
	return watcher, nil
}

func newServer(settings config.Settings, coord *lifecycle.Coordinator, logger *slog.Logger) (*api.Server, error) {
	opts := api.ServerOptions{
		Addr:   settings.Addr(),
		Logger: logger,
	}
	if settings.AuthEnabled {
		authm, err := newAuth(settings, logger)
		if err != nil {
			return nil, err
		}
		opts.Auth = authm
	}
	return api.NewServer(coord, opts), nil
}

func newAuth(settings config.Settings, logger *slog.Logger) (*middleware.AuthMiddleware, error) {
	secrets, err := config.OpenSecretStore(settings, os.Getenv(secretKeyEnv), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open secret store: %w", err)
	}
	secret, err := jwt.LoadSigningSecret(secrets)
	if err != nil {
		return nil, err
	}
	provider, err := jwt.NewJWTProvider(&jwt.JWTConfig{
		Name:      "jwt",
		SecretKey: secret,
		Issuer:    settings.TokenIssuer,
	})
	if err != nil {
		return nil, err
	}
	authm := middleware.NewAuthMiddleware(rbac.NewDefaultAuthorizer(), logger)
	authm.AddProvider(provider)
	return authm, nil
}
