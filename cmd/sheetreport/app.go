package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jonathan/sheetreport/internal/api"
	"github.com/jonathan/sheetreport/internal/config"
	"github.com/jonathan/sheetreport/internal/observability"
	"github.com/jonathan/sheetreport/internal/pipeline"
	"github.com/jonathan/sheetreport/internal/rendering"
	"github.com/jonathan/sheetreport/internal/save"
	"github.com/jonathan/sheetreport/internal/session"
	"github.com/jonathan/sheetreport/internal/transport"
)

// app holds the collaborators a command needs, built from configuration.
type app struct {
	cfg     config.Config
	log     *logrus.Logger
	client  *api.Client
	store   session.Store
	saver   pipeline.Saver
	printer *observability.Printer
	out     io.Writer
}

// loadConfig merges flag overrides over the config file and environment.
func loadConfig() (config.Config, error) {
	loaded, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := config.Config{
		APIBase: apiBase,
		Session: config.SessionConfig{Dir: sessionDir},
		Output:  config.OutputConfig{Dir: outputDir},
		Log:     config.LogConfig{Level: logLevel, Format: logFormat},
	}
	if outputDir != "" {
		// An explicit directory wins over a configured bucket.
		loaded.Output.S3Bucket = ""
	}
	cfg := flags.MergeWithDefaults(*loaded)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	opts := transport.DefaultOptions()
	opts.BaseURL = cfg.APIBase
	opts.Timeout = cfg.QueryTimeout
	opts.Logger = logger
	tc, err := transport.New(opts)
	if err != nil {
		return nil, err
	}
	client := api.New(tc).WithTimeouts(api.Timeouts{
		Query:    cfg.QueryTimeout,
		Compare:  cfg.CompareTimeout,
		Download: cfg.DownloadTimeout,
	})

	store, err := session.Open(ctx, session.Options{
		Backend:     cfg.Session.Backend,
		Dir:         cfg.Session.Dir,
		RedisAddr:   cfg.Session.RedisAddr,
		RedisTTL:    cfg.Session.RedisTTL,
		DatabaseURL: cfg.Session.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	var saver pipeline.Saver
	if cfg.Output.S3Bucket != "" {
		saver, err = save.NewS3Saver(ctx, save.S3Options{
			Bucket:    cfg.Output.S3Bucket,
			Prefix:    cfg.Output.S3Prefix,
			Region:    cfg.Output.S3Region,
			Endpoint:  cfg.Output.S3Endpoint,
			AccessKey: cfg.Output.S3AccessKey,
			SecretKey: cfg.Output.S3SecretKey,
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	} else {
		saver = save.NewDirSaver(cfg.Output.Dir)
	}

	logger.WithFields(logrus.Fields{
		"api_base": cfg.APIBase,
		"session":  cfg.Session.Backend,
	}).Debug("client configured")

	return &app{
		cfg:     cfg,
		log:     logger,
		client:  client,
		store:   store,
		saver:   saver,
		printer: observability.NewPrinter(cmd.OutOrStdout()),
		out:     cmd.OutOrStdout(),
	}, nil
}

// Close releases the session store.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close session store")
	}
}

// runner wires the report chain to the API, session store and saver.
func (a *app) runner() *pipeline.Runner {
	return pipeline.NewRunner(a.client, session.PipelineStore{Store: a.store}, a.saver, pipeline.RunOptions{
		Logger:     a.log,
		OnProgress: a.printer.PrintProgress,
	})
}

// fileID resolves the dataset for a command.
func (a *app) fileID(ctx context.Context) (string, error) {
	return session.ResolveFileID(ctx, a.store, fileIDFlag)
}

// render writes a table in the selected output format.
func (a *app) render(t rendering.Table) error {
	return rendering.Write(a.out, rendering.Format(outputFormat), t)
}

// fail turns a stage error into the user-facing message while keeping the
// original error reachable for errors.As. Validation errors already carry
// that message and are returned as they are.
func fail(stage pipeline.Stage, err error) error {
	if err == nil || pipeline.IsValidation(err) {
		return err
	}
	return &stageError{msg: pipeline.StageMessage(stage, err), err: err}
}

type stageError struct {
	msg string
	err error
}

func (e *stageError) Error() string { return e.msg }
func (e *stageError) Unwrap() error { return e.err }

// withApp builds the app for a command and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return fn(ctx, a, cmd, args)
	}
}
