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
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gotd/td/session"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/BTreeMap/TGArchive/internal/archive"
	"github.com/BTreeMap/TGArchive/internal/console"
	"github.com/BTreeMap/TGArchive/internal/credentials"
	"github.com/BTreeMap/TGArchive/internal/lockfile"
	"github.com/BTreeMap/TGArchive/internal/models"
	"github.com/BTreeMap/TGArchive/internal/store"
	"github.com/BTreeMap/TGArchive/internal/telegram"
	"github.com/BTreeMap/TGArchive/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir holds the progress document, session, lock and log
	DefaultStateDir = "."
	// DefaultOutputDir is where transcripts are written
	DefaultOutputDir = "."
	// DefaultSessionName names the Telegram session file or database row
	DefaultSessionName = "tg_fetcher_session"
	// LogFileName is the log file created in the state directory
	LogFileName = "tgarchive.log"
)

func main() {
	os.Exit(run())
}

// Config holds environment configuration
type Config struct {
	EnvFile     string
	StateDir    string
	OutputDir   string
	ProgressDSN string
	QRLogin     bool
	Debug       bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	outputDir   *string
	progressDSN *string
	qrLogin     *bool
	debug       *bool
}

func run() int {
	// The terminal belongs to the prompts; only warnings reach it until the
	// log file is open.
	initializeLogger(os.Stderr, slog.LevelWarn)

	config := loadEnvironmentConfig()
	flags, err := parseCommandLineFlags(flag.CommandLine, config, os.Args[1:])
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		return 1
	}

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		return 1
	}

	runID := uuid.NewString()
	logFile, err := openLogFile(*flags.stateDir, *flags.debug, runID)
	if err != nil {
		slog.Error("Failed to open log file", "error", err)
		return 1
	}
	defer logFile.Close()
	slog.Info("TGArchive starting", "state_dir", *flags.stateDir, "output_dir", *flags.outputDir,
		"progress_dsn_set", *flags.progressDSN != "", "qr_login", *flags.qrLogin)

	con := console.New(os.Stdin, os.Stdout)
	con.Header()

	lock, err := lockfile.Acquire(*flags.stateDir, runID)
	if err != nil {
		con.Error(err.Error())
		return 1
	}
	defer lock.Release()

	st, err := store.NewStore(buildStoreOptions(flags, runID)...)
	if err != nil {
		slog.Error("Failed to open progress store", "error", err)
		con.Error("Failed to open progress store: " + err.Error())
		return 1
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	draft, err := con.CompleteCredentials(ctx, credentials.FromEnv())
	if errors.Is(err, io.EOF) {
		return 0
	} else if ctx.Err() != nil {
		slog.Info("Stopped by user during credential prompts")
		con.Warn("Stopped by user.")
		return 0
	} else if err != nil {
		con.Error(err.Error())
		return 1
	}
	creds, err := draft.Validate()
	if errors.Is(err, credentials.ErrMissing) {
		con.Error("Error: All credentials (API ID, Hash, and Phone) are required.")
		return 1
	} else if err != nil {
		con.Error("Error: " + err.Error())
		return 1
	}

	a := &app{
		con:     con,
		client:  telegram.NewClient(creds, buildTelegramOptions(flags, st)...),
		store:   st,
		creds:   creds,
		draft:   draft,
		envFile: config.EnvFile,
		outDir:  *flags.outputDir,
	}
	con.Info("Connecting to Telegram...")
	err = a.client.Run(ctx, a.fetch)
	code := a.report(ctx, err)
	con.Dim("Session closed.")
	slog.Info("TGArchive finished", "exit_code", code)
	return code
}

// initializeLogger installs a text handler writing to w as the default logger
func initializeLogger(w io.Writer, level slog.Level) {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// openLogFile redirects logging to the state directory, tagging every record with runID
func openLogFile(stateDir string, debug bool, runID string) (*os.File, error) {
	path := filepath.Join(stateDir, LogFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})).With("run_id", runID)
	slog.SetDefault(logger)
	return f, nil
}

// loadEnvironmentConfig loads configuration from environment variables and the .env file
func loadEnvironmentConfig() Config {
	envFile := util.GetenvDefault("TGARCHIVE_ENV_FILE", credentials.DefaultEnvFile)
	if err := godotenv.Load(envFile); err != nil {
		slog.Debug("failed to load .env file", "path", envFile, "error", err)
	} else {
		slog.Debug("successfully loaded .env file", "path", envFile)
	}

	config := Config{
		EnvFile:     envFile,
		StateDir:    util.GetenvDefault("TGARCHIVE_STATE_DIR", DefaultStateDir),
		OutputDir:   util.GetenvDefault("TGARCHIVE_OUTPUT_DIR", DefaultOutputDir),
		ProgressDSN: os.Getenv("TGARCHIVE_PROGRESS_DSN"),
		QRLogin:     util.ParseBoolEnv("TGARCHIVE_QR_LOGIN", false),
		Debug:       util.ParseBoolEnv("TGARCHIVE_DEBUG", false),
	}

	slog.Debug("environment variables loaded",
		"TGARCHIVE_STATE_DIR", config.StateDir,
		"TGARCHIVE_OUTPUT_DIR", config.OutputDir,
		"TGARCHIVE_PROGRESS_DSN_SET", config.ProgressDSN != "",
		"TGARCHIVE_QR_LOGIN", config.QRLogin,
		"TGARCHIVE_DEBUG", config.Debug)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, config Config, args []string) (Flags, error) {
	flags := Flags{
		stateDir:    fs.String("state-dir", config.StateDir, "directory for progress, session, lock and log files (overrides $TGARCHIVE_STATE_DIR)"),
		outputDir:   fs.String("output-dir", config.OutputDir, "directory for transcripts (overrides $TGARCHIVE_OUTPUT_DIR)"),
		progressDSN: fs.String("progress-dsn", config.ProgressDSN, "SQLite path or PostgreSQL DSN for progress and session instead of progress.json (overrides $TGARCHIVE_PROGRESS_DSN)"),
		qrLogin:     fs.Bool("qr-login", config.QRLogin, "log in by scanning a QR code instead of a login code (overrides $TGARCHIVE_QR_LOGIN)"),
		debug:       fs.Bool("debug", config.Debug, "write debug records to the log file (overrides $TGARCHIVE_DEBUG)"),
	}

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"outputDir", *flags.outputDir,
		"progressDSN_set", *flags.progressDSN != "",
		"qrLogin", *flags.qrLogin,
		"debug", *flags.debug)

	return flags, nil
}

// ensureDirectoriesExist creates the state and output directories
func ensureDirectoriesExist(flags Flags) error {
	for _, dir := range []string{*flags.stateDir, *flags.outputDir} {
		slog.Debug("Creating directory", "dir", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create directory", "error", err, "dir", dir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs progress store configuration options
func buildStoreOptions(flags Flags, runID string) []store.Option {
	storeOpts := []store.Option{store.WithRunID(runID)}
	dsn := *flags.progressDSN
	if dsn == "" {
		path := filepath.Join(*flags.stateDir, store.DefaultProgressFileName)
		slog.Debug("No progress DSN provided, using JSON progress document", "path", path)
		return append(storeOpts, store.WithFilePath(path))
	}
	if store.DetectDSNType(dsn) == store.BackendPostgres {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		return append(storeOpts, store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", dsn)
	return append(storeOpts, store.WithSQLiteDSN(dsn))
}

// buildTelegramOptions constructs Telegram client options. SQL progress
// backends keep the session in their database; otherwise it is a JSON file
// in the state directory.
func buildTelegramOptions(flags Flags, st store.ProgressStore) []telegram.Option {
	var tgOpts []telegram.Option
	if sb, ok := st.(store.SessionBackend); ok {
		slog.Debug("Keeping Telegram session in the progress database")
		tgOpts = append(tgOpts, telegram.WithSessionStorage(sb.SessionStorage(DefaultSessionName)))
	} else {
		path := filepath.Join(*flags.stateDir, DefaultSessionName+".json")
		slog.Debug("Keeping Telegram session in file", "path", path)
		tgOpts = append(tgOpts, telegram.WithSessionStorage(&session.FileStorage{Path: path}))
	}
	if *flags.qrLogin {
		tgOpts = append(tgOpts, telegram.WithQRLogin())
	}
	return tgOpts
}

// app carries one interactive archiving session.
type app struct {
	con     *console.Console
	client  *telegram.Client
	store   store.ProgressStore
	creds   credentials.Credentials
	draft   credentials.Draft
	envFile string
	outDir  string
}

// fetch runs inside the Telegram connection: login, target, range, fetch.
func (a *app) fetch(ctx context.Context) error {
	fresh, err := a.client.Authorize(ctx, a.creds.Phone, a.con)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	slog.Info("Authorized", "new_login", fresh)
	if a.draft.Prompted {
		if err := credentials.Save(a.envFile, a.creds); err != nil {
			slog.Warn("Failed to save credentials", "error", err)
			a.con.Warn("Could not save credentials: " + err.Error())
		} else {
			a.con.Dim("Credentials auto-saved to " + a.envFile)
		}
	}
	a.con.Success("Authentication successful!")

	raw, err := a.con.AskTarget(ctx)
	if err != nil {
		return err
	}
	conv, err := a.client.ResolveTarget(ctx, raw)
	if err != nil {
		return err
	}
	target := conv.Target()
	file := filepath.Join(a.outDir, archive.TranscriptFileName(target))
	a.con.Target(target, file)

	window, err := a.con.ChooseWindow(ctx, time.Now())
	if err != nil {
		return err
	}
	a.announceStart(ctx, target, window)

	tr, err := archive.OpenTranscript(afero.NewOsFs(), file)
	if err != nil {
		return err
	}
	defer tr.Close()

	archiver := archive.New(a.store, archive.WithObserver(a.con.Entry))
	summary, err := archiver.Run(ctx, conv, archive.Request{Target: target, Window: window, Output: tr})
	if summary.ReachedWindowStart {
		a.con.Warn(fmt.Sprintf("Reached limit: Messages are now older than %s.", window.Start.Format(models.DateLayout)))
	}
	if err != nil {
		return err
	}
	a.con.Summary(summary, file)
	return nil
}

func (a *app) announceStart(ctx context.Context, target models.Target, window models.Window) {
	if window.IsSet() {
		a.con.Info("Fetching messages between " + window.String())
	} else if saved, found, err := a.store.Load(ctx, target.Key()); err == nil && found && saved != 0 {
		a.con.Info(fmt.Sprintf("Resuming from message ID: %d", saved))
	}
	a.con.Info("Starting fetch... (Press Ctrl+C to stop)")
}

// report prints the outcome of a run and returns the exit code.
func (a *app) report(ctx context.Context, err error) int {
	switch {
	case err == nil:
		return 0
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		slog.Info("Stopped by user", "error", err)
		a.con.Warn("Stopped by user. Progress has been saved.")
		return 0
	case errors.Is(err, io.EOF):
		slog.Info("Input closed")
		return 0
	case errors.Is(err, telegram.ErrTargetNotFound), errors.Is(err, models.ErrEmptyIdentifier):
		slog.Error("Target resolution failed", "error", err)
		a.con.Error(err.Error())
		a.con.Hints("If you are using a new account/session:", telegram.TargetHints)
		return 1
	default:
		slog.Error("TGArchive failed", "error", err)
		a.con.Error("An unexpected error occurred: " + err.Error())
		return 1
	}
}
