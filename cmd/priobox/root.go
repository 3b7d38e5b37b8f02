package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nhle/priobox/internal/credential"
	"github.com/nhle/priobox/internal/logging"
	"github.com/nhle/priobox/internal/model"
	"github.com/nhle/priobox/internal/notify"
	"github.com/nhle/priobox/internal/parser"
	"github.com/nhle/priobox/internal/store"
	appsync "github.com/nhle/priobox/internal/sync"
	"github.com/nhle/priobox/internal/transport"
)

var (
	cfgFile  string
	logLevel string

	cfg    *model.AppConfig
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "priobox",
	Short: "VIP-aware mail sync and dispatch",
	Long: `priobox keeps a local cache of your IMAP mailboxes, flags mail from
VIP senders, notifies you when new VIP mail arrives and sends mail over SMTP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ~/.config/priobox/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if cfgFile == "" {
		cfgFile = model.DefaultConfigPath()
	}

	loaded, err := model.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}

	l, err := logging.New(loaded.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	cfg, logger = loaded, l
	slog.SetDefault(slog.New(logger))
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// app holds the wired services shared by the commands.
type app struct {
	store *store.SQLiteStore
	vault *credential.Vault
	orch  *appsync.Orchestrator
}

func openApp() (*app, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	vault, err := credential.Open(cfg.Vault)
	if err != nil {
		st.Close()
		return nil, err
	}

	dialer := transport.NewDialer(transport.Options{
		Timeout:            seconds(cfg.Transport.DialTimeoutSec),
		ConnectionsPerSec:  cfg.Transport.ConnectionsPerSec,
		InsecureSkipVerify: cfg.Transport.InsecureSkipVerify,
	})

	orch := appsync.NewOrchestrator(
		transport.NewIMAPTransport(dialer, parser.New(), logger.WithPrefix("imap")),
		transport.NewSMTPDispatcher(dialer, logger.WithPrefix("smtp")),
		st,
		vault,
		logger.WithPrefix("sync"),
		appsync.Options{MaxMessages: cfg.Sync.MaxMessages},
	)

	return &app{store: st, vault: vault, orch: orch}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// sink returns the notification sinks enabled by the configuration.
func (a *app) sink() notify.Sink {
	sinks := notify.Multi{
		notify.NewLogSink(logger.WithPrefix("notify")),
		notify.NewStoreSink(a.store),
	}
	if cfg.Notify.Desktop {
		sinks = append(sinks, notify.NewCommandSink("priobox", cfg.Notify.Command))
	}
	return sinks
}

func (a *app) job() *appsync.Job {
	return appsync.NewJob(a.orch, a.store, a.sink(), logger.WithPrefix("job"), appsync.JobOptions{
		Interval:     seconds(cfg.Sync.IntervalSec),
		FetchTimeout: seconds(cfg.Sync.FetchTimeoutSec),
		MaxParallel:  cfg.Sync.MaxParallelAccounts,
		RetryInitial: seconds(cfg.Sync.RetryInitialSec),
		RetryMax:     seconds(cfg.Sync.RetryMaxSec),
	})
}

// resolveAccount finds an account by ID or email address. An empty ref
// selects the only configured account.
func (a *app) resolveAccount(ctx context.Context, ref string) (model.Account, error) {
	accounts, err := a.store.ListAccounts(ctx)
	if err != nil {
		return model.Account{}, err
	}

	if ref == "" {
		if len(accounts) == 1 {
			return accounts[0], nil
		}
		return model.Account{}, fmt.Errorf("%d accounts configured, pass one with --account", len(accounts))
	}

	for _, account := range accounts {
		if account.ID == ref || strings.EqualFold(account.EmailAddress, ref) {
			return account, nil
		}
	}
	return model.Account{}, fmt.Errorf("account %q: %w", ref, store.ErrNotFound)
}

// withApp opens the app for the duration of fn.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}
