/*
easyslot watches a visa appointment portal for open slots and sends a
notification (or books right away) when one matching the configured
cities and date range shows up.

Have a look at the README.md for more information.
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/easyslot/easyslot/internal/browser"
	"github.com/easyslot/easyslot/internal/config"
	"github.com/easyslot/easyslot/internal/log"
	"github.com/easyslot/easyslot/internal/metrics"
	"github.com/easyslot/easyslot/internal/notify"
	"github.com/easyslot/easyslot/internal/portal"
	"github.com/easyslot/easyslot/internal/server"
	"github.com/easyslot/easyslot/internal/state"
	"github.com/easyslot/easyslot/internal/users"
	"github.com/easyslot/easyslot/internal/watch"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/miekg/king"
	"github.com/redis/go-redis/v9"
)

var version = "dev"

const name = "easyslot"

type VersionFlag string

func (v VersionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                       { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

type cli struct {
	Version VersionFlag `short:"v" long:"version" help:"Print the version and exit."`
	Debug   bool        `short:"d" long:"debug" help:"Set log level to 'debug' and store screenshots and page html on failures."`

	Completion CompletionCommand `cmd:"" help:"Generate autocompletion file."`

	Watch    WatchCmd    `cmd:"" help:"Watch the portal for open appointment slots"`
	Serve    ServeCmd    `cmd:"" help:"Watch the portal and expose the http api on top"`
	Validate ValidateCmd `cmd:"" help:"Validate the given configuration file"`
}

type ShellType string

const (
	BASH ShellType = "bash"
	ZSH  ShellType = "zsh"
	FISH ShellType = "fish"
)

var shellTypes = []string{string(BASH), string(ZSH), string(FISH)}

type CompletionCommand struct {
	Shell ShellType `short:"s" help:"The shell that you want to create the autocompletion file for." required:"" enum:"bash,zsh,fish"`
}

func (acc *CompletionCommand) Run() error {
	cli := &cli{}
	parser := kong.Must(cli)

	switch acc.Shell {
	case BASH:
		b := &king.Bash{}
		b.Completion(parser.Model.Node, name)
		return b.Write()
	case ZSH:
		z := &king.Zsh{}
		z.Completion(parser.Model.Node, name)
		return z.Write()
	case FISH:
		f := &king.Fish{}
		f.Completion(parser.Model.Node, name)
		return f.Write()
	default:
		// should not happen due to enum constraint
		return fmt.Errorf("shell type not supported: %s. Must be one of [%s].", acc.Shell, strings.Join(shellTypes, ", "))
	}
}

type WatchCmd struct {
	Config string `short:"c" default:"./config.yaml" help:"The location of the configuration file." completion:"<file>"`
}

func (wc *WatchCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := setup(ctx, wc.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer app.close()

	stats, err := app.runWatchers(ctx)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	watch.PrintSummary(os.Stdout, stats)
	return nil
}

type ServeCmd struct {
	Config string `short:"c" default:"./config.yaml" help:"The location of the configuration file." completion:"<file>"`
}

func (sc *ServeCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := setup(ctx, sc.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer app.close()

	srv := server.New(app.config.Server.Addr, app.users, app.states, app.metrics)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error(fmt.Sprintf("http server failed: %v", err))
		}
	}()

	stats, watchErr := app.runWatchers(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error(fmt.Sprintf("http server shutdown failed: %v", err))
	}

	if watchErr != nil {
		slog.Error(fmt.Sprintf("%v", watchErr))
		return watchErr
	}
	watch.PrintSummary(os.Stdout, stats)
	return nil
}

type ValidateCmd struct {
	Config string `short:"c" default:"./config.yaml" help:"The location of the configuration file." completion:"<file>"`
}

func (vc *ValidateCmd) Run() error {
	cfg, err := config.New(vc.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	if err := cfg.Validate(); err != nil {
		slog.Error(fmt.Sprintf("configuration invalid:\n%v", err))
		return err
	}
	slog.Info(fmt.Sprintf("configuration valid, %d account(s) configured", len(cfg.Accounts())))
	return nil
}

// app bundles everything the watch and serve commands share.
type app struct {
	config   *config.Config
	states   *state.Manager
	metrics  *metrics.Metrics
	notifier notify.Notifier
	seen     notify.SeenCache
	users    *users.Store

	defaultAlloc context.Context
	cancels      []context.CancelFunc
	redisClient  *redis.Client
}

func setup(ctx context.Context, configPath string) (*app, error) {
	// a missing .env file is fine, env vars may come from elsewhere
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded")
	}

	cfg, err := config.New(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration invalid:\n%w", err)
	}

	portal.CleanupArtifacts(cfg.Debug.Dir)

	states, err := state.NewManager(cfg.StateDir, clockwork.NewRealClock())
	if err != nil {
		return nil, err
	}

	a := &app{
		config:  cfg,
		states:  states,
		metrics: metrics.New(),
		users:   users.NewStore(),
	}

	if cfg.Notification.Enabled && len(cfg.Notification.Recipients) > 0 {
		notifier, err := notify.NewEmailNotifier(cfg.SMTP, cfg.Notification)
		if err != nil {
			return nil, err
		}
		a.notifier = notifier
	} else {
		slog.Info("email notifications disabled")
		a.notifier = notify.NopNotifier{}
	}

	if cfg.Redis.Addr != "" {
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		a.seen = notify.NewRedisSeen(a.redisClient, cfg.Redis.TTL)
	}

	for _, acc := range cfg.Accounts() {
		browserCfg := cfg.BrowserFor(acc)
		err := a.users.Add(users.User{
			Email: acc.Credentials.Email,
			Name:  acc.Name,
			Notification: users.NotificationSettings{
				EmailEnabled: cfg.NotificationFor(acc).Enabled,
				EmailAddress: acc.Credentials.Email,
			},
			Browser: users.BrowserSettings{
				BrowserType: browserCfg.Type,
				Headless:    browserCfg.Headless,
			},
		})
		if err != nil {
			slog.Warn(fmt.Sprintf("skipping duplicate account %s", acc.Credentials.Email))
		}
	}

	return a, nil
}

func (a *app) close() {
	for _, cancel := range a.cancels {
		cancel()
	}
	if a.redisClient != nil {
		a.redisClient.Close()
	}
}

// allocatorFor returns the browser allocator for an account. Accounts
// without a browser override share one default browser; an account with
// its own browser settings gets a dedicated one.
func (a *app) allocatorFor(ctx context.Context, acc config.Account) (context.Context, error) {
	if acc.Browser == nil {
		if a.defaultAlloc == nil {
			alloc, cancel, err := browser.NewAllocator(ctx, a.config.Browser)
			if err != nil {
				return nil, err
			}
			a.defaultAlloc = alloc
			a.cancels = append(a.cancels, cancel)
		}
		return a.defaultAlloc, nil
	}
	alloc, cancel, err := browser.NewAllocator(ctx, *acc.Browser)
	if err != nil {
		return nil, err
	}
	a.cancels = append(a.cancels, cancel)
	return alloc, nil
}

// notifierFor returns the notifier for an account, honoring a
// per-account notification override.
func (a *app) notifierFor(acc config.Account) (notify.Notifier, error) {
	if acc.Notification == nil {
		return a.notifier, nil
	}
	n := *acc.Notification
	if !n.Enabled || len(n.Recipients) == 0 {
		return notify.NopNotifier{}, nil
	}
	return notify.NewEmailNotifier(a.config.SMTP, n)
}

// runWatchers runs one watcher per configured account, each in its own
// browser tab, and blocks until all of them are done.
func (a *app) runWatchers(ctx context.Context) ([]watch.Stats, error) {
	accounts := a.config.Accounts()
	slog.Info(fmt.Sprintf("starting %d watcher(s)", len(accounts)))

	watchers := make([]*watch.Watcher, 0, len(accounts))
	for _, acc := range accounts {
		allocCtx, err := a.allocatorFor(ctx, acc)
		if err != nil {
			return nil, err
		}
		notifier, err := a.notifierFor(acc)
		if err != nil {
			return nil, err
		}
		session := portal.NewSession(allocCtx, a.config, acc)
		session.OnLoginRetry = a.metrics.LoginRetriesTotal.WithLabelValues(acc.Name).Inc
		watchers = append(watchers, watch.New(watch.Options{
			Account:    acc,
			Monitoring: a.config.Monitoring,
			Session:    session,
			Notifier:   notifier,
			Seen:       a.seen,
			States:     a.states,
			Metrics:    a.metrics,
		}))
	}

	wg := sync.WaitGroup{}
	wg.Add(len(watchers))
	for _, w := range watchers {
		go func(w *watch.Watcher) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				slog.Error(fmt.Sprintf("watcher failed: %v", err))
			}
		}(w)
	}
	wg.Wait()

	stats := make([]watch.Stats, 0, len(watchers))
	for _, w := range watchers {
		stats = append(stats, w.Stats())
	}
	return stats, nil
}

func getVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
			return buildInfo.Main.Version
		}
	}
	return version
}

func main() {
	cli := cli{
		Version: VersionFlag(getVersion()),
	}

	ctx := kong.Parse(&cli,
		kong.Vars{
			"version": string(cli.Version),
		})

	log.Debug = cli.Debug
	log.InitializeDefaultLogger()

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
