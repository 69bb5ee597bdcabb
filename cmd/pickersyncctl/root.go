package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/haavardk/pickersync/internal/config"
	"github.com/haavardk/pickersync/internal/mediaprovider"
	"github.com/haavardk/pickersync/internal/picker"
	"github.com/haavardk/pickersync/internal/provider"
	"github.com/haavardk/pickersync/internal/store"
)

// Global persistent flags, bound in newRootCmd.
var (
	flagConfigPath string
	flagDBPath     string
	flagVerbose    bool
)

const httpClientTimeout = 30 * time.Second

// cliContext bundles the wired collaborators a subcommand needs. Built
// once in PersistentPreRunE and threaded through cmd.Context().
type cliContext struct {
	logger     *slog.Logger
	db         *store.DB
	holder     *config.Holder
	registry   *provider.Registry
	notify     *picker.Notifier
	cloudSt    *picker.CloudState
	controller *picker.Controller
	idleSem    *semaphore.Weighted
}

type cliContextKey struct{}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pickersyncctl",
		Short:         "Media picker sync controller CLI",
		Long:          "Drives the picker sync controller: local/cloud media sync, cloud provider selection, and diagnostics.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := buildCLIContext(cmd.Context())
			if err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			cc, ok := cmd.Context().Value(cliContextKey{}).(*cliContext)
			if !ok {
				return nil
			}

			return cc.db.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path (TOML)")
	cmd.PersistentFlags().StringVar(&flagDBPath, "db", "picker.db", "sqlite database path")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newProviderCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newDiagnoseCmd())
	cmd.AddCommand(newIdleJobCmd())

	return cmd
}

func buildLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildCLIContext wires config, store, provider registry, notifier, cloud
// state, and the controller — the same collaborator graph a real host
// process assembles at startup.
func buildCLIContext(ctx context.Context) (*cliContext, error) {
	logger := buildLogger()

	cfg, err := config.LoadOrDefault(flagConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	holder := config.NewHolder(cfg, flagConfigPath)

	db, err := store.Open(ctx, flagDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	registry := provider.NewRegistry(logger)
	for authority, pc := range cfg.Providers {
		registry.Register(provider.Info{Authority: authority, PackageName: pc.PackageName})
	}

	notify := picker.NewNotifier(logger)
	if flagVerbose {
		notify.AddSink(loggingURISink{logger: logger})
	}

	cloudSt, err := picker.NewCloudState(ctx, holder.Store(), registry, db, db, notify, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing cloud state: %w", err)
	}

	cloudSt.SetStorageNotifier(loggingStorageNotifier{logger: logger})

	httpClient := &http.Client{Timeout: httpClientTimeout}
	local := mediaprovider.NewClient("com.android.providers.media.local", cfg.LocalProviderBaseURL, httpClient, noopTokenSource{}, logger)

	resolver := newCloudClientResolver(cfg, httpClient, logger)
	resolveCloud := func() picker.Provider {
		return resolver.resolve(cloudSt.Current())
	}

	idleSem := semaphore.NewWeighted(1)

	controller := picker.NewController(local, resolveCloud, db, db, cloudSt, notify, idleSem, logger)

	return &cliContext{
		logger:     logger,
		db:         db,
		holder:     holder,
		registry:   registry,
		notify:     notify,
		cloudSt:    cloudSt,
		controller: controller,
		idleSem:    idleSem,
	}, nil
}

func mustCLIContext(ctx context.Context) *cliContext {
	cc, ok := ctx.Value(cliContextKey{}).(*cliContext)
	if !ok {
		panic("pickersyncctl: cliContext missing from command context")
	}

	return cc
}

// cloudClientResolver lazily builds a mediaprovider.Client for whichever
// cloud authority is currently active, rebuilding only when the authority
// changes so repeated sync cycles reuse one HTTP client and connection
// pool.
type cloudClientResolver struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	authority string
	client    *mediaprovider.Client
}

func newCloudClientResolver(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *cloudClientResolver {
	return &cloudClientResolver{cfg: cfg, httpClient: httpClient, logger: logger}
}

func (r *cloudClientResolver) resolve(state picker.CloudProviderState) picker.Provider {
	if !state.IsSet() {
		return nil
	}

	authority := state.Info.Authority

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil && r.authority == authority {
		return r.client
	}

	pc, ok := r.cfg.Providers[authority]
	if !ok {
		r.logger.Warn("no provider endpoint configured", slog.String("authority", authority))
		return nil
	}

	r.authority = authority
	r.client = mediaprovider.NewClient(authority, pc.BaseURL, r.httpClient, noopTokenSource{}, r.logger)

	return r.client
}

// loggingURISink prints every published notification URI at info level —
// the simplest possible host-side wiring of picker.URISink, standing in
// for whatever UI-refresh mechanism a real host process would plug in.
type loggingURISink struct {
	logger *slog.Logger
}

func (s loggingURISink) NotifyURI(_ context.Context, uri string) {
	s.logger.Info("notification published", slog.String("uri", uri))
}

// loggingStorageNotifier logs the OS storage-service notification step
// rather than making it, standing in for whatever platform call would grant
// a cloud provider content access outside the privileged process this CLI
// is not running as.
type loggingStorageNotifier struct {
	logger *slog.Logger
}

func (s loggingStorageNotifier) NotifyStorageProvider(_ context.Context, authority string) error {
	s.logger.Info("storage service notified of cloud provider", slog.String("authority", authority))
	return nil
}

// noopTokenSource is a placeholder TokenSource for demo wiring; a real
// deployment would inject an OAuth2-backed source per provider.
type noopTokenSource struct{}

func (noopTokenSource) Token() (string, error) {
	if tok := os.Getenv("PICKERSYNC_BEARER_TOKEN"); tok != "" {
		return tok, nil
	}

	return "", nil
}
