package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/gqlmeta/internal/cli/config"
	"github.com/conduit-lang/gqlmeta/internal/graphql/builder"
	"github.com/conduit-lang/gqlmeta/internal/logger"
	"github.com/conduit-lang/gqlmeta/internal/orm/declare"
	"github.com/conduit-lang/gqlmeta/internal/orm/hooks"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider/sqlprovider"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
	"github.com/conduit-lang/gqlmeta/internal/web/auth"
	"github.com/conduit-lang/gqlmeta/internal/web/server"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the GraphQL server",
		Long: `Load the entity declarations, build the schema and serve it over HTTP.

Entities backed by sql connect to database.url; entities with cache enabled
use redis.addr when it is set. Async hooks run on a worker pool sized by
the hooks section. The server stops gracefully on SIGINT or SIGTERM.

Examples:
  gqlmeta serve
  gqlmeta serve --port 9090
  gqlmeta serve -c deploy/gqlmeta.yml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Interface to listen on (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides server.port)")

	return cmd
}

func serve(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Output:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	file, err := declare.Load(cfg.Schema.EntitiesFile)
	if err != nil {
		return err
	}

	backends := declare.Backends{Logger: log, CacheTTL: cfg.Redis.TTL}
	var shutdown []server.ShutdownHook
	closeAll := func() {
		for _, hook := range shutdown {
			hook(context.Background())
		}
	}

	if usesSQL(file) {
		db, dialect, err := sqlprovider.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
		if err != nil {
			return err
		}
		backends.DB, backends.Dialect = db, dialect
		shutdown = append(shutdown, func(context.Context) error { return db.Close() })
		log.Info("database connected", zap.String("driver", dialect.Name()))
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			closeAll()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		backends.Redis = client
		shutdown = append(shutdown, func(context.Context) error { return client.Close() })
		log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	// async hooks drain before the database and redis close
	queue := hooks.NewAsyncQueue(hooks.QueueConfig{
		Workers: cfg.Hooks.Workers,
		Buffer:  cfg.Hooks.QueueSize,
		Timeout: cfg.Hooks.Timeout,
	}, log.Named("hooks"))
	shutdown = append([]server.ShutdownHook{queue.Shutdown}, shutdown...)

	reg := schema.NewRegistry()
	if err := declare.Apply(reg, file, backends); err != nil {
		closeAll()
		return err
	}
	a, err := builder.Build(ctx, reg, builderOptions(cfg, log, builder.WithAsyncQueue(queue))...)
	if err != nil {
		closeAll()
		return err
	}

	var authService *auth.AuthService
	if cfg.Auth.JWTSecret != "" {
		authService = auth.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	}

	handler := server.NewHandler(a, server.HandlerConfig{
		GraphQLPath:  cfg.Server.GraphQLPath,
		Playground:   cfg.Server.Playground,
		AuthService:  authService,
		AuthRequired: cfg.Auth.Required,
		Logger:       log,
	})

	srvCfg := server.DefaultConfig()
	srvCfg.Address = cfg.Server.Address()
	srvCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	srv, err := server.New(srvCfg, handler, log)
	if err != nil {
		closeAll()
		return err
	}
	for _, hook := range shutdown {
		srv.RegisterHook(hook)
	}

	color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "Serving %d entities on http://%s%s\n",
		reg.Count(), cfg.Server.Address(), cfg.Server.GraphQLPath)
	return srv.Run(ctx)
}
