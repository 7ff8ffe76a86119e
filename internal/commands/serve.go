package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/balkashynov/tasktime/internal/access"
	"github.com/balkashynov/tasktime/internal/aggregate"
	"github.com/balkashynov/tasktime/internal/auth"
	"github.com/balkashynov/tasktime/internal/db"
	"github.com/balkashynov/tasktime/internal/log"
	"github.com/balkashynov/tasktime/internal/server"
	"github.com/balkashynov/tasktime/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session server",
	Long: `Run the HTTP server that owns time sessions.

Examples:
  tasktime serve
  tasktime serve --addr :8080
  TASKTIME_AUTH_JWT_SECRET=... tasktime serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	serveCmd.Flags().String("db", "", "server database path (default from config)")
	serveCmd.Flags().Bool("verbose-sql", false, "log every SQL statement")

	_ = v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("database.path", serveCmd.Flags().Lookup("db"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verbose, _ := cmd.Flags().GetBool("verbose-sql")
	conn, err := db.OpenServer(cfg.Database.Path, db.Options{Verbose: verbose})
	if err != nil {
		return fmt.Errorf("open server database: %w", err)
	}
	defer func() { _ = db.Close(conn) }()

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.ErrorErr(log.CatTrace, "tracing shutdown failed", err)
		}
	}()

	if cfg.Auth.JWTSecret == "dev-secret" {
		log.Warn(log.CatAuth, "using the default signing secret; set auth.jwt_secret in production")
	}

	store := db.NewSessionStore(conn)
	filter := access.NewFilter(db.NewTaskRegistry(conn))
	engine := aggregate.NewEngine(store, filter, provider.Tracer())

	if log.ParseLevel(cfg.Log.Level) != log.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := server.New(server.Deps{
		Sessions:  store,
		Access:    filter,
		Batch:     engine,
		Callers:   auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Tracer:    provider.Tracer(),
		RateLimit: cfg.RateLimit,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "tasktime server listening on %s\n", cfg.Server.Addr)
	return srv.Run(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
}
