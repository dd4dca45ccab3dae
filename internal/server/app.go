// Package server initializes and runs the zerodrop BurnStore server. It
// wires the database, blob backend, and domain services together, then
// runs the HTTP API and the expiry sweeper side by side until asked to
// shut down.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/zerodrop/zerodrop/internal/common"
	"github.com/zerodrop/zerodrop/internal/logging"
	"github.com/zerodrop/zerodrop/internal/server/blobstore"
	"github.com/zerodrop/zerodrop/internal/server/config"
	"github.com/zerodrop/zerodrop/internal/server/httpapi"
	"github.com/zerodrop/zerodrop/internal/server/repositories/repomanager"
	"github.com/zerodrop/zerodrop/internal/server/services"
)

// App owns the wired dependency graph: the database, the blobstore, the
// BurnStore and RateLimiter domain services, the HTTP server, and the
// background expiry sweeper.
type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
	sweeper    *services.Sweeper
}

// NewApp opens the database, runs migrations, constructs the blobstore and
// domain services, and returns an App ready to Run.
func NewApp(c *config.Config) (*App, error) {
	slogHandler := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogHandler)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("repository manager init error: %w", err)
	}
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := newBlobStore(context.Background(), c)
	if err != nil {
		return nil, fmt.Errorf("blobstore init error: %w", err)
	}

	notesRepo := rm.Notes(db)
	filesRepo := rm.Files(db)
	tokensRepo := rm.Tokens(db)
	rateLimitRepo := rm.RateLimit(db)

	store := services.NewBurnStore(notesRepo, filesRepo, tokensRepo, blobs, logger, c.MaxExpiryHorizon)
	limiter := services.NewRateLimiter(rateLimitRepo, logger, common.RateLimitWindow)
	sweeper := services.NewSweeper(notesRepo, filesRepo, tokensRepo, rateLimitRepo, blobs, logger, c.SweepInterval)

	httpServer := httpapi.NewServer(httpapi.Deps{
		Config:      c,
		BurnStore:   store,
		RateLimiter: limiter,
		Logger:      logger,
	})

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		httpServer: httpServer,
		sweeper:    sweeper,
	}, nil
}

// newBlobStore constructs the Store backend selected by cfg.BlobBackend.
func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendS3:
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			Region:         cfg.S3Region,
			Bucket:         cfg.S3Bucket,
			BaseEndpoint:   cfg.S3BaseEndpoint,
			AccessKey:      cfg.S3RootUser,
			SecretKey:      cfg.S3RootPassword,
			ForcePathStyle: true,
		})
	default:
		return blobstore.NewLocalStore(cfg.LocalBlobDir)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the HTTP server and the expiry sweeper and blocks until a
// shutdown signal arrives, then waits for both to finish before closing
// the database handle.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
