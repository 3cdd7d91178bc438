// Package cli is the interactive command surface of the sync client: a small
// REPL over the document service and the sync coordinator.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/dkarpov/papersync/internal/client/config"
	"github.com/dkarpov/papersync/internal/client/remote"
	"github.com/dkarpov/papersync/internal/client/services"
	"github.com/dkarpov/papersync/internal/client/store"
	syncx "github.com/dkarpov/papersync/internal/client/sync"
	"github.com/dkarpov/papersync/internal/logging"
	"github.com/dkarpov/papersync/internal/netx"
)

// App wires the client together and owns the session lifecycle. Document and
// sync services come alive at login, when the owner is known.
type App struct {
	config *config.Config
	logger logging.Logger
	store  *store.Store
	client *remote.Client

	bus      *syncx.Bus
	queue    *syncx.Queue
	retry    *syncx.RetryManager
	resolver *syncx.Resolver

	auth        services.AuthService
	docs        services.DocumentService
	coordinator *syncx.Coordinator

	userID        string
	online        atomic.Bool
	reader        *bufio.Reader
	cancelSession context.CancelFunc
}

// NewApp opens the local database and builds the pre-login wiring.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	st, err := store.Open(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening local database: %w", err)
	}

	client := remote.NewClient(c.ServerEndpointAddr, c.RequestTimeout, logger)
	bus := syncx.NewBus()
	queue := syncx.NewQueue(logger, bus)
	retry := syncx.NewRetryManager(syncx.DefaultRetryPolicy(), logger)
	resolver := syncx.NewResolver(queue, logger, bus)

	return &App{
		config:   c,
		logger:   logger,
		store:    st,
		client:   client,
		bus:      bus,
		queue:    queue,
		retry:    retry,
		resolver: resolver,
		auth:     services.NewAuthService(client, logger),
		reader:   bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) isLoggedIn() bool {
	return a.userID != ""
}

// startSession builds the per-owner services and starts the connectivity
// watcher and the sync loop.
func (a *App) startSession(ctx context.Context, userID string) {
	a.endSession()
	a.userID = userID

	a.docs = services.NewDocumentService(a.store, a.queue, a.resolver, a.logger, userID, a.config.FilesDir)

	objects, err := a.objectStore(ctx)
	if err != nil {
		fmt.Println("object storage unavailable:", err)
		return
	}
	a.coordinator = syncx.NewCoordinator(a.store, a.client, objects,
		a.queue, a.retry, a.resolver, a.logger, a.bus,
		userID, a.config.SyncInterval)

	sessionCtx, cancel := context.WithCancel(ctx)
	a.cancelSession = cancel

	watcher := netx.NewWatcher(a.client, a.config.OnlineCheckInterval, a.config.RequestTimeout)
	go watcher.Run(sessionCtx)
	go a.trackConnectivity(sessionCtx, watcher.C())
	go a.reportEvents(sessionCtx)
}

// trackConnectivity fans the watcher signal out to the prompt state and the
// coordinator's run loop.
func (a *App) trackConnectivity(ctx context.Context, transitions <-chan bool) {
	forward := make(chan bool, 1)
	go a.coordinator.Run(ctx, forward)

	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-transitions:
			if !ok {
				return
			}
			a.online.Store(up)
			select {
			case forward <- up:
			default:
			}
		}
	}
}

func (a *App) reportEvents(ctx context.Context) {
	events, cancel := a.bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case syncx.EventConflictDetected:
				fmt.Printf("\nconflict detected on %s, run 'conflicts' to inspect\n", e.SyncID)
			case syncx.EventError:
				fmt.Printf("\nsync error on %s: %s\n", e.SyncID, e.Err)
			}
		}
	}
}

func (a *App) objectStore(ctx context.Context) (remote.ObjectStore, error) {
	if a.config.ObjectStore == config.ObjectStoreS3 {
		return remote.NewS3ObjectStore(ctx, remote.S3Config{
			Region:    a.config.S3Region,
			Endpoint:  a.config.S3Endpoint,
			Bucket:    a.config.S3Bucket,
			AccessKey: a.config.S3AccessKey,
			SecretKey: a.config.S3SecretKey,
		})
	}
	return remote.NewPresignedObjectStore(a.client, a.config.RequestTimeout), nil
}

func (a *App) endSession() {
	if a.cancelSession != nil {
		a.cancelSession()
		a.cancelSession = nil
	}
	a.userID = ""
	a.docs = nil
	a.coordinator = nil
	a.retry.Reset()
}

// Run starts the REPL and blocks until the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	defer a.Close()
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
}

// Close releases the app's resources.
func (a *App) Close() {
	a.endSession()
	_ = a.store.Close()
}

func (a *App) status() string {
	if !a.isLoggedIn() {
		return "(signed out)"
	}
	mode := "offline"
	if a.online.Load() {
		mode = "online"
	}
	if a.coordinator != nil && a.coordinator.Paused() {
		mode = "paused"
	}
	return fmt.Sprintf("(%s %s)", a.userID, mode)
}
