package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/samber/do/v2"

	"github.com/dropit-app/dropit/internal/api"
	"github.com/dropit-app/dropit/internal/auth"
	"github.com/dropit-app/dropit/internal/config"
	"github.com/dropit-app/dropit/internal/geo"
	"github.com/dropit-app/dropit/internal/kv"
	"github.com/dropit-app/dropit/internal/logger"
	"github.com/dropit-app/dropit/internal/state"
	"github.com/dropit-app/dropit/internal/ui"
)

// NewContainer creates the DI container with all providers registered.
// Services are built lazily on first invoke.
func NewContainer(opts Options) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, opts)
	do.Provide(injector, ProvideConfig)
	do.Provide(injector, ProvideLogger)
	do.Provide(injector, ProvideStorage)

	// Remote access
	do.Provide(injector, ProvideAPIClient)
	do.Provide(injector, ProvideSession)

	// Stores
	do.Provide(injector, ProvideCollectionStore)
	do.Provide(injector, ProvideUIStore)
	do.Provide(injector, ProvideMapView)
	do.Provide(injector, ProvideMapStore)

	return injector
}

// ProvideConfig loads the configuration file, environment and flags.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	opts := do.MustInvoke[Options](i)
	cfg, err := config.Load(opts.ConfigPath, opts.Flags)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// LoggerHandle wraps the logger with the file it writes to.
type LoggerHandle struct {
	*slog.Logger
	file *os.File
}

// Shutdown implements do.Shutdownable.
func (h *LoggerHandle) Shutdown() error {
	if h.file == nil {
		return nil
	}
	return h.file.Close()
}

// ProvideLogger provides the structured logger. The TUI owns the terminal,
// so logs go to <data_dir>/dropit.log unless Options.LogWriter is set.
func ProvideLogger(i do.Injector) (*LoggerHandle, error) {
	opts := do.MustInvoke[Options](i)
	cfg := do.MustInvoke[*config.Config](i)

	var (
		w    io.Writer = opts.LogWriter
		file *os.File
	)
	if w == nil {
		f, err := logger.OpenFile(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		w, file = f, f
	}

	log := logger.New(logger.Config{
		Writer: w,
		Format: cfg.LogFormat,
		Level:  logger.ParseLevel(cfg.LogLevel),
	})
	log.Info("logger initialized", "level", cfg.LogLevel, "api_base", cfg.APIBase)
	return &LoggerHandle{Logger: log, file: file}, nil
}

// StorageHandle wraps the key/value store with shutdown capability.
type StorageHandle struct {
	kv.Storage
	closer io.Closer
}

// Shutdown implements do.Shutdownable.
func (h *StorageHandle) Shutdown() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

// ProvideStorage opens the Badger database under the data directory, or an
// in-memory store when Options.MemoryStorage is set.
func ProvideStorage(i do.Injector) (*StorageHandle, error) {
	opts := do.MustInvoke[Options](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	if opts.MemoryStorage {
		log.Debug("using in-memory storage")
		return &StorageHandle{Storage: kv.NewMemory()}, nil
	}

	db, err := kv.OpenBadger(cfg.StorageDir(), log.Logger)
	if err != nil {
		return nil, err
	}
	log.Info("storage opened", "path", cfg.StorageDir())
	return &StorageHandle{Storage: db, closer: db}, nil
}

// ProvideAPIClient provides the HTTP client for the DropIt backend.
func ProvideAPIClient(i do.Injector) (*api.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	client, err := api.NewClient(cfg.APIBase, api.Options{
		Timeout:           cfg.RequestTimeout,
		ProbeTimeout:      cfg.ProbeTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            log.With("component", "api"),
	})
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}
	return client, nil
}

// ProvideSession provides the auth session and installs it as the client's
// authorizer.
func ProvideSession(i do.Injector) (*auth.Session, error) {
	client := do.MustInvoke[*api.Client](i)
	storage := do.MustInvoke[*StorageHandle](i)
	log := do.MustInvoke[*LoggerHandle](i)

	session := auth.NewSession(client, storage, auth.Options{Logger: log.With("component", "auth")})
	client.SetAuthorizer(session)
	return session, nil
}

// ProvideCollectionStore provides the collection store. Bookmarks are not
// loaded here; Run restores persisted state explicitly.
func ProvideCollectionStore(i do.Injector) (*state.CollectionStore, error) {
	cfg := do.MustInvoke[*config.Config](i)
	client := do.MustInvoke[*api.Client](i)
	storage := do.MustInvoke[*StorageHandle](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return state.NewCollectionStore(client, storage, state.CollectionOptions{
		NearbyRadiusKm: cfg.NearbyRadiusKm,
		Logger:         log.With("component", "collections"),
	}), nil
}

// ProvideUIStore provides the UI store.
func ProvideUIStore(i do.Injector) (*state.UIStore, error) {
	storage := do.MustInvoke[*StorageHandle](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return state.NewUIStore(storage, state.UIOptions{Logger: log.With("component", "ui")}), nil
}

// ProvideMapView provides the terminal map widget.
func ProvideMapView(i do.Injector) (*ui.MapView, error) {
	return ui.NewMapView(), nil
}

// ProvideMapStore provides the map store with the map view installed. The
// view reports ready once the TUI knows its size.
func ProvideMapStore(i do.Injector) (*state.MapStore, error) {
	cfg := do.MustInvoke[*config.Config](i)
	client := do.MustInvoke[*api.Client](i)
	collections := do.MustInvoke[*state.CollectionStore](i)
	uiStore := do.MustInvoke[*state.UIStore](i)
	storage := do.MustInvoke[*StorageHandle](i)
	view := do.MustInvoke[*ui.MapView](i)
	log := do.MustInvoke[*LoggerHandle](i)

	center := geo.Point{Lat: cfg.DefaultLat, Lng: cfg.DefaultLng}
	if !geo.Valid(center) {
		log.Warn("invalid default map center, using built-in", "lat", cfg.DefaultLat, "lng", cfg.DefaultLng)
		center = state.DefaultCenter
	}

	maps := state.NewMapStore(client, collections, uiStore, storage, state.MapOptions{
		DefaultCenter: center,
		DefaultZoom:   cfg.DefaultZoom,
		Logger:        log.With("component", "map"),
	})
	maps.SetMapInstance(view)
	return maps, nil
}
