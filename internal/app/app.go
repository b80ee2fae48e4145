package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/pflag"

	"github.com/dropit-app/dropit/internal/api"
	"github.com/dropit-app/dropit/internal/auth"
	"github.com/dropit-app/dropit/internal/config"
	"github.com/dropit-app/dropit/internal/geo"
	"github.com/dropit-app/dropit/internal/prefs"
	"github.com/dropit-app/dropit/internal/state"
	"github.com/dropit-app/dropit/internal/ui"
)

// Options configure the DropIt application.
type Options struct {
	ConfigPath string         // empty uses ~/.config/dropit/config.toml
	Flags      *pflag.FlagSet // changed flags override the config file
	// Location, when set, is used as the user location at start-up.
	Location *geo.Point
	// LogWriter replaces the log file. Commands that do not take over the
	// terminal log to stderr.
	LogWriter io.Writer
	// MemoryStorage keeps everything in memory instead of Badger.
	MemoryStorage bool
	// HealthEvery is the backend probe interval; zero uses the default.
	HealthEvery time.Duration
}

// Run boots the DropIt TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	injector := NewContainer(opts)
	defer func() {
		if err := Shutdown(injector); err != nil {
			fmt.Fprintf(os.Stderr, "dropit: shutdown: %v\n", err)
		}
	}()

	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		return err
	}
	log, err := do.Invoke[*LoggerHandle](injector)
	if err != nil {
		return err
	}
	if _, err := do.Invoke[*StorageHandle](injector); err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	client := do.MustInvoke[*api.Client](injector)
	session := do.MustInvoke[*auth.Session](injector)
	collections := do.MustInvoke[*state.CollectionStore](injector)
	uiStore := do.MustInvoke[*state.UIStore](injector)
	maps := do.MustInvoke[*state.MapStore](injector)
	view := do.MustInvoke[*ui.MapView](injector)

	restore(log, collections, maps, uiStore)

	if loc := opts.Location; loc != nil {
		if err := setLocation(collections, maps, *loc); err != nil {
			return err
		}
	}

	// Refresh the cached profile; an expired session is cleared by the
	// refresh path.
	if session.IsValid() {
		go func() {
			if _, err := session.CurrentUser(ctx); err != nil {
				log.Info("profile refresh failed", "error", err)
			}
		}()
	}

	if cfg.AutoRefreshMinutes > 0 {
		collections.StartAutoRefresh(ctx, time.Duration(cfg.AutoRefreshMinutes)*time.Minute)
		defer collections.StopAutoRefresh()
	}

	StartHealthPoller(ctx, client, uiStore, opts.HealthEvery, log.With("component", "health"))

	err = ui.Run(ui.Options{
		Context:     ctx,
		Collections: collections,
		Map:         maps,
		UI:          uiStore,
		View:        view,
		Session:     session,
		Prober:      client,
		Config:      cfg,
		Prefs:       prefs.Load(cfg.PrefsPath()),
		PrefsPath:   cfg.PrefsPath(),
		Logger:      log.With("component", "tui"),
	})

	persist(log, collections, maps, uiStore)
	return err
}

// setLocation makes p the user location and centers the map on it.
func setLocation(collections *state.CollectionStore, maps *state.MapStore, p geo.Point) error {
	if err := collections.SetUserLocation(p.Lat, p.Lng); err != nil {
		return err
	}
	if err := maps.SetCurrentLocation(p.Lat, p.Lng); err != nil {
		return err
	}
	return maps.MoveTo(p.Lat, p.Lng, state.DefaultZoom)
}

// restore loads persisted store state. Failures are logged; the stores keep
// their defaults.
func restore(log *LoggerHandle, collections *state.CollectionStore, maps *state.MapStore, uiStore *state.UIStore) {
	if err := collections.RestoreState(); err != nil {
		log.Warn("restore collection state failed", "error", err)
	}
	if err := collections.LoadBookmarks(); err != nil {
		log.Warn("load bookmarks failed", "error", err)
	}
	if err := maps.RestoreState(); err != nil {
		log.Warn("restore map state failed", "error", err)
	}
	uiStore.RestoreUIState()
}

// persist saves store state for the next session.
func persist(log *LoggerHandle, collections *state.CollectionStore, maps *state.MapStore, uiStore *state.UIStore) {
	if err := collections.SaveState(); err != nil {
		log.Warn("save collection state failed", "error", err)
	}
	if err := maps.SaveState(); err != nil {
		log.Warn("save map state failed", "error", err)
	}
	uiStore.SaveUIState()
}

// Shutdown shuts the container down, closing storage and the log file.
func Shutdown(injector *do.RootScope) error {
	if report := injector.Shutdown(); report != nil && !report.Succeed {
		return report
	}
	return nil
}
