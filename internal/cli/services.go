package cli

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/dropit-app/dropit/internal/api"
	"github.com/dropit-app/dropit/internal/app"
	"github.com/dropit-app/dropit/internal/auth"
	"github.com/dropit-app/dropit/internal/config"
)

// services are the pieces a one-shot command needs.
type services struct {
	cfg     *config.Config
	client  *api.Client
	session *auth.Session
}

// withServices builds the container for a single command, logging to
// stderr since no TUI owns the terminal. Storage is opened so the session
// persists between invocations.
func withServices(cmd *cobra.Command, opts *rootOptions, fn func(services) error) error {
	injector := app.NewContainer(app.Options{
		ConfigPath: opts.configPath,
		Flags:      cmd.Flags(),
		LogWriter:  cmd.ErrOrStderr(),
	})
	defer func() {
		if err := app.Shutdown(injector); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "dropit: shutdown: %v\n", err)
		}
	}()

	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		return err
	}
	session, err := do.Invoke[*auth.Session](injector)
	if err != nil {
		return err
	}
	return fn(services{
		cfg:     cfg,
		client:  do.MustInvoke[*api.Client](injector),
		session: session,
	})
}
