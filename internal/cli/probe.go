package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperr "github.com/dropit-app/dropit/internal/errors"
)

func newProbeCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, opts, func(s services) error {
				report := s.client.ProbeAll(cmd.Context())
				out := cmd.OutOrStdout()
				if asJSON {
					if err := writeJSON(out, report); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(out, "backend   %s\n", s.client.BaseURL())
					fmt.Fprintf(out, "homepage  %s\n", status(report.HomePage))
					fmt.Fprintf(out, "markers   %s\n", status(report.MarkerAPI))
					fmt.Fprintf(out, "auth      %s\n", status(report.AuthAPI))
				}
				if !report.OK() {
					return apperr.Rejected("backend checks failed: " + strings.Join(report.Failed(), ", "))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}
