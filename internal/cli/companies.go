package cli

import (
	"emctl/internal/store"

	"github.com/spf13/cobra"
)

func newCompaniesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "companies",
		Short: "Company commands",
	}
	cmd.AddCommand(newCompaniesListCmd(app))
	cmd.AddCommand(newCompaniesUseCmd(app))
	return cmd
}

func newCompaniesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the companies visible to the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client(true)
			if err != nil {
				return writeErr(cmd, err)
			}
			companies, err := c.Companies(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": companies})
		},
	}
}

func newCompaniesUseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "use <company-id|name>",
		Short: "Make a company the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client(true)
			if err != nil {
				return writeErr(cmd, err)
			}
			app.cfg.Company = args[0]
			co, err := app.resolveCompany(cmd.Context(), c)
			if err != nil {
				return writeErr(cmd, err)
			}
			fileCfg, err := store.LoadFileConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			fileCfg.Company = co.ID
			if err := store.SaveConfig(fileCfg); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": co})
		},
	}
}
