package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newCacheCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the local catalog cache",
	}
	cmd.AddCommand(newCacheStatusCmd(app))
	cmd.AddCommand(newCacheClearCmd(app))
	return cmd
}

func newCacheStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List cached catalogs and the number of cached member sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok := app.cache()
			if !ok {
				return writeErr(cmd, errors.New("cache unavailable"))
			}
			catalogs, snapshots, err := c.Status(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"path":            c.Path(),
				"ttl":             app.cfg.CatalogTTL.String(),
				"catalogs":        catalogs,
				"memberSnapshots": snapshots,
			}})
		},
	}
}

func newCacheClearCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [company-id]",
		Short: "Drop cached data (all companies unless an id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok := app.cache()
			if !ok {
				return writeErr(cmd, errors.New("cache unavailable"))
			}
			companyID := ""
			if len(args) == 1 {
				companyID = args[0]
			}
			if err := c.Clear(cmd.Context(), companyID); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"cleared": true, "companyId": companyID}})
		},
	}
}
