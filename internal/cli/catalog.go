package cli

import (
	"fmt"
	"strconv"
	"strings"

	"emctl/internal/catalog"
	"emctl/internal/model"

	"github.com/spf13/cobra"
)

func newCatalogCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse users, projects and activities of the company",
	}
	cmd.AddCommand(newCatalogListCmd(app))
	return cmd
}

func newCatalogListCmd(app *App) *cobra.Command {
	var (
		kind   string
		filter string
		active string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities of one kind, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, ok := model.ParseKind(kind)
			if !ok {
				return writeErr(cmd, fmt.Errorf("unknown kind %q (want users|projects|activities)", kind))
			}
			activeFilter, err := parseOptionalBool(active)
			if err != nil {
				return writeErr(cmd, fmt.Errorf("--active: %w", err))
			}
			if activeFilter != nil && k != model.KindProject {
				return writeErr(cmd, fmt.Errorf("--active only applies to projects"))
			}

			c, err := app.client(true)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmd.Context()
			co, err := app.resolveCompany(ctx, c)
			if err != nil {
				return writeErr(cmd, err)
			}

			var data any
			switch k {
			case model.KindUser:
				users, err := c.Users(ctx, co.ID)
				if err != nil {
					return writeErr(cmd, err)
				}
				data = catalog.FilterUsers(users, filter)
			case model.KindProject:
				projects, err := c.Projects(ctx, co.ID)
				if err != nil {
					return writeErr(cmd, err)
				}
				data = catalog.FilterProjects(projects, filter, activeFilter)
			case model.KindActivity:
				activities, err := c.Activities(ctx, co.ID)
				if err != nil {
					return writeErr(cmd, err)
				}
				data = catalog.FilterActivities(activities, filter)
			}
			return writeOut(cmd, app, map[string]any{"data": data})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "projects", "Entity kind (users|projects|activities)")
	cmd.Flags().StringVar(&filter, "filter", "", "Case-insensitive substring filter")
	cmd.Flags().StringVar(&active, "active", "", "Projects only: true|false (unset lists all)")
	return cmd
}

// parseOptionalBool maps "" to nil and anything else through strconv.ParseBool.
func parseOptionalBool(s string) (*bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("want true or false, got %q", s)
	}
	return &b, nil
}
