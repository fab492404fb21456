package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"emctl/internal/allocation"
	"emctl/internal/catalog"
	"emctl/internal/store"
	"emctl/internal/tui"

	"github.com/spf13/cobra"
)

type editorArgs struct {
	relation string
	by       string
	pivot    string
}

func newEditCmd(app *App) *cobra.Command {
	var a editorArgs
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Open the interactive allocation editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEditor(cmd, app, a)
		},
	}
	cmd.Flags().StringVar(&a.relation, "relation", "", "Relation to open (user-project|activity-project)")
	cmd.Flags().StringVar(&a.by, "by", "", "Pivot side to open (project|user|activity)")
	cmd.Flags().StringVar(&a.pivot, "pivot", "", "Pivot id or name to show on start")
	return cmd
}

func runEditor(cmd *cobra.Command, app *App, a editorArgs) error {
	if a.relation != "" {
		rel, ok := allocation.RelationByName(a.relation)
		if !ok {
			return writeErr(cmd, fmt.Errorf("unknown relation %q (run `emctl relations`)", a.relation))
		}
		if a.by != "" {
			if _, err := rel.ParseMode(a.by); err != nil {
				return writeErr(cmd, err)
			}
		}
	}

	// The editor owns the terminal; logs go to a file.
	if app.cfg.LogFile == "" {
		dir, err := store.ConfigDir()
		if err != nil {
			return writeErr(cmd, err)
		}
		f, err := openLogFile(filepath.Join(dir, "emctl.log"))
		if err != nil {
			return writeErr(cmd, err)
		}
		app.close()
		app.logSink = f
		app.logger = newLogger(f, app.cfg.LogLevel)
	}

	ctx := cmd.Context()
	c, err := app.client(true)
	if err != nil {
		return writeErr(cmd, err)
	}
	co, err := app.resolveCompany(ctx, c)
	if err != nil {
		return writeErr(cmd, err)
	}
	cats, err := app.loadCatalogs(ctx, c, co.ID, false)
	if err != nil {
		return writeErr(cmd, err)
	}

	state, err := store.LoadEditorState()
	if err != nil {
		app.logger.Warn("editor state unavailable", "err", err)
		state = &store.EditorState{}
	}
	if last, ok := state.View(co.ID); ok && a.relation == "" && a.by == "" && a.pivot == "" {
		a = editorArgs{relation: last.Relation, by: last.Mode, pivot: last.PivotID}
	}

	opts := tui.Options{
		CompanyID:   co.ID,
		CompanyName: co.Name,
		Catalogs:    cats,
		Backend:     c,
		Reload: func(ctx context.Context) (catalog.Set, error) {
			return app.loadCatalogs(ctx, c, co.ID, true)
		},
		Logger:   app.logger,
		Timeout:  app.cfg.RequestTimeout,
		Relation: a.relation,
		Mode:     a.by,
		Pivot:    a.pivot,
	}
	if cache, ok := app.cache(); ok {
		opts.Cache = cache
	}
	app.logger.Info("editor started", "company", co.ID, "users", cats.Users.Len(), "projects", cats.Projects.Len(), "activities", cats.Activities.Len())
	last, err := tui.Run(opts)
	if err != nil {
		return writeErr(cmd, err)
	}
	state.SetView(co.ID, store.EditorView{Relation: last.Relation, Mode: last.Mode, PivotID: last.PivotID})
	if err := store.SaveEditorState(state); err != nil {
		app.logger.Warn("could not save editor state", "err", err)
	}
	return nil
}
