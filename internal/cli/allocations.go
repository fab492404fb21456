package cli

import (
	"fmt"
	"strings"
	"time"

	"emctl/internal/allocation"
	"emctl/internal/model"

	"github.com/spf13/cobra"
)

type allocationFlags struct {
	relation  string
	by        string
	pivot     string
	members   []string
	cached    bool
	allowDrop bool
}

func (f *allocationFlags) register(cmd *cobra.Command, withMembers bool) {
	cmd.Flags().StringVar(&f.relation, "relation", allocation.UserProject.Name, "Relation (user-project|activity-project)")
	cmd.Flags().StringVar(&f.by, "by", "project", "Pivot side (project|user|activity)")
	cmd.Flags().StringVar(&f.pivot, "pivot", "", "Pivot id or exact name")
	_ = cmd.MarkFlagRequired("pivot")
	if withMembers {
		cmd.Flags().StringArrayVar(&f.members, "member", nil, "Member id or exact name (repeatable)")
		cmd.Flags().BoolVar(&f.allowDrop, "allow-drop", false, "Write even when current members are missing from the catalog (they are removed)")
	}
}

// allocationView is the command output for one pivot.
type allocationView struct {
	CompanyID string         `json:"companyId"`
	Relation  string         `json:"relation"`
	Mode      string         `json:"mode"`
	Pivot     model.Entity   `json:"pivot"`
	Members   []model.Entity `json:"members"`
	MemberIDs []string       `json:"memberIds"`
	Changed   *bool          `json:"changed,omitempty"`
	Dropped   []string       `json:"dropped,omitempty"`
	Cached    bool           `json:"cached,omitempty"`
	FetchedAt *time.Time     `json:"fetchedAt,omitempty"`
}

func viewOf(ctrl *allocation.Controller) allocationView {
	snap, _ := ctrl.Snapshot()
	ids := snap.MemberIDs
	if ids == nil {
		ids = []string{}
	}
	return allocationView{
		CompanyID: ctrl.CompanyID(),
		Relation:  ctrl.Relation().Name,
		Mode:      ctrl.Relation().ModeLabel(ctrl.Mode()),
		Pivot:     snap.Pivot,
		Members:   ctrl.Editor().Entities(),
		MemberIDs: ids,
	}
}

func newRelationsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "relations",
		Short: "List the editable allocation relations",
		RunE: func(cmd *cobra.Command, args []string) error {
			type side struct {
				Mode    string     `json:"mode"`
				Pivot   model.Kind `json:"pivot"`
				Members model.Kind `json:"members"`
				Path    string     `json:"path"`
				Field   string     `json:"field"`
			}
			type rel struct {
				Name  string `json:"name"`
				Modes []side `json:"modes"`
			}
			out := []rel{}
			for _, r := range allocation.Relations() {
				x := rel{Name: r.Name}
				for _, m := range []allocation.Mode{allocation.ByA, allocation.ByB} {
					ep := r.Endpoint(m)
					x.Modes = append(x.Modes, side{
						Mode:    r.ModeLabel(m),
						Pivot:   r.PivotKind(m),
						Members: r.MemberKind(m),
						Path:    ep.Path,
						Field:   ep.Field,
					})
				}
				out = append(out, x)
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
}

func newAllocationsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "allocations",
		Aliases: []string{"alloc"},
		Short:   "Show and replace allocation memberships",
		Long: strings.TrimSpace(`
Every write sends the full member set of the pivot; the server replaces what it had.
add and remove are computed locally from the current members.`),
	}
	cmd.AddCommand(newAllocationsShowCmd(app))
	cmd.AddCommand(newAllocationsEditCmd(app, "set", "Replace the members of a pivot (no --member clears it)"))
	cmd.AddCommand(newAllocationsEditCmd(app, "add", "Add members to a pivot"))
	cmd.AddCommand(newAllocationsEditCmd(app, "remove", "Remove members from a pivot"))
	return cmd
}

func newAllocationsShowCmd(app *App) *cobra.Command {
	var f allocationFlags
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current members of a pivot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, cached, err := app.openAllocation(cmd, f)
			if err != nil {
				return writeErr(cmd, err)
			}
			view := viewOf(ctrl)
			if cached {
				snap, _ := ctrl.Snapshot()
				view.Cached = true
				view.FetchedAt = &snap.FetchedAt
			}
			return writeOut(cmd, app, map[string]any{"data": view})
		},
	}
	f.register(cmd, false)
	cmd.Flags().BoolVar(&f.cached, "cached", false, "Use the locally cached member set when there is one")
	return cmd
}

func newAllocationsEditCmd(app *App, verb, short string) *cobra.Command {
	var f allocationFlags
	cmd := &cobra.Command{
		Use:   verb,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verb != "set" && len(f.members) == 0 {
				return writeErr(cmd, fmt.Errorf("%s needs at least one --member", verb))
			}
			ctrl, _, err := app.openAllocation(cmd, f)
			if err != nil {
				return writeErr(cmd, err)
			}
			members := ctrl.Editor().Catalog()
			targets := make([]model.Entity, 0, len(f.members))
			for _, m := range f.members {
				e, err := resolveEntity(members, m)
				if err != nil {
					return writeErr(cmd, err)
				}
				targets = append(targets, e)
			}

			if err := ctrl.Edit(); err != nil {
				return writeErr(cmd, err)
			}
			ed := ctrl.Editor()
			switch verb {
			case "set":
				for _, id := range ed.IDs() {
					ed.RemoveID(id)
				}
				for _, e := range targets {
					ed.AddID(e.ID)
				}
			case "add":
				for _, e := range targets {
					ed.AddID(e.ID)
				}
			case "remove":
				for _, e := range targets {
					ed.RemoveID(e.ID)
				}
			}

			changed := ed.Dirty()
			if !changed {
				_ = ctrl.Cancel()
				view := viewOf(ctrl)
				view.Changed = &changed
				return writeOut(cmd, app, map[string]any{"data": view})
			}
			if err := app.checkUnresolved(cmd, ctrl, f.allowDrop); err != nil {
				_ = ctrl.Cancel()
				return writeErr(cmd, err)
			}
			ticket, err := ctrl.Confirm(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			view := viewOf(ctrl)
			view.Changed = &changed
			view.Dropped = ticket.Dropped
			return writeOut(cmd, app, map[string]any{"data": view})
		},
	}
	f.register(cmd, true)
	return cmd
}

// checkUnresolved guards a write against removing members the server returned
// but the catalog does not know yet. The catalogs are refetched once; members
// still unknown after that block the write unless allowDrop is set.
func (app *App) checkUnresolved(cmd *cobra.Command, ctrl *allocation.Controller, allowDrop bool) error {
	if len(ctrl.Unresolved()) == 0 {
		return nil
	}
	ctx := cmd.Context()
	c, err := app.client(true)
	if err != nil {
		return err
	}
	cats, err := app.loadCatalogs(ctx, c, ctrl.CompanyID(), true)
	if err != nil {
		return err
	}
	ctrl.Reload(cats)
	missing := ctrl.Unresolved()
	if len(missing) == 0 || allowDrop {
		return nil
	}
	return fmt.Errorf("current members %s are not in the %s catalog and would be removed; rerun with --allow-drop to write anyway",
		strings.Join(missing, ", "), ctrl.MemberKind())
}

// openAllocation loads catalogs, resolves the pivot and shows its members.
// cached reports whether the member set came from the local cache.
func (app *App) openAllocation(cmd *cobra.Command, f allocationFlags) (ctrl *allocation.Controller, cached bool, err error) {
	rel, ok := allocation.RelationByName(f.relation)
	if !ok {
		return nil, false, fmt.Errorf("unknown relation %q (run `emctl relations`)", f.relation)
	}
	mode, err := rel.ParseMode(f.by)
	if err != nil {
		return nil, false, err
	}
	ctx := cmd.Context()
	c, err := app.client(true)
	if err != nil {
		return nil, false, err
	}
	co, err := app.resolveCompany(ctx, c)
	if err != nil {
		return nil, false, err
	}
	cats, err := app.loadCatalogs(ctx, c, co.ID, false)
	if err != nil {
		return nil, false, err
	}

	opts := allocation.Options{
		Relation:  rel,
		CompanyID: co.ID,
		Catalogs:  cats,
		Backend:   c,
		Notifier:  stderrNotifier(cmd),
		Logger:    app.logger,
		Timeout:   app.cfg.RequestTimeout,
	}
	if cache, ok := app.cache(); ok {
		opts.Cache = cache
	}
	ctrl = allocation.NewController(opts)
	ctrl.SelectMode(mode)

	pivot, err := resolveEntity(ctrl.Selector().PivotCatalog(), f.pivot)
	if err != nil {
		return nil, false, err
	}
	ctrl.SetPivotName(pivot.ID)
	if f.cached {
		cached, err = ctrl.ShowCached(ctx, 0)
	} else {
		err = ctrl.Show(ctx)
	}
	if err != nil {
		return nil, false, err
	}
	return ctrl, cached, nil
}

// stderrNotifier prints success notices; failures come back as errors.
func stderrNotifier(cmd *cobra.Command) allocation.Notifier {
	return allocation.NotifierFunc(func(n allocation.Notice) {
		if n.Level == allocation.LevelError {
			return
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", n.Title, n.Message)
	})
}
