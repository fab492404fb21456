package cli

import (
	"context"
	"errors"
	"strings"

	"emctl/internal/api"
	"emctl/internal/catalog"
	"emctl/internal/model"
	"emctl/internal/store"
)

func (app *App) client(authenticated bool) (*api.Client, error) {
	opts := api.Options{
		BaseURL: app.cfg.BaseURL,
		Timeout: app.cfg.RequestTimeout,
		Logger:  app.logger,
	}
	if authenticated {
		if app.cfg.Token == "" {
			return nil, errors.New("not logged in; run `emctl login` or set EMCTL_TOKEN")
		}
		opts.Token = app.cfg.Token
	}
	return api.New(opts)
}

func (app *App) cache() (store.Cache, bool) {
	c, err := store.OpenCache()
	if err != nil {
		app.logger.Warn("cache unavailable", "err", err)
		return store.Cache{}, false
	}
	return c, true
}

// resolveCompany picks the configured company by id or name. With nothing
// configured, a single visible company is used.
func (app *App) resolveCompany(ctx context.Context, c *api.Client) (model.Company, error) {
	companies, err := c.Companies(ctx)
	if err != nil {
		return model.Company{}, err
	}
	want := strings.TrimSpace(app.cfg.Company)
	if want == "" {
		if len(companies) == 1 {
			return companies[0], nil
		}
		names := make([]string, 0, len(companies))
		for _, co := range companies {
			names = append(names, co.Name)
		}
		return model.Company{}, noCompanyError{choices: names}
	}
	for _, co := range companies {
		if co.ID == want {
			return co, nil
		}
	}
	var matches []model.Company
	for _, co := range companies {
		if strings.EqualFold(co.Name, want) {
			matches = append(matches, co)
		}
	}
	switch len(matches) {
	case 0:
		return model.Company{}, errNotFound("company", want)
	case 1:
		co := matches[0]
		if !co.IsAdminOrHigher() {
			app.logger.Warn("company role may not allow editing allocations", "company", co.Name, "role", co.Role)
		}
		return co, nil
	}
	ids := make([]string, 0, len(matches))
	for _, co := range matches {
		ids = append(ids, co.ID)
	}
	return model.Company{}, errAmbiguous("company", want, ids)
}

func (app *App) loadCatalogs(ctx context.Context, c *api.Client, companyID string, force bool) (catalog.Set, error) {
	opts := catalog.LoadOptions{
		Source:    c,
		CompanyID: companyID,
		TTL:       app.cfg.CatalogTTL,
		Force:     force || app.NoCache,
		Logger:    app.logger,
	}
	if cache, ok := app.cache(); ok {
		opts.Store = cache
	}
	return catalog.Load(ctx, opts)
}

// resolveEntity maps an id or exact display name to a catalog entity.
func resolveEntity(c *catalog.Catalog, s string) (model.Entity, error) {
	s = strings.TrimSpace(s)
	if _, isID := c.ByID(s); !isID && c.Ambiguous(s) {
		var ids []string
		for _, e := range c.All() {
			if e.Name == s {
				ids = append(ids, e.ID)
			}
		}
		return model.Entity{}, errAmbiguous(string(c.Kind()), s, ids)
	}
	if e, ok := c.Lookup(s); ok {
		return e, nil
	}
	return model.Entity{}, errNotFound(string(c.Kind()), s)
}
