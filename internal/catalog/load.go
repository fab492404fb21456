package catalog

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"emctl/internal/model"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Source lists the entities of a company.
type Source interface {
	Users(ctx context.Context, companyID string) ([]model.UserInCompany, error)
	Projects(ctx context.Context, companyID string) ([]model.Project, error)
	Activities(ctx context.Context, companyID string) ([]model.Activity, error)
}

// Cached is a stored catalog with its version and fetch time.
type Cached struct {
	Kind      model.Kind
	Version   uint64
	FetchedAt time.Time
	Entities  []model.Entity
}

// Store persists catalogs between runs. PutCatalog returns the stored version,
// which only moves when the entity list changed.
type Store interface {
	GetCatalog(ctx context.Context, companyID string, kind model.Kind) (Cached, bool, error)
	PutCatalog(ctx context.Context, companyID string, kind model.Kind, entities []model.Entity, fetchedAt time.Time) (uint64, error)
}

type LoadOptions struct {
	Source    Source
	Store     Store
	CompanyID string
	// TTL is how long a stored catalog is reused. Zero always refetches.
	TTL time.Duration
	// Force skips the store for reads.
	Force  bool
	Logger *log.Logger
	Now    func() time.Time
}

// Load builds the three catalogs of a company. Fresh stored catalogs are reused;
// the rest are fetched concurrently. Any fetch failure fails the whole load.
func Load(ctx context.Context, opts LoadOptions) (Set, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var (
		mu  sync.Mutex
		set Set
	)
	assign := func(c *Catalog) {
		mu.Lock()
		defer mu.Unlock()
		switch c.Kind() {
		case model.KindUser:
			set.Users = c
		case model.KindProject:
			set.Projects = c
		case model.KindActivity:
			set.Activities = c
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range []model.Kind{model.KindUser, model.KindProject, model.KindActivity} {
		g.Go(func() error {
			if c, ok := fromStore(gctx, opts, kind, now()); ok {
				logger.Debug("catalog from cache", "kind", kind, "version", c.Version())
				assign(c)
				return nil
			}
			entities, err := fetch(gctx, opts.Source, opts.CompanyID, kind)
			if err != nil {
				return fmt.Errorf("load %ss: %w", kind, err)
			}
			var version uint64 = 1
			if opts.Store != nil {
				v, err := opts.Store.PutCatalog(gctx, opts.CompanyID, kind, entities, now())
				if err != nil {
					logger.Warn("catalog cache write failed", "kind", kind, "err", err)
				} else {
					version = v
				}
			}
			logger.Debug("catalog fetched", "kind", kind, "count", len(entities), "version", version)
			assign(New(kind, version, entities))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Set{}, err
	}
	return set, nil
}

func fromStore(ctx context.Context, opts LoadOptions, kind model.Kind, now time.Time) (*Catalog, bool) {
	if opts.Store == nil || opts.Force || opts.TTL <= 0 {
		return nil, false
	}
	cached, ok, err := opts.Store.GetCatalog(ctx, opts.CompanyID, kind)
	if err != nil || !ok {
		return nil, false
	}
	if now.Sub(cached.FetchedAt) >= opts.TTL {
		return nil, false
	}
	return New(kind, cached.Version, cached.Entities), true
}

func fetch(ctx context.Context, src Source, companyID string, kind model.Kind) ([]model.Entity, error) {
	switch kind {
	case model.KindUser:
		users, err := src.Users(ctx, companyID)
		if err != nil {
			return nil, err
		}
		return UserEntities(users), nil
	case model.KindProject:
		projects, err := src.Projects(ctx, companyID)
		if err != nil {
			return nil, err
		}
		return ProjectEntities(projects), nil
	case model.KindActivity:
		activities, err := src.Activities(ctx, companyID)
		if err != nil {
			return nil, err
		}
		return ActivityEntities(activities), nil
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}
