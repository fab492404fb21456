package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"emctl/internal/catalog"
	"emctl/internal/model"

	_ "modernc.org/sqlite"
)

const cacheFileName = "cache.sqlite"

// Cache is the local sqlite cache of catalogs and member snapshots.
// It is opened per operation so the CLI and TUI can share it.
type Cache struct {
	Dir string
}

// CacheStatus summarizes one cached catalog.
type CacheStatus struct {
	CompanyID string     `json:"companyId"`
	Kind      model.Kind `json:"kind"`
	Version   uint64     `json:"version"`
	Count     int        `json:"count"`
	FetchedAt time.Time  `json:"fetchedAt"`
}

// OpenCache returns the cache under the config dir.
func OpenCache() (Cache, error) {
	dir, err := ConfigDir()
	if err != nil {
		return Cache{}, err
	}
	return Cache{Dir: dir}, nil
}

func (c Cache) Path() string {
	return filepath.Join(c.Dir, cacheFileName)
}

func (c Cache) open(ctx context.Context) (*sql.DB, error) {
	if strings.TrimSpace(c.Dir) == "" {
		return nil, errors.New("cache: missing dir")
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", c.Path())
	if err != nil {
		return nil, err
	}
	// WAL enables one writer + many readers; busy_timeout helps avoid "database is locked" flakiness.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateCache(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrateCache(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS catalogs (
			company_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			version INTEGER NOT NULL,
			json TEXT NOT NULL,
			fetched_at_unixms INTEGER NOT NULL,
			PRIMARY KEY (company_id, kind)
		);`,
		`CREATE TABLE IF NOT EXISTS members (
			company_id TEXT NOT NULL,
			path TEXT NOT NULL,
			pivot_id TEXT NOT NULL,
			ids_json TEXT NOT NULL,
			fetched_at_unixms INTEGER NOT NULL,
			PRIMARY KEY (company_id, path, pivot_id)
		);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (c Cache) GetCatalog(ctx context.Context, companyID string, kind model.Kind) (catalog.Cached, bool, error) {
	db, err := c.open(ctx)
	if err != nil {
		return catalog.Cached{}, false, err
	}
	defer db.Close()

	var (
		version int64
		raw     string
		ms      int64
	)
	err = db.QueryRowContext(ctx, `SELECT version, json, fetched_at_unixms FROM catalogs WHERE company_id = ? AND kind = ?`,
		companyID, string(kind)).Scan(&version, &raw, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Cached{}, false, nil
	}
	if err != nil {
		return catalog.Cached{}, false, err
	}
	var entities []model.Entity
	if err := json.Unmarshal([]byte(raw), &entities); err != nil {
		// Corrupt rows behave like a miss.
		return catalog.Cached{}, false, nil
	}
	return catalog.Cached{
		Kind:      kind,
		Version:   uint64(version),
		FetchedAt: time.UnixMilli(ms).UTC(),
		Entities:  entities,
	}, true, nil
}

// PutCatalog stores entities for (company, kind). The version increases only when
// the entity list differs from what was stored; fetched_at always moves.
func (c Cache) PutCatalog(ctx context.Context, companyID string, kind model.Kind, entities []model.Entity, fetchedAt time.Time) (uint64, error) {
	if entities == nil {
		entities = []model.Entity{}
	}
	raw, err := json.Marshal(entities)
	if err != nil {
		return 0, err
	}
	db, err := c.open(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		prevVersion int64
		prevRaw     string
	)
	err = tx.QueryRowContext(ctx, `SELECT version, json FROM catalogs WHERE company_id = ? AND kind = ?`,
		companyID, string(kind)).Scan(&prevVersion, &prevRaw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		prevVersion = 0
	case err != nil:
		return 0, err
	}
	version := prevVersion
	if version == 0 || prevRaw != string(raw) {
		version++
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO catalogs(company_id, kind, version, json, fetched_at_unixms) VALUES(?, ?, ?, ?, ?)`,
		companyID, string(kind), version, string(raw), fetchedAt.UTC().UnixMilli()); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(version), nil
}

// GetMembers returns the cached member ids of one pivot and when they were fetched.
func (c Cache) GetMembers(ctx context.Context, companyID, path, pivotID string) ([]string, time.Time, bool, error) {
	db, err := c.open(ctx)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	defer db.Close()

	var (
		raw string
		ms  int64
	)
	err = db.QueryRowContext(ctx, `SELECT ids_json, fetched_at_unixms FROM members WHERE company_id = ? AND path = ? AND pivot_id = ?`,
		companyID, path, pivotID).Scan(&raw, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	ids := []string{}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, time.Time{}, false, nil
	}
	return ids, time.UnixMilli(ms).UTC(), true, nil
}

func (c Cache) PutMembers(ctx context.Context, companyID, path, pivotID string, ids []string, fetchedAt time.Time) error {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	db, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, `INSERT OR REPLACE INTO members(company_id, path, pivot_id, ids_json, fetched_at_unixms) VALUES(?, ?, ?, ?, ?)`,
		companyID, path, pivotID, string(raw), fetchedAt.UTC().UnixMilli())
	return err
}

// InvalidateMembers drops the cached member sets of the given pivots under path.
func (c Cache) InvalidateMembers(ctx context.Context, companyID, path string, pivotIDs ...string) error {
	if len(pivotIDs) == 0 {
		return nil
	}
	db, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range pivotIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE company_id = ? AND path = ? AND pivot_id = ?`, companyID, path, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Clear removes every cached row for companyID, or everything when companyID is empty.
func (c Cache) Clear(ctx context.Context, companyID string) error {
	db, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, table := range []string{"catalogs", "members"} {
		q := `DELETE FROM ` + table
		args := []any{}
		if companyID != "" {
			q += ` WHERE company_id = ?`
			args = append(args, companyID)
		}
		if _, err := db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Status lists the cached catalogs, ordered by company then kind.
func (c Cache) Status(ctx context.Context) ([]CacheStatus, int, error) {
	db, err := c.open(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT company_id, kind, version, json, fetched_at_unixms FROM catalogs ORDER BY company_id, kind`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []CacheStatus{}
	for rows.Next() {
		var (
			st      CacheStatus
			kind    string
			version int64
			raw     string
			ms      int64
		)
		if err := rows.Scan(&st.CompanyID, &kind, &version, &raw, &ms); err != nil {
			return nil, 0, err
		}
		var entities []model.Entity
		_ = json.Unmarshal([]byte(raw), &entities)
		st.Kind = model.Kind(kind)
		st.Version = uint64(version)
		st.Count = len(entities)
		st.FetchedAt = time.UnixMilli(ms).UTC()
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var snapshots int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&snapshots); err != nil {
		return nil, 0, err
	}
	return out, snapshots, nil
}
