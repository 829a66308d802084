package application

import (
	"context"
	"embed"
	"io/fs"
	"path"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

func NewMigrationManager(pool *pgxpool.Pool) MigrationManager {
	return &migrationManager{pool: pool}
}

type migrationManager struct {
	pool    *pgxpool.Pool
	schemas []*embed.FS
}

func (m *migrationManager) RegisterSchema(fsys *embed.FS) {
	m.schemas = append(m.schemas, fsys)
}

func (m *migrationManager) Run(ctx context.Context) error {
	if len(m.schemas) == 0 {
		return nil
	}

	db := stdlib.OpenDBFromPool(m.pool)
	defer func() { _ = db.Close() }()

	for _, schema := range m.schemas {
		root, err := migrationRoot(schema)
		if err != nil {
			return err
		}
		provider, err := goose.NewProvider(goose.DialectPostgres, db, root)
		if err != nil {
			return errors.Wrap(err, "failed to create migration provider")
		}
		if _, err := provider.Up(ctx); err != nil {
			return errors.Wrap(err, "failed to apply migrations")
		}
	}
	return nil
}

// migrationRoot descends to the directory holding the embedded .sql files so
// modules can embed schemas at any depth.
func migrationRoot(fsys *embed.FS) (fs.FS, error) {
	dir := "."
	for {
		entries, err := fs.ReadDir(fsys, dir)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read embedded schema")
		}
		var subdir string
		for _, e := range entries {
			if !e.IsDir() && path.Ext(e.Name()) == ".sql" {
				return fs.Sub(fsys, dir)
			}
			if e.IsDir() {
				subdir = path.Join(dir, e.Name())
			}
		}
		if subdir == "" {
			return nil, errors.New("no .sql files found in embedded schema")
		}
		dir = subdir
	}
}
