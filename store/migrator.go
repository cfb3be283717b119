package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/ordernotes/internal/version"
)

// Schema scripts live under migration/{driver}/. An empty database is created
// from LATEST.sql. An existing one receives every {minor}/NN__name.sql script
// newer than the schema version recorded in system_setting, up to the
// version of the running binary. Script NN of minor X.Y yields version X.Y.(NN+1).

//go:embed migration
var migrationFS embed.FS

//go:embed seed
var seedFS embed.FS

const (
	// LatestSchemaFileName creates the full schema of a new database.
	LatestSchemaFileName = "LATEST.sql"

	scriptNameSeparator = "__"
	baseSchemaVersion   = "0.0.0"

	modeProd = "prod"
	modeDemo = "demo"
)

// Migrate brings the database schema up to date. Demo databases are seeded
// with sample orders instead of being upgraded.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.initSchema(ctx); err != nil {
		return errors.Wrap(err, "failed to initialize schema")
	}

	switch s.profile.Mode {
	case modeProd:
		return s.upgradeSchema(ctx)
	case modeDemo:
		if err := s.seed(ctx); err != nil {
			return errors.Wrap(err, "failed to seed")
		}
	}
	return nil
}

// initSchema runs LATEST.sql against a database that has no tables yet.
func (s *Store) initSchema(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}
	if initialized {
		return nil
	}

	target, err := s.GetCurrentSchemaVersion()
	if err != nil {
		return err
	}
	latest := s.migrationDir() + LatestSchemaFileName
	slog.Info("creating database schema", slog.String("file", latest), slog.String("version", target))
	if err := s.runScripts(ctx, migrationFS, []string{latest}); err != nil {
		return err
	}
	return s.setSchemaVersion(ctx, target)
}

func (s *Store) upgradeSchema(ctx context.Context) error {
	applied, err := s.appliedSchemaVersion(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get database schema version")
	}
	target, err := s.GetCurrentSchemaVersion()
	if err != nil {
		return err
	}

	if version.IsVersionGreaterThan(applied, target) {
		return errors.Errorf("cannot downgrade schema version from %s to %s", applied, target)
	}
	if applied == target {
		return nil
	}

	scripts, err := s.pendingMigrations(applied, target)
	if err != nil {
		return err
	}
	slog.Info("upgrading database schema",
		slog.String("from", applied),
		slog.String("to", target),
		slog.Int("scripts", len(scripts)))
	if err := s.runScripts(ctx, migrationFS, scripts); err != nil {
		return errors.Wrap(err, "failed to apply migrations")
	}
	return s.setSchemaVersion(ctx, target)
}

// pendingMigrations lists the versioned scripts in (applied, target], oldest first.
func (s *Store) pendingMigrations(applied, target string) ([]string, error) {
	all, err := fs.Glob(migrationFS, s.migrationDir()+"*/*.sql")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list migration scripts")
	}
	sort.Strings(all)

	var pending []string
	for _, p := range all {
		v, err := schemaVersionFromPath(p)
		if err != nil {
			return nil, err
		}
		if version.IsVersionGreaterThan(v, applied) && version.IsVersionGreaterOrEqualThan(target, v) {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// seed loads the sample data. Only SQLite ships seed scripts.
func (s *Store) seed(ctx context.Context) error {
	if s.profile.Driver != "sqlite" {
		slog.Warn("no seed data for driver, skipping", slog.String("driver", s.profile.Driver))
		return nil
	}
	scripts, err := fs.Glob(seedFS, fmt.Sprintf("seed/%s/*.sql", s.profile.Driver))
	if err != nil {
		return errors.Wrap(err, "failed to list seed scripts")
	}
	sort.Strings(scripts)
	return s.runScripts(ctx, seedFS, scripts)
}

// runScripts executes the given embedded scripts in a single transaction.
func (s *Store) runScripts(ctx context.Context, fsys fs.FS, scripts []string) error {
	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	for _, name := range scripts {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", name)
		}
		statements := []string{string(body)}
		// lib/pq rejects several statements in one Exec.
		if s.profile.Driver == "postgres" {
			statements = splitSQL(string(body))
		}
		for i, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "%s: statement %d failed", name, i+1)
			}
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit")
}

// GetCurrentSchemaVersion returns the schema version the running binary expects.
func (s *Store) GetCurrentSchemaVersion() (string, error) {
	minor := version.GetMinorVersion(version.GetCurrentVersion(s.profile.Mode))
	scripts, err := fs.Glob(migrationFS, s.migrationDir()+minor+"/*.sql")
	if err != nil {
		return "", errors.Wrap(err, "failed to list migration scripts")
	}
	if len(scripts) == 0 {
		return minor + ".0", nil
	}
	sort.Strings(scripts)
	return schemaVersionFromPath(scripts[len(scripts)-1])
}

func (s *Store) migrationDir() string {
	return "migration/" + s.profile.Driver + "/"
}

func (s *Store) appliedSchemaVersion(ctx context.Context) (string, error) {
	setting, err := s.GetSystemSetting(ctx, &FindSystemSetting{Name: SystemSettingSchemaVersionName})
	if err != nil {
		return "", err
	}
	if setting == nil || setting.Value == "" {
		return baseSchemaVersion, nil
	}
	return setting.Value, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, v string) error {
	_, err := s.UpsertSystemSetting(ctx, &SystemSetting{
		Name:        SystemSettingSchemaVersionName,
		Value:       v,
		Description: "applied database schema version",
	})
	return errors.Wrap(err, "failed to record schema version")
}

// schemaVersionFromPath maps "migration/sqlite/0.2/00__x.sql" to "0.2.1".
func schemaVersionFromPath(p string) (string, error) {
	minor := path.Base(path.Dir(p))
	patch, _, _ := strings.Cut(path.Base(p), scriptNameSeparator)
	n, err := strconv.Atoi(patch)
	if err != nil {
		return "", errors.Wrapf(err, "invalid migration script name %s", p)
	}
	return fmt.Sprintf("%s.%d", minor, n+1), nil
}

// splitSQL splits a script into statements, dropping "--" comment lines.
// Semicolons inside string literals are not supported.
func splitSQL(script string) []string {
	var kept []string
	for _, line := range strings.Split(script, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "--") {
			kept = append(kept, line)
		}
	}

	var statements []string
	for _, stmt := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
