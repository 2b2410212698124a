package store

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, direction := match[1], match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		require.Falsef(t, byVersion[version][direction], "duplicate %s migration file for version %s", direction, version)
		byVersion[version][direction] = true
	}

	require.NotEmpty(t, byVersion, "no migrations discovered")
	for version, dirs := range byVersion {
		require.Truef(t, dirs["up"] && dirs["down"], "version %s must include both up and down files", version)
	}
}

func TestReconciliationTablesHaveNoForeignKeys(t *testing.T) {
	sqlBytes, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "0001_reconciliation_tables.up.sql"))
	require.NoError(t, err)

	// Windowed imports deliver deals whose account is missing; a constraint
	// would reject them.
	require.NotContains(t, string(sqlBytes), "REFERENCES")
	require.Contains(t, string(sqlBytes), "account_owner_id TEXT")
}

func TestUpMigrationsAreSorted(t *testing.T) {
	files, err := upMigrations(filepath.Join("..", "..", "db", "migrations"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(files), 2)
	require.Equal(t, "0001_reconciliation_tables.up.sql", filepath.Base(files[0]))
	require.Equal(t, "0002_dashboard_stats_function.up.sql", filepath.Base(files[1]))
}
