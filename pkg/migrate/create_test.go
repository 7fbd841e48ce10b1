package migrate

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateSQLMigrationRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := createSQLMigration(dir, "Seed Home Sections", now)
	require.NoError(t, err)
	require.Contains(t, path, "20260304050607_seed_home_sections.sql")

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, validateBody(string(body)))

	_, err = createSQLMigration(dir, "seed home sections", now)
	require.ErrorContains(t, err, "already exists")
}
