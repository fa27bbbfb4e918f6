package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		body, err := fs.ReadFile(FS, name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", name)
		assert.Contains(t, string(body), "-- +goose Down", name)
	}
}

func TestInitialSchemaEnforcesPublishInvariant(t *testing.T) {
	body, err := fs.ReadFile(FS, "00001_init.sql")
	require.NoError(t, err)

	schema := string(body)
	assert.Contains(t, schema, "posts_published_consistency")
	assert.True(t, strings.Contains(schema, "engagement_rate NUMERIC"))
}
