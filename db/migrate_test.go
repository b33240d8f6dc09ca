package db

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thegupta1694/capstone/db/migrations"
)

func TestExtractUpMigration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "no markers", content: "CREATE TABLE a();", want: "CREATE TABLE a();"},
		{name: "up only", content: "-- +migrate Up\nCREATE TABLE a();", want: "\nCREATE TABLE a();"},
		{name: "up and down", content: "-- +migrate Up\nCREATE TABLE a();\n-- +migrate Down\nDROP TABLE a;", want: "\nCREATE TABLE a();\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractUpMigration(tt.content))
		})
	}
}

func TestMigrationFilesSorted(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_b.sql": {Data: []byte("SELECT 2")},
		"0001_a.sql": {Data: []byte("SELECT 1")},
		"README.md":  {Data: []byte("docs")},
	}
	files, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.sql", "0002_b.sql"}, files)
}

func TestEmbeddedSchemaDeclaresConstraints(t *testing.T) {
	content, err := fs.ReadFile(migrations.FS, "0001_init.sql")
	require.NoError(t, err)
	up := ExtractUpMigration(string(content))

	for _, constraint := range []string{
		"users_username_key",
		"users_email_key",
		"chk_professor_slots",
		"teams_name_key",
		"team_memberships_team_id_user_id_key",
		"uniq_accepted_membership_per_user",
		"applications_team_id_professor_id_key",
	} {
		assert.True(t, strings.Contains(up, constraint), "missing %s", constraint)
	}
	assert.NotContains(t, up, "DROP TABLE")
}
