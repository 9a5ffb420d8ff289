package database

import (
	"io/fs"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

func testConfig() *core.Config {
	return &core.Config{
		Database: core.DatabaseConfig{
			Engine:        "postgres",
			Host:          "db.shule.test",
			Port:          "5432",
			Name:          "shule",
			User:          "shule",
			Password:      "p@ss word",
			AdminUser:     "postgres",
			AdminPassword: "root",
			DisableTLS:    true,
		},
	}
}

func Test_dsn(t *testing.T) {
	tests := []struct {
		name       string
		dbName     string
		admin      bool
		disableTLS bool
		noAdmin    bool
		wantUser   string
		wantPass   string
		wantSSL    string
	}{
		{name: "app user", dbName: "shule", disableTLS: true, wantUser: "shule", wantPass: "p@ss word", wantSSL: "disable"},
		{name: "admin user", dbName: "postgres", admin: true, disableTLS: true, wantUser: "postgres", wantPass: "root", wantSSL: "disable"},
		{name: "admin falls back to app user", dbName: "postgres", admin: true, noAdmin: true, wantUser: "shule", wantPass: "p@ss word", wantSSL: "require"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := testConfig()
			conf.Database.DisableTLS = tt.disableTLS
			if tt.noAdmin {
				conf.Database.AdminUser = ""
			}

			u, err := url.Parse(dsn(tt.dbName, tt.admin, conf))
			require.NoError(t, err)

			assert.Equal(t, "postgres", u.Scheme)
			assert.Equal(t, "db.shule.test:5432", u.Host)
			assert.Equal(t, tt.dbName, strings.TrimPrefix(u.Path, "/"))
			assert.Equal(t, tt.wantUser, u.User.Username())
			pwd, _ := u.User.Password()
			assert.Equal(t, tt.wantPass, pwd)
			assert.Equal(t, tt.wantSSL, u.Query().Get("sslmode"))
			assert.Equal(t, "utc", u.Query().Get("timezone"))
		})
	}
}

func TestMigrations_embedded(t *testing.T) {
	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	var procedures string
	for _, e := range entries {
		data, err := fs.ReadFile(MigrationsFS, MigrationsDir+"/"+e.Name())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "-- +goose Up"), e.Name())
		assert.Contains(t, string(data), "-- +goose Down", e.Name())
		procedures += string(data)
	}

	// the procedures the gateway calls
	for _, name := range []string{
		"get_all_attendance_records", "get_all_courses", "get_all_programs", "get_all_branches",
		"get_all_exams", "delete_course", "delete_exam", "update_course", "update_program",
		"insert_school", "get_all_trails",
	} {
		assert.Contains(t, procedures, "FUNCTION "+name+"(", name)
	}
}
