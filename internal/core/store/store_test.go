package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charybdis/charybdis/internal/config"
)

func TestBuildLibsqlDSN(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StoreConfig
		want    string
		wantErr bool
	}{
		{
			name: "remote url gets auth token",
			cfg:  config.StoreConfig{URL: "libsql://example.turso.io", AuthToken: "token123"},
			want: "libsql://example.turso.io?authToken=token123",
		},
		{
			name: "remote url keeps existing query",
			cfg:  config.StoreConfig{URL: "libsql://example.turso.io?foo=bar", AuthToken: "token123"},
			want: "libsql://example.turso.io?authToken=token123&foo=bar",
		},
		{
			name: "url wins over path",
			cfg:  config.StoreConfig{URL: "libsql://example.turso.io", Path: "/tmp/ignored.db"},
			want: "libsql://example.turso.io",
		},
		{
			name: "file prefix kept",
			cfg:  config.StoreConfig{Path: "file:" + filepath.Join(dir, "a", "charybdis.db")},
			want: "file:" + filepath.Join(dir, "a", "charybdis.db"),
		},
		{
			name: "bare path gains file prefix",
			cfg:  config.StoreConfig{Path: filepath.Join(dir, "b", "..", "charybdis.db")},
			want: "file:" + filepath.Join(dir, "charybdis.db"),
		},
		{
			name: "memory",
			cfg:  config.StoreConfig{Path: ":memory:"},
			want: ":memory:",
		},
		{
			name:    "missing",
			cfg:     config.StoreConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := buildLibsqlDSN(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, dsn)
		})
	}

	require.DirExists(t, filepath.Join(dir, "a"))
}

func TestMigrationsAreOrdered(t *testing.T) {
	for i, m := range migrations {
		require.Equal(t, i+1, m.version)
		require.NotEmpty(t, m.statements)
	}
}

func TestNilStore(t *testing.T) {
	var s *Store
	require.NoError(t, s.Close())
	require.Empty(t, s.Driver())
	require.False(t, s.Local())
	require.Error(t, s.Ping(context.Background()))
	require.Error(t, s.Migrate(context.Background()))
}
