package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/wabatch/internal/config"
	"github.com/JonMunkholm/wabatch/internal/core"
	"github.com/JonMunkholm/wabatch/internal/storage"
)

func fileConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Contacts.Dir = filepath.Join(dir, "contacts")
	cfg.Contacts.TemplateFile = filepath.Join(dir, "template.txt")
	cfg.Contacts.MetadataBackend = "file"
	cfg.Contacts.PreviewRowLimit = 1
	cfg.Contacts.PreviewColumnLimit = 1
	cfg.Messaging.BackendURL = "http://127.0.0.1:1"
	cfg.Messaging.DefaultCountryCode = "961"
	return cfg
}

func TestNew_FileBackend(t *testing.T) {
	cfg := fileConfig(t)

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, cfg.Contacts.Dir, app.Store.Dir())
	assert.Equal(t, "http://127.0.0.1:1", app.Client.BaseURL())
	assert.Equal(t, storage.DefaultMessageTemplate, app.Service.MessageTemplate())

	ctx := context.Background()
	file, err := app.Service.UploadContacts(ctx, &core.Upload{
		Filename: "list.csv",
		Data:     []byte("NUMBERS,name\n1,a\n2,b\n"),
	})
	require.NoError(t, err)

	_, preview, err := app.Service.PreviewContacts(ctx, file.Name, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, preview.DisplayedRows, "configured preview limits apply")
	assert.Equal(t, 1, preview.DisplayedColumns)

	_, err = os.Stat(filepath.Join(cfg.Contacts.Dir, storage.MetadataFileName))
	assert.NoError(t, err, "metadata file written next to contacts")
}

func TestNew_PostgresBackend(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	cfg := fileConfig(t)
	cfg.Contacts.MetadataBackend = "postgres"
	cfg.Database.URL = url
	cfg.Database.MaxConns = 2
	cfg.Database.MinConns = 1

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.pool)
}

func TestNew_BadDatabaseURL(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Contacts.MetadataBackend = "postgres"
	cfg.Database.URL = "://not a url"

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "parse database URL")
}
