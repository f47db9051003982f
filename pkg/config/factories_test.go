package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sdu-escience/gridgate/pkg/command"
	contentfs "github.com/sdu-escience/gridgate/pkg/content/fs"
	contentmemory "github.com/sdu-escience/gridgate/pkg/content/memory"
	"github.com/sdu-escience/gridgate/pkg/metadata/badger"
	metadatamemory "github.com/sdu-escience/gridgate/pkg/metadata/memory"
	"github.com/sdu-escience/gridgate/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, body string) *Configuration {
	t.Helper()
	cfg, err := Parse(strings.NewReader(body))
	require.NoError(t, err)
	return cfg
}

func TestCreateMetadataStore(t *testing.T) {
	ctx := context.Background()

	store, err := CreateMetadataStore(ctx, mustParse(t, minimal))
	require.NoError(t, err)
	assert.IsType(t, &metadatamemory.MemoryMetadataStore{}, store)
	require.NoError(t, store.Close())

	dir := filepath.Join(t.TempDir(), "catalog")
	store, err = CreateMetadataStore(ctx, mustParse(t, minimal+`
backend.catalog.type = badger
backend.catalog.path = `+dir+"\n"))
	require.NoError(t, err)
	assert.IsType(t, &badger.BadgerMetadataStore{}, store)
	require.NoError(t, store.Close())

	cfg := mustParse(t, minimal)
	cfg.Backend.Catalog.Type = "postgres"
	_, err = CreateMetadataStore(ctx, cfg)
	assert.ErrorContains(t, err, "unknown metadata store type")
}

func TestCreateContentStore(t *testing.T) {
	ctx := context.Background()

	store, err := CreateContentStore(ctx, mustParse(t, minimal), nil)
	require.NoError(t, err)
	assert.IsType(t, &contentmemory.MemoryContentStore{}, store)

	dir := filepath.Join(t.TempDir(), "content")
	store, err = CreateContentStore(ctx, mustParse(t, minimal+`
backend.content.type = fs
backend.content.path = `+dir+"\n"), nil)
	require.NoError(t, err)
	assert.IsType(t, &contentfs.FSContentStore{}, store)
	assert.DirExists(t, dir)

	cfg := mustParse(t, minimal)
	cfg.Backend.Content.Type = "s3"
	_, err = CreateContentStore(ctx, cfg, nil)
	assert.ErrorContains(t, err, "bucket is required")

	cfg.Backend.Content.Type = "tape"
	_, err = CreateContentStore(ctx, cfg, nil)
	assert.ErrorContains(t, err, "unknown content store type")
}

func TestCreateConnector_BootstrapsSystemAccount(t *testing.T) {
	ctx := context.Background()
	cfg := mustParse(t, minimal+`
systemUsername = rods
systemPassword = rodspass
`)

	g, err := CreateConnector(ctx, cfg, InitializeMetrics(false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	assert.Equal(t, "tempZone", g.Zone())

	sys, err := cfg.SystemAccount()
	require.NoError(t, err)
	s, err := session.Open(ctx, g, sys)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assert.Equal(t, "/tempZone/home/rods", s.HomePath())

	_, err = session.Open(ctx, g, cfg.Account("rods", "wrong"))
	assert.Error(t, err)
}

func TestOpenGateway(t *testing.T) {
	dir := t.TempDir()
	cfg := mustParse(t, minimal+`
accessLogPath = `+filepath.Join(dir, "access.log")+`
errorLogPath = `+filepath.Join(dir, "error.log")+"\n")

	gw, err := OpenGateway(cfg, InitializeMetrics(false))
	require.NoError(t, err)
	defer func() { _ = gw.Sinks().Close() }()

	sinks := gw.Sinks()
	require.IsType(t, &command.FileSink{}, sinks.Access)
	assert.Equal(t, filepath.Join(dir, "access.log"), sinks.Access.(*command.FileSink).Path())
	assert.IsType(t, command.LoggerSink{}, sinks.Performance)
	assert.IsType(t, &command.FileSink{}, sinks.Error)
}

func TestOpenGateway_RateLimited(t *testing.T) {
	cfg := mustParse(t, minimal+"commandRateLimit = 1\ncommandBurst = 1\n")

	gw, err := OpenGateway(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = gw.Sinks().Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	id := command.Identity{Username: "rods", Zone: "tempZone"}
	noop := func(context.Context) error { return nil }
	require.NoError(t, command.Do(ctx, gw, id, "exists", nil, noop))
	assert.ErrorIs(t, command.Do(ctx, gw, id, "exists", nil, noop), command.ErrThrottled)
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	m := InitializeMetrics(false)
	assert.Nil(t, m.Command)
	assert.Nil(t, m.S3)
}
