package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/sdu-escience/gridgate/internal/logger"
	"github.com/sdu-escience/gridgate/internal/ratelimiter"
	"github.com/sdu-escience/gridgate/pkg/command"
	"github.com/sdu-escience/gridgate/pkg/content"
	contentfs "github.com/sdu-escience/gridgate/pkg/content/fs"
	contentmemory "github.com/sdu-escience/gridgate/pkg/content/memory"
	contents3 "github.com/sdu-escience/gridgate/pkg/content/s3"
	"github.com/sdu-escience/gridgate/pkg/grid/embedded"
	"github.com/sdu-escience/gridgate/pkg/metadata"
	"github.com/sdu-escience/gridgate/pkg/metadata/badger"
	metadatamemory "github.com/sdu-escience/gridgate/pkg/metadata/memory"
)

// s3Options are the backend.s3.* keys.
type s3Options struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"accessKeyId"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
	KeyPrefix       string `mapstructure:"keyPrefix"`
	MaxRetries      int    `mapstructure:"maxRetries"`
}

func decodeS3Options(options map[string]any) (s3Options, error) {
	var opts s3Options
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return opts, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return opts, fmt.Errorf("failed to decode S3 options: %w", err)
	}
	return opts, nil
}

// CreateMetadataStore creates the catalog store selected by
// backend.catalog.type.
//
// Supported types:
//   - "memory": Uses pkg/metadata/memory (ephemeral)
//   - "badger": Uses pkg/metadata/badger (persistent, at backend.catalog.path)
func CreateMetadataStore(ctx context.Context, cfg *Configuration) (metadata.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Backend.Catalog.Type {
	case "memory":
		return metadatamemory.NewMemoryMetadataStore(), nil
	case "badger":
		store, err := badger.NewBadgerMetadataStore(ctx, badger.BadgerMetadataStoreConfig{
			DBPath: cfg.Backend.Catalog.Path,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger)", cfg.Backend.Catalog.Type)
	}
}

// CreateContentStore creates the content store selected by
// backend.content.type. s3Metrics may be nil.
//
// Supported types:
//   - "memory": Uses pkg/content/memory (ephemeral)
//   - "fs": Uses pkg/content/fs (local directory at backend.content.path)
//   - "s3": Uses pkg/content/s3 (Amazon S3 or compatible storage)
func CreateContentStore(ctx context.Context, cfg *Configuration, s3Metrics contents3.S3Metrics) (content.Store, error) {
	switch cfg.Backend.Content.Type {
	case "memory":
		return contentmemory.NewMemoryContentStore(ctx)
	case "fs":
		store, err := contentfs.NewFSContentStore(ctx, cfg.Backend.Content.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
		}
		return store, nil
	case "s3":
		return createS3ContentStore(ctx, cfg.Backend.S3, s3Metrics)
	default:
		return nil, fmt.Errorf("unknown content store type: %q (supported: memory, fs, s3)", cfg.Backend.Content.Type)
	}
}

func createS3ContentStore(ctx context.Context, options map[string]any, s3Metrics contents3.S3Metrics) (content.Store, error) {
	opts, err := decodeS3Options(options)
	if err != nil {
		return nil, err
	}

	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3 content store: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("S3 content store: region is required")
	}

	client, err := contents3.NewClient(ctx, contents3.ClientConfig{
		Endpoint:        opts.Endpoint,
		Region:          opts.Region,
		AccessKeyID:     opts.AccessKeyID,
		SecretAccessKey: opts.SecretAccessKey,
		MaxRetries:      opts.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	store, err := contents3.NewS3ContentStore(ctx, contents3.S3ContentStoreConfig{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
		Metrics:   s3Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)
	return store, nil
}

// CreateConnector builds the embedded grid over the configured back ends.
// The system account, when configured, is bootstrapped as the zone
// administrator.
func CreateConnector(ctx context.Context, cfg *Configuration, m *MetricsResult) (*embedded.Grid, error) {
	var s3Metrics contents3.S3Metrics
	if m != nil {
		s3Metrics = m.S3
	}

	catalog, err := CreateMetadataStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	blobs, err := CreateContentStore(ctx, cfg, s3Metrics)
	if err != nil {
		_ = catalog.Close()
		return nil, err
	}

	g, err := embedded.New(ctx, catalog, blobs, embedded.Options{
		Zone:          cfg.Zone,
		Resource:      cfg.Resource,
		AdminUser:     cfg.SystemUsername,
		AdminPassword: cfg.SystemPassword,
	})
	if err != nil {
		_ = catalog.Close()
		return nil, err
	}

	logger.Info("Grid ready: zone=%s catalog=%s content=%s",
		cfg.Zone, cfg.Backend.Catalog.Type, cfg.Backend.Content.Type)
	return g, nil
}

// OpenGateway opens the configured command logs and returns a gateway writing
// to them. The caller closes the gateway's sinks.
func OpenGateway(cfg *Configuration, m *MetricsResult) (*command.Gateway, error) {
	sinks, err := command.OpenSinks(cfg.LogPaths())
	if err != nil {
		return nil, fmt.Errorf("failed to open command logs: %w", err)
	}

	var opts []command.Option
	if m != nil {
		opts = append(opts, command.WithMetrics(m.Command))
	}
	if cfg.CommandRateLimit > 0 {
		opts = append(opts, command.WithRateLimit(
			ratelimiter.New(uint(cfg.CommandRateLimit), uint(cfg.CommandBurst))))
	}
	return command.NewGateway(sinks, opts...), nil
}
