package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// bucket driver for development
	_ "gocloud.dev/blob/gcsblob"  // gs:// bucket driver
	_ "gocloud.dev/blob/memblob"  // mem:// bucket driver for tests
	_ "gocloud.dev/blob/s3blob"   // s3:// bucket driver

	"github.com/quantlab/quantjobs/config"
	"github.com/quantlab/quantjobs/internal/adapters/blobstore"
	"github.com/quantlab/quantjobs/internal/adapters/marketdata"
)

// OpenArtifactStore opens the configured artifact bucket and wraps it in the
// blob-backed object store. Dev mode tolerates drivers that cannot sign URLs.
func OpenArtifactStore(
	ctx context.Context,
	cfg config.ArtifactsConfig,
	isDev bool,
	logger *slog.Logger,
) (*blobstore.Store, *blob.Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, cfg.BucketURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open artifact bucket: %w", err)
	}

	store, err := blobstore.New(blobstore.Options{
		Bucket:            bucket,
		Logger:            logger,
		FallbackToLocator: isDev,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init artifact store: %w", err)
	}
	return store, bucket, nil
}

// NewMarketDataClient builds the vendor-backed data source.
func NewMarketDataClient(cfg config.MarketDataConfig, logger *slog.Logger) *marketdata.Client {
	return marketdata.New(marketdata.Options{
		Logger:          logger,
		EODHDToken:      cfg.EODHDToken,
		TwelveDataToken: cfg.TwelveDataKey,
		Timeout:         cfg.Timeout,
	})
}
