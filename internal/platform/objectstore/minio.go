package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Connect builds a MinIO client for cfg and creates the definitions bucket
// when it is missing.
func Connect(ctx context.Context, cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	transport, err := minio.DefaultTransport(cfg.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("minio transport: %w", err)
	}
	transport.TLSHandshakeTimeout = 5 * time.Second
	transport.ResponseHeaderTimeout = 30 * time.Second

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketDefinitions)
	if err != nil {
		return nil, fmt.Errorf("definitions bucket %s: %w", cfg.BucketDefinitions, err)
	}
	if !exists {
		err := client.MakeBucket(ctx, cfg.BucketDefinitions, minio.MakeBucketOptions{Region: cfg.Region})
		if err != nil {
			// Another replica may have created it meanwhile.
			if resp := minio.ToErrorResponse(err); resp.Code != "BucketAlreadyOwnedByYou" {
				return nil, fmt.Errorf("create definitions bucket %s: %w", cfg.BucketDefinitions, err)
			}
		}
	}
	return client, nil
}

// BucketProbe returns a readiness check failing when bucket is unreachable
// or has been removed.
func BucketProbe(client *minio.Client, bucket string) func(context.Context) error {
	return func(ctx context.Context) error {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("bucket %s: %w", bucket, err)
		}
		if !exists {
			return fmt.Errorf("bucket %s is missing", bucket)
		}
		return nil
	}
}
