package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"buildtrack/pkg/circuitbreaker"
	"buildtrack/pkg/config"
	"buildtrack/pkg/metrics"
)

// MinioStore 照片对象存储，所有调用经过熔断器
type MinioStore struct {
	client  *minio.Client
	bucket  string
	expiry  time.Duration
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger
}

// NewMinioStore 创建客户端并确保 bucket 存在
func NewMinioStore(ctx context.Context, cfg config.MinioConfig, logger *zap.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	expiry := time.Duration(cfg.ExpireHours) * time.Hour
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	bc := circuitbreaker.DefaultConfig()
	bc.OnStateChange = func(name string, from, to circuitbreaker.State) {
		logger.Warn("Object storage breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		metrics.SetBreakerState(name, int(to))
	}

	s := &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		expiry:  expiry,
		breaker: circuitbreaker.New("minio", bc),
		logger:  logger,
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureBucket bucket 不存在时创建（幂等）
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", s.bucket, err)
		}
		if exists {
			return nil
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
		s.logger.Info("Created photo bucket", zap.String("bucket", s.bucket))
		return nil
	})
}

// Put 上传对象
func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			return fmt.Errorf("put object %s: %w", key, err)
		}
		return nil
	})
}

// Remove 删除对象
func (s *MinioStore) Remove(ctx context.Context, key string) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove object %s: %w", key, err)
		}
		return nil
	})
}

// PresignedURL 生成限时下载链接
func (s *MinioStore) PresignedURL(ctx context.Context, key string) (string, error) {
	var out string
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, url.Values{})
		if err != nil {
			return fmt.Errorf("presign object %s: %w", key, err)
		}
		out = u.String()
		return nil
	})
	return out, err
}
