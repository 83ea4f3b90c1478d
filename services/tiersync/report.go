package tiersync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/minio/minio-go/v7"
)

//go:generate mockgen -destination=mocks/mock_tiersync.go -package=mocks smallbiznis-loyaltycore/services/tiersync ReportUploader

// ReportUploader stores sync reports outside the database.
type ReportUploader interface {
	Upload(ctx context.Context, key string, report *Report) error
}

type minioUploader struct {
	client *minio.Client
	bucket string
}

func NewMinioUploader(client *minio.Client, bucket string) ReportUploader {
	return &minioUploader{client: client, bucket: bucket}
}

func (u *minioUploader) Upload(ctx context.Context, key string, report *Report) error {
	b, err := json.Marshal(report)
	if err != nil {
		return err
	}

	_, err = u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(b), int64(len(b)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", u.bucket, key, err)
	}
	return nil
}

func reportKey(companyID, jobID string, r *Report) string {
	return fmt.Sprintf("tier-sync/%s/%s/%s.json", companyID, r.StartedAt.Format("2006-01-02"), jobID)
}
