package fileservice

import (
	"bytes"
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/kartikbazzad/gasdb/gasdberr"
	"github.com/minio/minio-go/v7"
)

// MinioService is a Service backed by an S3-compatible object store via
// minio-go, the real multi-process "shared object store" spec.md §1 names
// as the file service. fileIDs are object keys within bucket; parentID, if
// non-empty, is treated as a key prefix.
type MinioService struct {
	client *minio.Client
	bucket string
}

// NewMinioService wraps an existing *minio.Client. The bucket must already
// exist; MinioService does not create or manage buckets.
func NewMinioService(client *minio.Client, bucket string) *MinioService {
	return &MinioService{client: client, bucket: bucket}
}

func (s *MinioService) Create(ctx context.Context, name string, payload []byte, parentID string) (string, error) {
	key := uuid.NewString()
	if parentID != "" {
		key = parentID + "/" + key
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json", UserMetadata: map[string]string{"gasdb-name": name}})
	if err != nil {
		return "", translateErr("fileservice.Create", err)
	}
	return key, nil
}

func (s *MinioService) Read(ctx context.Context, fileID string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, fileID, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateErr("fileservice.Read", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateErr("fileservice.Read", err)
	}
	return data, nil
}

// Write overwrites fileID's payload. minio-go's PutObject to an existing key
// is itself the atomic overwrite spec.md §6 requires.
func (s *MinioService) Write(ctx context.Context, fileID string, payload []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, fileID, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return translateErr("fileservice.Write", err)
	}
	return nil
}

func (s *MinioService) Delete(ctx context.Context, fileID string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, fileID, minio.RemoveObjectOptions{}); err != nil {
		return translateErr("fileservice.Delete", err)
	}
	return nil
}

func (s *MinioService) Exists(ctx context.Context, fileID string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, fileID, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, translateErr("fileservice.Exists", err)
	}
	return true, nil
}

func (s *MinioService) Metadata(ctx context.Context, fileID string) (Metadata, error) {
	info, err := s.client.StatObject(ctx, s.bucket, fileID, minio.StatObjectOptions{})
	if err != nil {
		return Metadata{}, translateErr("fileservice.Metadata", err)
	}
	return Metadata{ID: fileID, Name: info.UserMetadata["Gasdb-Name"], ModifiedTime: info.LastModified}, nil
}

// translateErr maps minio's S3 error-response codes onto GASDB's Kind
// taxonomy so the Coordinator's retry/backoff logic doesn't need to know
// about S3 specifics.
func translateErr(op string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return gasdberr.NewError(gasdberr.FileNotFound, op, "object not found", err)
	case "AccessDenied":
		return gasdberr.NewError(gasdberr.PermissionDenied, op, "access denied", err)
	case "QuotaExceeded", "ServiceUnavailable", "SlowDown":
		return gasdberr.NewError(gasdberr.QuotaExceeded, op, "store quota or rate limit exceeded", err)
	default:
		return gasdberr.NewError(gasdberr.FileIO, op, "object store operation failed", err)
	}
}
