package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

func NewS3StationStorage(client S3ClientInterface, logger *zap.SugaredLogger) S3StationStorage {
	return S3StationStorage{s3client: client, sugar: logger}
}

// ValidatePrerequisites writes and removes a throwaway object so bad credentials or a missing bucket show up
// before any station is downloaded.
func (s S3StationStorage) ValidatePrerequisites(ctx context.Context, bucket string, prefix string) error {
	key := prefix + "/" + fmt.Sprintf(".testfile.%d", time.Now().Unix())
	_, err := s.s3client.PutObject(ctx, bucket, key, []byte{'b', 'l', 'a', 'h'})
	if err != nil {
		return err
	}
	err = s.s3client.DeleteObject(ctx, bucket, key)
	if err != nil {
		return err
	}
	s.sugar.Debugf("preflight write to %s://%s succeeded", bucket, key)

	return nil
}

func (s S3StationStorage) WriteArchiveToStorage(ctx context.Context, localPath string, obj ArchiveObject) (*StoredArchive, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	etag, err := s.s3client.PutObjectFromReader(ctx, obj.Bucket, obj.Key, file, obj.ContentType, obj.Metadata)
	if err != nil {
		return nil, err
	}
	s.sugar.Debugf("uploaded %s to S3", obj)

	location := ""
	if etag != nil {
		location = *etag
	}
	return &StoredArchive{
		ArchiveObject: obj,
		Location:      location,
		Size:          info.Size(),
	}, nil
}
