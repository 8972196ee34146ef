package main

import (
	"context"

	"go.uber.org/zap"
)

type StationStorageType int

const (
	STORAGE_TYPE_S3 StationStorageType = iota
	STORAGE_TYPE_FS
)

func ParseStationStorageType(s string) (StationStorageType, bool) {
	switch s {
	case "s3":
		return STORAGE_TYPE_S3, true
	case "fs":
		return STORAGE_TYPE_FS, true
	}
	return 0, false
}

// ArchiveObject describes where a compressed station file goes.
type ArchiveObject struct {
	Bucket      string
	Key         string
	ContentType string
	Metadata    map[string]string
}

func (o ArchiveObject) String() string {
	return o.Bucket + "://" + o.Key
}

type StoredArchive struct {
	ArchiveObject
	// etag for S3, full path for fs
	Location string
	Size     int64
}

type StationStorer interface {
	ValidatePrerequisites(ctx context.Context, bucket string, prefix string) error
	WriteArchiveToStorage(ctx context.Context, localPath string, obj ArchiveObject) (*StoredArchive, error)
}

type FSStationStorage struct {
	root  string
	sugar *zap.SugaredLogger
}

type S3StationStorage struct {
	s3client S3ClientInterface
	sugar    *zap.SugaredLogger
}
