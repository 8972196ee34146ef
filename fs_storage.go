package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

func NewFSStationStorage(root string, logger *zap.SugaredLogger) FSStationStorage {
	return FSStationStorage{root: root, sugar: logger}
}

// the bucket becomes a directory under the root and the key a relative path inside it
func (s FSStationStorage) objectPath(bucket string, key string) (string, error) {
	full := filepath.Join(s.root, bucket, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object %s://%s escapes storage root %s", bucket, key, s.root)
	}
	return full, nil
}

func (s FSStationStorage) ValidatePrerequisites(ctx context.Context, bucket string, prefix string) error {
	dir, err := s.objectPath(bucket, prefix)
	if err != nil {
		return err
	}
	err = os.MkdirAll(dir, os.FileMode(0755))
	if err != nil {
		return err
	}
	testFile := filepath.Join(dir, fmt.Sprintf(".testfile.%d", time.Now().Unix()))
	err = os.WriteFile(testFile, []byte{'b', 'l', 'a', 'h'}, os.FileMode(0644))
	if err != nil {
		return err
	}
	return os.Remove(testFile)
}

func (s FSStationStorage) WriteArchiveToStorage(ctx context.Context, localPath string, obj ArchiveObject) (*StoredArchive, error) {
	fullPath, err := s.objectPath(obj.Bucket, obj.Key)
	if err != nil {
		return nil, err
	}
	err = os.MkdirAll(filepath.Dir(fullPath), os.FileMode(0755))
	if err != nil {
		return nil, err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	// write beside the destination and rename so an existing object is replaced in one step
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".ingest-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		return nil, err
	}
	err = tmp.Close()
	if err != nil {
		return nil, err
	}
	err = os.Rename(tmp.Name(), fullPath)
	if err != nil {
		return nil, err
	}
	s.sugar.Debugf("wrote %s to %s", obj, fullPath)

	return &StoredArchive{
		ArchiveObject: obj,
		Location:      fullPath,
		Size:          size,
	}, nil
}
