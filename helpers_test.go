package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

type mockS3Client struct {
	putObjectFromReaderFunc func(ctx context.Context, bucket string, key string, body io.Reader, contentType string, metadata map[string]string) (*string, error)
	deleteObjectFunc        func(ctx context.Context, bucket string, key string) error
}

func (m mockS3Client) PutObjectFromReader(ctx context.Context, bucket string, key string, body io.Reader, contentType string, metadata map[string]string) (*string, error) {
	return m.putObjectFromReaderFunc(ctx, bucket, key, body, contentType, metadata)
}

func (m mockS3Client) PutObject(ctx context.Context, bucket string, key string, body []byte) (*string, error) {
	return m.putObjectFromReaderFunc(ctx, bucket, key, bytes.NewReader(body), "", nil)
}

func (m mockS3Client) DeleteObject(ctx context.Context, bucket string, key string) error {
	return m.deleteObjectFunc(ctx, bucket, key)
}

type storedObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

// in-memory bucket store for exercising S3StationStorage end to end
type memoryS3 struct {
	mu      sync.Mutex
	objects map[string]storedObject
	puts    []string
	failKey string
}

func newMemoryS3() *memoryS3 {
	return &memoryS3{objects: make(map[string]storedObject)}
}

func (m *memoryS3) client() mockS3Client {
	return mockS3Client{
		putObjectFromReaderFunc: func(ctx context.Context, bucket string, key string, body io.Reader, contentType string, metadata map[string]string) (*string, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			if key == m.failKey {
				return nil, errors.New("AccessDenied")
			}
			data, err := io.ReadAll(body)
			if err != nil {
				return nil, err
			}
			full := bucket + "://" + key
			m.objects[full] = storedObject{body: data, contentType: contentType, metadata: metadata}
			m.puts = append(m.puts, full)
			etag := `"etag"`
			return &etag, nil
		},
		deleteObjectFunc: func(ctx context.Context, bucket string, key string) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.objects, bucket+"://"+key)
			return nil
		},
	}
}

type mockFetcher struct {
	baseURL string
	data    map[string][]byte
	failFor map[string]error
	calls   []string
}

func (m *mockFetcher) URLFor(station string) string {
	return StationDataURL(m.baseURL, station)
}

func (m *mockFetcher) FetchStationData(ctx context.Context, station string) ([]byte, error) {
	m.calls = append(m.calls, m.URLFor(station))
	if err, ok := m.failFor[station]; ok {
		return nil, err
	}
	return m.data[station], nil
}

type mockStationStorer struct {
	validatePrerequisitesFunc func(ctx context.Context, bucket string, prefix string) error
	writeArchiveToStorageFunc func(ctx context.Context, localPath string, obj ArchiveObject) (*StoredArchive, error)
}

func (m mockStationStorer) ValidatePrerequisites(ctx context.Context, bucket string, prefix string) error {
	return m.validatePrerequisitesFunc(ctx, bucket, prefix)
}

func (m mockStationStorer) WriteArchiveToStorage(ctx context.Context, localPath string, obj ArchiveObject) (*StoredArchive, error) {
	return m.writeArchiveToStorageFunc(ctx, localPath, obj)
}

type recordingReporter struct {
	reported []error
	flushed  bool
}

func (r *recordingReporter) Report(err error) {
	r.reported = append(r.reported, err)
}

func (r *recordingReporter) Flush(time.Duration) {
	r.flushed = true
}
