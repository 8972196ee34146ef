package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/mod/sumdb/dirhash"
)

func createArchiveFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(0644))
}

// writeGzipArchive writes data as a single gzip member to file, closes it and returns the size of the file on disk.
func writeGzipArchive(file *os.File, name string, data []byte) (int64, error) {
	defer file.Close()

	zw, err := gzip.NewWriterLevel(file, gzip.BestCompression)
	if err != nil {
		return 0, err
	}
	zw.Name = name
	if _, err = zw.Write(data); err != nil {
		return 0, fmt.Errorf("error writing gzip stream: %w", err)
	}
	if err = zw.Close(); err != nil {
		return 0, fmt.Errorf("error finishing gzip stream: %w", err)
	}
	if err = file.Close(); err != nil {
		return 0, err
	}

	info, err := os.Stat(file.Name())
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func reductionPercentage(uncompressed int64, compressed int64) float64 {
	if uncompressed == 0 {
		return 0
	}
	return 100.0 * (1.0 - float64(compressed)/float64(uncompressed))
}

// h1: hash of the downloaded file, same scheme Go uses for module zips
func sourceChecksum(name string, data []byte) (string, error) {
	return dirhash.Hash1([]string{name}, func(string) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}
