package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

type StationDataFetcher interface {
	URLFor(station string) string
	FetchStationData(ctx context.Context, station string) ([]byte, error)
}

type StationArchiver struct {
	Config   Configuration
	Fetcher  StationDataFetcher
	Storage  StationStorer
	Reporter FaultReporter
	// where the temporary .gz files are written
	WorkDir string
	// stop at the first failed station instead of carrying on with the rest
	FailFast bool

	sugar *zap.SugaredLogger
}

type ArchiveResult struct {
	Station             string
	URL                 string
	Step                ArchiveStep
	UncompressedBytes   int64
	CompressedBytes     int64
	ReductionPercentage float64
	SourceChecksum      string
	Stored              *StoredArchive
	CleanupErr          error
}

type StationStatus string

const (
	STATION_STATUS_ARCHIVED StationStatus = "archived"
	STATION_STATUS_FAILED   StationStatus = "failed"
	STATION_STATUS_SKIPPED  StationStatus = "skipped"
)

type StationOutcome struct {
	Station string
	Status  StationStatus
	Result  *ArchiveResult
	Err     error
}

type RunReport struct {
	Outcomes []StationOutcome
	// set when the loop stopped early
	Aborted bool
}

func (r RunReport) Failed() []StationOutcome {
	var failed []StationOutcome
	for _, o := range r.Outcomes {
		if o.Status != STATION_STATUS_ARCHIVED {
			failed = append(failed, o)
		}
	}
	return failed
}

func (r RunReport) OK() bool {
	return len(r.Failed()) == 0
}

func NewStationArchiver(config Configuration, fetcher StationDataFetcher, storage StationStorer, reporter FaultReporter, logger *zap.SugaredLogger) *StationArchiver {
	if reporter == nil {
		reporter = noopReporter{}
	}
	return &StationArchiver{
		Config:   config,
		Fetcher:  fetcher,
		Storage:  storage,
		Reporter: reporter,
		WorkDir:  ".",
		sugar:    logger,
	}
}

// ArchiveAll archives every station in the order given and returns one outcome per station.
func (a *StationArchiver) ArchiveAll(ctx context.Context, stations []string) RunReport {
	var report RunReport

	for i, station := range stations {
		a.sugar.Infof("downloading data for %s", station)
		result, err := a.ArchiveStation(ctx, station)
		if err != nil {
			a.sugar.Errorf("error archiving station %s: %v", station, err)
			a.Reporter.Report(err)
			report.Outcomes = append(report.Outcomes, StationOutcome{Station: station, Status: STATION_STATUS_FAILED, Result: result, Err: err})

			if a.FailFast || ctx.Err() != nil {
				for _, remaining := range stations[i+1:] {
					report.Outcomes = append(report.Outcomes, StationOutcome{Station: remaining, Status: STATION_STATUS_SKIPPED})
				}
				report.Aborted = true
				a.sugar.Errorf("aborting run, %d stations not processed", len(stations)-i-1)
				break
			}
			continue
		}
		report.Outcomes = append(report.Outcomes, StationOutcome{Station: station, Status: STATION_STATUS_ARCHIVED, Result: result})
	}

	return report
}

// ArchiveStation runs download, compress, upload and cleanup for a single station.
func (a *StationArchiver) ArchiveStation(ctx context.Context, station string) (result *ArchiveResult, err error) {
	step := STEP_PENDING
	fail := func(cause error) error {
		result.Step = step
		return &ArchiveError{Station: station, Step: step, Err: cause}
	}

	result = &ArchiveResult{
		Station: station,
		URL:     a.Fetcher.URLFor(station),
	}

	data, err := a.Fetcher.FetchStationData(ctx, station)
	if err != nil {
		return result, fail(err)
	}
	step = STEP_FETCHED
	result.UncompressedBytes = int64(len(data))

	archiveName := StationArchiveFileName(station)
	checksum, err := sourceChecksum(station+STATION_DATA_FILE_SUFFIX, data)
	if err != nil {
		a.sugar.Warnf("unable to checksum data for %s: %v", station, err)
	}
	result.SourceChecksum = checksum

	gzipPath := filepath.Join(a.WorkDir, archiveName)
	a.sugar.Debugf("writing GZIP archive to %s", gzipPath)
	file, err := createArchiveFile(gzipPath)
	if err != nil {
		return result, fail(err)
	}
	// from here on the temp file is ours and must not outlive this call
	defer func() {
		result.CleanupErr = a.cleanup(gzipPath)
		if result.CleanupErr != nil {
			a.sugar.Warnf("error removing %s: %v", gzipPath, result.CleanupErr)
			return
		}
		if err == nil {
			result.Step = STEP_CLEANED
		}
	}()

	compressed, err := writeGzipArchive(file, station+STATION_DATA_FILE_SUFFIX, data)
	if err != nil {
		return result, fail(err)
	}
	step = STEP_COMPRESSED
	result.CompressedBytes = compressed
	result.ReductionPercentage = reductionPercentage(result.UncompressedBytes, compressed)
	a.sugar.Debugf("compressed down to %d bytes (%.02f%%)", compressed, result.ReductionPercentage)

	obj := ArchiveObject{
		Bucket:      a.Config.Bucket,
		Key:         StationObjectKey(a.Config.PathPrefix, station),
		ContentType: ARCHIVE_CONTENT_TYPE,
	}
	if checksum != "" {
		obj.Metadata = map[string]string{SOURCE_CHECKSUM_METADATA_KEY: checksum}
	}
	a.sugar.Debugf("uploading to %s", obj)
	stored, err := a.Storage.WriteArchiveToStorage(ctx, gzipPath, obj)
	if err != nil {
		return result, fail(err)
	}
	step = STEP_UPLOADED
	result.Step = step
	result.Stored = stored
	a.sugar.Infof("archived %s to %s (%d -> %d bytes)", station, obj, result.UncompressedBytes, compressed)

	return result, nil
}

func (a *StationArchiver) cleanup(path string) error {
	a.sugar.Debugf("removing file %s", path)
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrCleanup, err)
}
