package main

import (
	"regexp"
	"strings"
)

var stationIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

func ValidStationID(station string) bool {
	return stationIDPattern.MatchString(station)
}

func StationDataURL(baseURL string, station string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + station + STATION_DATA_FILE_SUFFIX
}

func StationArchiveFileName(station string) string {
	return station + STATION_ARCHIVE_FILE_SUFFIX
}

// prefix is used verbatim, so an empty prefix yields a key with a leading slash
func StationObjectKey(prefix string, station string) string {
	return prefix + "/" + StationArchiveFileName(station)
}
