package main

import "time"

// the upstream server filters on user agent, this one is known to get through
const DEFAULT_USER_AGENT = "curl/7.64.1"

const (
	DEFAULT_STATION_DATA_BASE_URL  = "https://www.metoffice.gov.uk/pub/data/weather/uk/climate/stationdata"
	DEFAULT_FETCH_TIMEOUT          = 60 * time.Second
	DEFAULT_MAX_CONSECUTIVE_FAILS  = 3
	STATION_DATA_FILE_SUFFIX       = "data.txt"
	STATION_ARCHIVE_FILE_SUFFIX    = STATION_DATA_FILE_SUFFIX + ".gz"
	ARCHIVE_CONTENT_TYPE           = "application/gzip"
	SOURCE_CHECKSUM_METADATA_KEY   = "source-h1"
	SUPPORTED_CONFIG_VERSION_RANGE = ">=1.0.0 <2.0.0"
	SENTRY_DSN_ENV                 = "SENTRY_DSN"
)
