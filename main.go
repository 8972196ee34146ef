package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	semver "github.com/blang/semver/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type cliOptions struct {
	configPath             string
	loggerType             string
	debug                  bool
	quiet                  bool
	userAgent              string
	fetchTimeout           time.Duration
	workDir                string
	storageType            string
	fsRoot                 string
	s3Endpoint             string
	failFast               bool
	preflight              bool
	maxConsecutiveFailures uint
	// no flag, empty means DEFAULT_STATION_DATA_BASE_URL
	baseURL string
}

func main() {
	var opts cliOptions

	flag.StringVar(&opts.configPath, "f", "config.yaml", "Path to the station data file (shorthand)")
	flag.StringVar(&opts.configPath, "file", "config.yaml", "Path to the station data file")
	flag.BoolVar(&opts.debug, "d", false, "Show DEBUG output (shorthand)")
	flag.BoolVar(&opts.debug, "debug", false, "Show DEBUG output")
	flag.BoolVar(&opts.quiet, "q", false, "Show WARN/ERROR output only (shorthand)")
	flag.BoolVar(&opts.quiet, "quiet", false, "Show WARN/ERROR output only")
	flag.StringVar(&opts.loggerType, "logger-type", "development", "Logger type (development or production)")
	flag.StringVar(&opts.userAgent, "user-agent", DEFAULT_USER_AGENT, "User-Agent header sent to the Met Office server")
	flag.DurationVar(&opts.fetchTimeout, "fetch-timeout", DEFAULT_FETCH_TIMEOUT, "Timeout for each station download")
	flag.StringVar(&opts.workDir, "work-dir", ".", "Directory for temporary compressed files")
	flag.StringVar(&opts.storageType, "storage-type", "s3", "Destination storage (s3 or fs)")
	flag.StringVar(&opts.fsRoot, "fs-root", "archive", "Root directory when storage-type is fs")
	flag.StringVar(&opts.s3Endpoint, "s3-endpoint", "", "Endpoint URL for an S3-compatible store")
	flag.BoolVar(&opts.failFast, "fail-fast", false, "Abort the run at the first station that fails")
	flag.BoolVar(&opts.preflight, "preflight", false, "Check the destination is writable before downloading anything")
	flag.UintVar(&opts.maxConsecutiveFailures, "max-consecutive-fetch-failures", DEFAULT_MAX_CONSECUTIVE_FAILS, "Stop contacting the server after this many failed downloads in a row (0 to never stop)")
	flag.Parse()

	os.Exit(run(opts))
}

func run(opts cliOptions) int {
	if opts.debug && opts.quiet {
		fmt.Fprintln(os.Stderr, "-debug and -quiet are mutually exclusive")
		return 2
	}
	if !StringInSlice(opts.loggerType, []string{"development", "production"}) {
		fmt.Fprintf(os.Stderr, "%s is not a valid logger type\n", opts.loggerType)
		return 2
	}
	storageType, ok := ParseStationStorageType(strings.ToLower(opts.storageType))
	if !ok {
		fmt.Fprintf(os.Stderr, "%s is not a known storage type\n", opts.storageType)
		return 2
	}

	runID := uuid.NewString()
	logger, err := newLogger(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to build logger: %v\n", err)
		return 2
	}
	defer logger.Sync()
	sugar = logger.Sugar().With("run_id", runID)
	sugar.Debug("output at DEBUG level")

	// a missing .env is the normal case
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		sugar.Warnf("unable to load .env: %v", err)
	}

	var reporter FaultReporter = noopReporter{}
	if dsn := os.Getenv(SENTRY_DSN_ENV); dsn != "" {
		sugar.Info("setting Sentry DSN")
		reporter, err = NewSentryReporter(dsn, runID)
		if err != nil {
			sugar.Errorf("unable to initialise Sentry: %v", err)
			reporter = noopReporter{}
		}
	} else {
		sugar.Warn("sentry not configured")
	}
	defer reporter.Flush(5 * time.Second)
	defer reportPanic(reporter)

	config, err := LoadConfig(opts.configPath)
	if err != nil {
		sugar.Error(err)
		reporter.Report(err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var storage StationStorer
	switch storageType {
	case STORAGE_TYPE_S3:
		s3client, err := NewS3Client(ctx, opts.s3Endpoint)
		if err != nil {
			sugar.Errorf("unable to configure S3 client: %v", err)
			reporter.Report(err)
			return 2
		}
		storage = NewS3StationStorage(s3client, sugar)
	case STORAGE_TYPE_FS:
		storage = NewFSStationStorage(opts.fsRoot, sugar)
	}

	if opts.preflight {
		err = storage.ValidatePrerequisites(ctx, config.Bucket, config.PathPrefix)
		if err != nil {
			sugar.Errorf("destination %s://%s failed preflight: %v", config.Bucket, config.PathPrefix, err)
			reporter.Report(fmt.Errorf("%w: %w", ErrUpload, err))
			return 2
		}
	}

	fetcher := NewStationFetcher(StationFetcherOptions{
		BaseURL:                opts.baseURL,
		UserAgent:              opts.userAgent,
		Timeout:                opts.fetchTimeout,
		MaxConsecutiveFailures: uint32(opts.maxConsecutiveFailures),
	}, sugar)

	archiver := NewStationArchiver(config, fetcher, storage, reporter, sugar)
	archiver.WorkDir = opts.workDir
	archiver.FailFast = opts.failFast

	report := archiver.ArchiveAll(ctx, config.Stations)
	failed := report.Failed()
	if len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, o := range failed {
			names = append(names, fmt.Sprintf("%s (%s)", o.Station, o.Status))
		}
		sugar.Errorf("%d of %d stations were not archived: %s", len(failed), len(report.Outcomes), strings.Join(names, ", "))
		return 1
	}
	sugar.Infof("archived %d stations", len(report.Outcomes))
	return 0
}

func newLogger(opts cliOptions) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.loggerType == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	level := zapcore.InfoLevel
	if opts.debug {
		level = zapcore.DebugLevel
	} else if opts.quiet {
		level = zapcore.WarnLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build()
}

func newConfigValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("stationid", func(fl validator.FieldLevel) bool {
		return ValidStationID(fl.Field().String())
	})
	if err != nil {
		return nil, fmt.Errorf("unable to register stationid validation: %w", err)
	}
	return v, nil
}

// LoadConfig reads the station document. It either returns a complete configuration or an error wrapping
// ErrConfiguration, never anything in between.
func LoadConfig(configPath string) (config Configuration, err error) {
	sugar.Infof("opening %s", configPath)

	var raw configRaw
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return config, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	err = yaml.Unmarshal(configData, &raw)
	if err != nil {
		return config, fmt.Errorf("%w: unable to parse %s: %w", ErrConfiguration, configPath, err)
	}

	var missing []string
	if raw.Stations == nil {
		missing = append(missing, "stations")
	}
	if raw.S3Bucket == nil {
		missing = append(missing, "s3bucket")
	}
	if raw.S3Path == nil {
		missing = append(missing, "s3path")
	}
	if len(missing) > 0 {
		return config, fmt.Errorf("%w: %s is missing required keys: %s", ErrConfiguration, configPath, strings.Join(missing, ", "))
	}

	if raw.ConfigVersion != "" {
		err = checkConfigVersion(raw.ConfigVersion)
		if err != nil {
			return config, fmt.Errorf("%w: %s: %w", ErrConfiguration, configPath, err)
		}
	}

	candidate := Configuration{
		Stations:   append([]string(nil), (*raw.Stations)...),
		Bucket:     *raw.S3Bucket,
		PathPrefix: *raw.S3Path,
	}
	validate, err := newConfigValidator()
	if err != nil {
		return config, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	err = validate.Struct(candidate)
	if err != nil {
		return config, fmt.Errorf("%w: %s failed validation: %w", ErrConfiguration, configPath, err)
	}

	if len(candidate.Stations) == 0 {
		sugar.Warnf("%s lists no stations, nothing will be archived", configPath)
	}
	return candidate, nil
}

func checkConfigVersion(version string) error {
	v, err := semver.ParseTolerant(version)
	if err != nil {
		return fmt.Errorf("invalid config_version %q: %w", version, err)
	}
	supported := semver.MustParseRange(SUPPORTED_CONFIG_VERSION_RANGE)
	if !supported(v) {
		return fmt.Errorf("config_version %s is not in supported range %s", v, SUPPORTED_CONFIG_VERSION_RANGE)
	}
	return nil
}
