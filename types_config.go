package main

// shape of the station document on disk; pointers let us tell a missing key from an empty one
type configRaw struct {
	Stations      *[]string `yaml:"stations"`
	S3Bucket      *string   `yaml:"s3bucket"`
	S3Path        *string   `yaml:"s3path"`
	ConfigVersion string    `yaml:"config_version"`
}

// Configuration is resolved once at startup and never mutated afterwards.
type Configuration struct {
	Stations   []string `validate:"dive,stationid"`
	Bucket     string   `validate:"required"`
	PathPrefix string
}
