package config

// ObsConfig configures the OpenTelemetry exporters wired by
// internal/observability.InitOTel.
type ObsConfig struct {
	OTLP           string
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// S3SSEConfig configures server-side encryption for uploads written through
// the S3-backed object store.
type S3SSEConfig struct {
	Mode     string // "" | "AES256" | "aws:kms"
	KMSKeyID string
}

// S3Config configures internal/objectstore.NewS3Store, matching the
// constructor's field expectations for AWS S3 and S3-compatible (MinIO)
// endpoints.
type S3Config struct {
	Bucket                string
	Region                string
	Endpoint              string
	AccessKey             string
	SecretKey             string
	UsePathStyle          bool
	TLSInsecureSkipVerify bool
	Prefix                string
	SSE                   S3SSEConfig
}
