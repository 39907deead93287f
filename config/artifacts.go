package config

import "time"

// ArtifactsConfig contains artifact storage configuration.
type ArtifactsConfig struct {
	// BucketURL is a gocloud.dev blob URL, e.g. "gs://quantjobs-artifacts",
	// "s3://quantjobs-artifacts" or "file:///var/lib/quantjobs/artifacts".
	BucketURL string `env:"ARTIFACTS_BUCKET_URL" envDefault:""`

	// SignedURLTTL is the lifetime of result download links.
	SignedURLTTL time.Duration `env:"ARTIFACTS_SIGNED_URL_TTL" envDefault:"15m"`
}

// Sanitize applies guardrails to artifact configuration values. Dev mode
// falls back to a local file bucket when no URL is configured.
func (a *ArtifactsConfig) Sanitize(isDev bool) {
	if a.BucketURL == "" && isDev {
		a.BucketURL = "file:///tmp/quantjobs-artifacts?create_dir=1"
	}
	if a.SignedURLTTL < time.Minute {
		a.SignedURLTTL = time.Minute
	}
	if a.SignedURLTTL > 24*time.Hour {
		a.SignedURLTTL = 24 * time.Hour
	}
}
