package config

// DefaultMaxUploadBytes matches the common speech API limit of 100MB per
// recognition request.
const DefaultMaxUploadBytes = 100 << 20

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kikitori/data/db/transcripts.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/kikitori/data/indices/keyword"
	}
	if cfg.Transcriber.Endpoint == "" {
		cfg.Transcriber.Endpoint = "https://stream.watsonplatform.net/speech-to-text/api"
	}
	if cfg.Transcriber.Model == "" {
		cfg.Transcriber.Model = "en-US_BroadbandModel"
	}
	if cfg.Transcriber.TimeoutSeconds == 0 {
		cfg.Transcriber.TimeoutSeconds = 300
	}
	if cfg.Transcriber.MaxUploadBytes == 0 {
		cfg.Transcriber.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".wav"}
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
}
