package config

const (
	defaultDataDir            = "~/.local/share/qoed/video_db"
	defaultLogDir             = "~/.local/share/qoed/logs"
	defaultAPIBind            = "127.0.0.1:7512"
	defaultDownloaderBinary   = "yt-dlp"
	defaultExtractorBinary    = "qoe-extract"
	defaultScorerBinary       = "p1203-standalone"
	defaultFFprobeBinary      = "ffprobe"
	defaultQueuePollInterval  = 3
	defaultErrorRetryInterval = 10
	defaultBuildWaitTimeout   = 3600
	defaultExtractParallelism = 3
	defaultManifestTimeout    = 30
	defaultMinFreeSpaceGiB    = 5
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Tools: Tools{
			Downloader: defaultDownloaderBinary,
			Extractor:  defaultExtractorBinary,
			Scorer:     defaultScorerBinary,
			FFprobe:    defaultFFprobeBinary,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			BuildWaitTimeout:   defaultBuildWaitTimeout,
			ExtractParallelism: defaultExtractParallelism,
			ManifestTimeout:    defaultManifestTimeout,
			MinFreeSpaceGiB:    defaultMinFreeSpaceGiB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
