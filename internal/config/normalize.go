package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)

	c.Tools.Downloader = strings.TrimSpace(c.Tools.Downloader)
	c.Tools.Extractor = strings.TrimSpace(c.Tools.Extractor)
	c.Tools.Scorer = strings.TrimSpace(c.Tools.Scorer)
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.Downloader == "" {
		c.Tools.Downloader = defaultDownloaderBinary
	}
	if c.Tools.Extractor == "" {
		c.Tools.Extractor = defaultExtractorBinary
	}
	if c.Tools.Scorer == "" {
		c.Tools.Scorer = defaultScorerBinary
	}
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobeBinary
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}
