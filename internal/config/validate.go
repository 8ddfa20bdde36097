package config

import "errors"

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	return c.validateWorkflow()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.BuildWaitTimeout < 0 {
		return errors.New("workflow.build_wait_timeout must not be negative")
	}
	if c.Workflow.ExtractParallelism <= 0 {
		return errors.New("workflow.extract_parallelism must be positive")
	}
	if c.Workflow.ManifestTimeout <= 0 {
		return errors.New("workflow.manifest_timeout must be positive")
	}
	if c.Workflow.MinFreeSpaceGiB < 0 {
		return errors.New("workflow.min_free_space_gib must not be negative")
	}
	return nil
}
