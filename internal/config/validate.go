package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAssets(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateAssets() error {
	switch c.Assets.Backend {
	case AssetBackendFS:
		if strings.TrimSpace(c.Assets.Dir) == "" {
			return errors.New("assets.dir must be set when assets.backend is \"fs\"")
		}
	case AssetBackendS3:
		if c.Assets.S3Bucket == "" {
			return errors.New("assets.s3_bucket must be set when assets.backend is \"s3\"")
		}
		if c.Assets.S3Region == "" {
			return errors.New("assets.s3_region must be set when assets.backend is \"s3\" (or set AWS_REGION)")
		}
		if c.Assets.PublicURL == "" {
			return errors.New("assets.public_url must be set when assets.backend is \"s3\"")
		}
	default:
		return fmt.Errorf("assets.backend: unsupported value %q (want \"fs\" or \"s3\")", c.Assets.Backend)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	if c.LLM.RetryAttempts < 1 {
		return errors.New("llm.retry_attempts must be >= 1")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
