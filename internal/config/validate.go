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
	if err := c.validateConvert(); err != nil {
		return err
	}
	if err := c.validateJanitor(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateConvert() error {
	if c.Convert.ConvertTimeout <= 0 {
		return errors.New("convert.convert_timeout must be positive")
	}
	if c.Convert.RasterTimeout <= 0 {
		return errors.New("convert.raster_timeout must be positive")
	}
	if c.Convert.RasterDPI < 72 || c.Convert.RasterDPI > 600 {
		return fmt.Errorf("convert.raster_dpi must be between 72 and 600, got %d", c.Convert.RasterDPI)
	}
	if c.Convert.MaxUploadMiB <= 0 {
		return errors.New("convert.max_upload_mib must be positive")
	}
	if c.Convert.RetentionMinutes <= 0 {
		return errors.New("convert.retention_minutes must be positive")
	}
	if len(c.Convert.AllowedExtensions) == 0 {
		return errors.New("convert.allowed_extensions must not be empty")
	}
	for _, ext := range c.Convert.AllowedExtensions {
		if !extensionWellFormed(ext) {
			return fmt.Errorf("convert.allowed_extensions entry %q must be alphanumeric", ext)
		}
	}
	return nil
}

func (c *Config) validateJanitor() error {
	if c.Janitor.SweepInterval <= 0 {
		return errors.New("janitor.sweep_interval must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}

func extensionWellFormed(ext string) bool {
	if ext == "" {
		return false
	}
	for _, r := range ext {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
