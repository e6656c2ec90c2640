package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeConvert()
	c.normalizeJanitor()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CAROUSEL_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeConvert() {
	c.Convert.SofficeBinary = strings.TrimSpace(c.Convert.SofficeBinary)
	if c.Convert.SofficeBinary == "" {
		c.Convert.SofficeBinary = defaultSofficeBinary
	}
	c.Convert.PdftoppmBinary = strings.TrimSpace(c.Convert.PdftoppmBinary)
	if c.Convert.PdftoppmBinary == "" {
		c.Convert.PdftoppmBinary = defaultPdftoppmBinary
	}
	if c.Convert.ConvertTimeout <= 0 {
		c.Convert.ConvertTimeout = defaultConvertTimeout
	}
	if c.Convert.RasterTimeout <= 0 {
		c.Convert.RasterTimeout = defaultRasterTimeout
	}
	if c.Convert.RasterDPI <= 0 {
		c.Convert.RasterDPI = defaultRasterDPI
	}
	if c.Convert.MaxUploadMiB <= 0 {
		c.Convert.MaxUploadMiB = defaultMaxUploadMiB
	}
	if c.Convert.RetentionMinutes <= 0 {
		c.Convert.RetentionMinutes = defaultRetentionMinutes
	}

	normalized := make([]string, 0, len(c.Convert.AllowedExtensions))
	for _, ext := range c.Convert.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		normalized = append(normalized, ext)
	}
	if len(normalized) == 0 {
		normalized = defaultAllowedExtensions()
	}
	c.Convert.AllowedExtensions = normalized
}

func (c *Config) normalizeJanitor() {
	if c.Janitor.SweepInterval <= 0 {
		c.Janitor.SweepInterval = defaultSweepInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
