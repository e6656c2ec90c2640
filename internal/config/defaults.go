package config

const (
	defaultDataDir          = "~/.local/share/carousel"
	defaultLogDir           = "~/.local/share/carousel/logs"
	defaultAPIBind          = "127.0.0.1:7878"
	defaultSofficeBinary    = "soffice"
	defaultPdftoppmBinary   = "pdftoppm"
	defaultConvertTimeout   = 120
	defaultRasterTimeout    = 120
	defaultRasterDPI        = 300
	defaultMaxUploadMiB     = 200
	defaultRetentionMinutes = 120
	defaultSweepInterval    = 60
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
)

func defaultAllowedExtensions() []string {
	return []string{"ppt", "pptx", "odp", "pps", "ppsx"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Convert: Convert{
			SofficeBinary:     defaultSofficeBinary,
			PdftoppmBinary:    defaultPdftoppmBinary,
			ConvertTimeout:    defaultConvertTimeout,
			RasterTimeout:     defaultRasterTimeout,
			RasterDPI:         defaultRasterDPI,
			MaxUploadMiB:      defaultMaxUploadMiB,
			AllowedExtensions: defaultAllowedExtensions(),
			RetentionMinutes:  defaultRetentionMinutes,
		},
		Janitor: Janitor{
			SweepInterval: defaultSweepInterval,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
