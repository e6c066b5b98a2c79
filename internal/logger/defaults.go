package logger

// DefaultConfig is used when the configuration file has no logging section.
var DefaultConfig = Config{
	Level:        "info",
	OutputPaths:  []string{"stdout"},
	LogToConsole: false,
	Encoding: Encoding{
		TimeEncoder:     "iso8601",
		DurationEncoder: "string",
		CallerEncoder:   "short",
	},
	LogRotation: LogRotation{
		Enabled:    true,
		MaxSizeMB:  100,
		MaxBackups: 7,
		MaxAgeDays: 30,
		Compress:   true,
	},
	Sanitization: Sanitization{
		SensitiveFields: []string{
			"authorization",
			"proxy-authorization",
			"cookie",
			"set-cookie",
			"password",
			"token",
		},
		Mask: "****",
	},
}

func assignDefaultValues(cfg *Config) {
	if cfg.Level == "" {
		cfg.Level = DefaultConfig.Level
	}
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = DefaultConfig.OutputPaths
	}
	if cfg.LogRotation.MaxSizeMB == 0 {
		cfg.LogRotation.MaxSizeMB = DefaultConfig.LogRotation.MaxSizeMB
	}
	if cfg.LogRotation.MaxBackups == 0 {
		cfg.LogRotation.MaxBackups = DefaultConfig.LogRotation.MaxBackups
	}
	if cfg.LogRotation.MaxAgeDays == 0 {
		cfg.LogRotation.MaxAgeDays = DefaultConfig.LogRotation.MaxAgeDays
	}
	if cfg.Sanitization.Mask == "" {
		cfg.Sanitization.Mask = DefaultConfig.Sanitization.Mask
	}
}
