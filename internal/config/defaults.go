package config

const (
	// AssetBackendFS stores photos on local disk and serves them from the API.
	AssetBackendFS = "fs"
	// AssetBackendS3 stores photos in an S3 bucket.
	AssetBackendS3 = "s3"

	defaultDataDir           = "~/.local/share/pantry"
	defaultLogDir            = "~/.local/share/pantry/logs"
	defaultAssetsDir         = "~/.local/share/pantry/assets"
	defaultAPIBind           = "127.0.0.1:7489"
	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "meta-llama/llama-3.1-8b-instruct:free"
	defaultLLMTitle          = "Pantry Tracker"
	defaultLLMTimeoutSeconds = 60
	defaultLLMRetryAttempts  = 1
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	dotEnvFile               = ".env"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Assets: Assets{
			Backend: AssetBackendFS,
			Dir:     defaultAssetsDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  defaultLLMRetryAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Enabled: true,
		},
	}
}
