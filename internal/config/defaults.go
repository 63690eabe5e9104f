package config

import (
	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
)

const (
	defaultLanguage            = "en"
	defaultOrganization        = "unfoldingWord"
	defaultTransport           = "raw"
	defaultTimeoutSeconds      = 60
	defaultManifestParser      = "line"
	defaultMaxAttempts         = 3
	defaultBaseDelayMS         = 1000
	defaultMaxDelayMS          = 30000
	defaultMaxRateLimitRetries = 10
	defaultPackageTTLMinutes   = 60
	defaultOnDemandTTLMinutes  = 24 * 60
	defaultLogLevel            = "info"
	defaultLogFormat           = "json"
	defaultPort                = 8080
)

// Default returns a Config populated with the built-in defaults.
func Default() Config {
	return Config{
		Language:     defaultLanguage,
		Organization: defaultOrganization,
		Content: Content{
			BaseURL:        dcs.DefaultBaseURL,
			RawBaseURL:     dcs.DefaultRawBaseURL,
			UserAgent:      dcs.DefaultUserAgent,
			Transport:      defaultTransport,
			TimeoutSeconds: defaultTimeoutSeconds,
			Stage:          dcs.DefaultStage,
			ManifestParser: defaultManifestParser,
		},
		Retry: Retry{
			MaxAttempts:         defaultMaxAttempts,
			BaseDelayMS:         defaultBaseDelayMS,
			MaxDelayMS:          defaultMaxDelayMS,
			MaxRateLimitRetries: defaultMaxRateLimitRetries,
		},
		Cache: Cache{
			PackageTTLMinutes:  defaultPackageTTLMinutes,
			OnDemandTTLMinutes: defaultOnDemandTTLMinutes,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Server: Server{
			Port: defaultPort,
		},
	}
}
