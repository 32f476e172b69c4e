package config

import "time"

// Vendor endpoints. Each one can be overridden through the environment.
const (
	DefaultClientID  = "1bb50063-6b0c-4d11-bd99-387f4a91cc46"
	DefaultAuthURL   = "https://login.tado.com/oauth2/device_authorize"
	DefaultTokenURL  = "https://login.tado.com/oauth2/token"
	DefaultHopsURL   = "https://hops.tado.com"
	DefaultMyURL     = "https://my.tado.com/api/v2"
	DefaultMinderURL = "https://minder.tado.com/v1"
	DefaultEIQURL    = "https://energy-insights.tado.com/api"
)

// Defaults for the remaining settings.
const (
	defaultHTTPTimeout      = 30 * time.Second
	defaultLogLevel         = "info"
	defaultLogFormat        = "text"
	defaultMQTTTopicPrefix  = "tadox"
	defaultQuotaWarnPercent = 90
	appDirName              = "tadox"
)

// Scan interval bounds accepted in the options file.
const (
	MinScanInterval = 30 * time.Second
	MaxScanInterval = time.Hour
)
