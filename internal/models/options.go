package models

import "time"

// Options are the runtime settings a host may change while the poller runs.
// Feature toggles left unset follow HasAutoAssist.
type Options struct {
	EnableWeather       *bool  `json:"enableWeather,omitempty"`
	EnableMobileDevices *bool  `json:"enableMobileDevices,omitempty"`
	EnableAirComfort    *bool  `json:"enableAirComfort,omitempty"`
	EnableRunningTimes  *bool  `json:"enableRunningTimes,omitempty"`
	HomeName            string `json:"homeName,omitempty"`
	HomeID              int64  `json:"homeId,omitempty"`
	ScanIntervalSeconds int    `json:"scanIntervalSeconds,omitempty"`
	HasAutoAssist       bool   `json:"hasAutoAssist"`
}

// Features is the resolved set of optional reads.
type Features struct {
	Weather       bool `json:"weather"`
	MobileDevices bool `json:"mobileDevices"`
	AirComfort    bool `json:"airComfort"`
	RunningTimes  bool `json:"runningTimes"`
}

// Features resolves the feature toggles against the tier default.
func (o Options) Features() Features {
	def := o.HasAutoAssist
	pick := func(b *bool) bool {
		if b == nil {
			return def
		}
		return *b
	}
	return Features{
		Weather:       pick(o.EnableWeather),
		MobileDevices: pick(o.EnableMobileDevices),
		AirComfort:    pick(o.EnableAirComfort),
		RunningTimes:  pick(o.EnableRunningTimes),
	}
}

// ScanInterval returns the interval override, or zero when the tier preset applies.
func (o Options) ScanInterval() time.Duration {
	if o.ScanIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(o.ScanIntervalSeconds) * time.Second
}

// Home returns the home the options are bound to.
func (o Options) Home() Home {
	return Home{ID: o.HomeID, Name: o.HomeName}
}
