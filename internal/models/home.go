package models

import "time"

// Device types reported by the Tado X hardware line.
const (
	DeviceTypeValve      = "VA04"
	DeviceTypeThermostat = "TR04"
	DeviceTypeBridge     = "IB02"
	DeviceTypeSensor     = "SU04"
	DeviceTypeOptimizer  = "CK04"
)

// Battery and connection states.
const (
	BatteryNormal       = "NORMAL"
	BatteryLow          = "LOW"
	ConnectionConnected = "CONNECTED"
	ConnectionOffline   = "DISCONNECTED"
)

// Room power settings.
const (
	PowerOn  = "ON"
	PowerOff = "OFF"
)

// Temperature bounds accepted by the vendor for room and boiler setpoints.
const (
	MinTemperature  = 5.0
	MaxTemperature  = 25.0
	TemperatureStep = 0.5
)

// Home is the vendor home the session is bound to.
type Home struct {
	Name           string `json:"name"`
	Presence       string `json:"presence,omitempty"`
	ID             int64  `json:"id"`
	PresenceLocked bool   `json:"presenceLocked"`
}

// Room is one heating zone as returned by the rooms endpoint.
type Room struct {
	CurrentTemperature            *float64   `json:"currentTemperature,omitempty"`
	Humidity                      *float64   `json:"humidity,omitempty"`
	TargetTemperature             *float64   `json:"targetTemperature,omitempty"`
	ManualControlRemainingSeconds *int       `json:"manualControlRemainingSeconds,omitempty"`
	NextScheduleChange            *time.Time `json:"nextScheduleChange,omitempty"`
	NextScheduleTemperature       *float64   `json:"nextScheduleTemperature,omitempty"`
	Name                          string     `json:"name"`
	Power                         string     `json:"power"`
	ManualControlType             string     `json:"manualControlType,omitempty"`
	ConnectionState               string     `json:"connectionState,omitempty"`
	ID                            int        `json:"id"`
	HeatingPowerPercent           int        `json:"heatingPowerPercent"`
	ManualControlActive           bool       `json:"manualControlActive"`
	OpenWindow                    bool       `json:"openWindow"`
	Boost                         bool       `json:"boost"`
}

// IsHeating reports whether the room currently requests heat.
func (r Room) IsHeating() bool {
	return r.Power == PowerOn && r.HeatingPowerPercent > 0
}

// Device is one piece of hardware, keyed by serial number.
type Device struct {
	RoomID                 *int     `json:"roomId,omitempty"`
	TemperatureMeasured    *float64 `json:"temperatureMeasured,omitempty"`
	TargetTemperature      *float64 `json:"targetTemperature,omitempty"`
	TemperatureOffset      *float64 `json:"temperatureOffset,omitempty"`
	SerialNumber           string   `json:"serialNumber"`
	Type                   string   `json:"type"`
	FirmwareVersion        string   `json:"firmwareVersion,omitempty"`
	BatteryState           string   `json:"batteryState,omitempty"`
	ConnectionState        string   `json:"connectionState,omitempty"`
	RoomName               string   `json:"roomName,omitempty"`
	ChildLock              bool     `json:"childLock"`
	DomesticHotWaterActive bool     `json:"domesticHotWaterActive"`
}

// LowBattery reports whether the device reports a low battery.
func (d Device) LowBattery() bool {
	return d.BatteryState == BatteryLow
}

// Connected reports whether the device is connected to the bridge.
func (d Device) Connected() bool {
	return d.ConnectionState == ConnectionConnected
}

// MobileDeviceMetadata describes the phone running the vendor app.
type MobileDeviceMetadata struct {
	Platform  string `json:"platform,omitempty"`
	OSVersion string `json:"osVersion,omitempty"`
	Model     string `json:"model,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

// MobileDevice is a geofencing tracker registered for the home.
type MobileDevice struct {
	Metadata          MobileDeviceMetadata `json:"metadata"`
	Name              string               `json:"name"`
	Location          string               `json:"location,omitempty"`
	ID                int64                `json:"id"`
	GeofencingEnabled bool                 `json:"geofencingEnabled"`
	AtHome            bool                 `json:"atHome"`
}

// Weather is the outdoor conditions reported for the home.
type Weather struct {
	OutsideTemperature *float64 `json:"outsideTemperature,omitempty"`
	SolarIntensity     *float64 `json:"solarIntensity,omitempty"`
	State              string   `json:"state,omitempty"`
}

// RoomComfort is the per-room air comfort rating.
type RoomComfort struct {
	TemperatureLevel string `json:"temperatureLevel,omitempty"`
	HumidityLevel    string `json:"humidityLevel,omitempty"`
}

// AirComfort is the home-wide air comfort report.
type AirComfort struct {
	LastOpenWindow *time.Time          `json:"lastOpenWindow,omitempty"`
	Rooms          map[int]RoomComfort `json:"rooms"`
	Freshness      string              `json:"freshness,omitempty"`
}

// RunningTimes is the heating running time summary for a date range.
type RunningTimes struct {
	From              time.Time   `json:"from"`
	To                time.Time   `json:"to"`
	PerRoom           map[int]int `json:"perRoom,omitempty"`
	TotalSeconds      int         `json:"totalSeconds"`
	MeanSecondsPerDay int         `json:"meanSecondsPerDay"`
}
