package gateway

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
)

// Raw vendor payloads. Only the fields the snapshot uses are decoded.

type valueField struct {
	Value *float64 `json:"value"`
}

type percentageField struct {
	Percentage *float64 `json:"percentage"`
}

type celsiusField struct {
	Celsius *float64 `json:"celsius"`
}

type connectionField struct {
	State string `json:"state"`
}

type roomSetting struct {
	Temperature *valueField `json:"temperature"`
	Power       string      `json:"power"`
}

type roomPayload struct {
	SensorDataPoints struct {
		InsideTemperature *valueField      `json:"insideTemperature"`
		Humidity          *percentageField `json:"humidity"`
	} `json:"sensorDataPoints"`
	ManualControlTermination *struct {
		RemainingTimeInSeconds *int   `json:"remainingTimeInSeconds"`
		Type                   string `json:"type"`
	} `json:"manualControlTermination"`
	HeatingPower *struct {
		Percentage int `json:"percentage"`
	} `json:"heatingPower"`
	NextScheduleChange *struct {
		Start   *time.Time  `json:"start"`
		Setting roomSetting `json:"setting"`
	} `json:"nextScheduleChange"`
	Setting    roomSetting     `json:"setting"`
	Connection connectionField `json:"connection"`
	Name       string          `json:"name"`
	BoostMode  json.RawMessage `json:"boostMode"`
	OpenWindow json.RawMessage `json:"openWindow"`
	ID         int             `json:"id"`
}

func (p roomPayload) toRoom() models.Room {
	room := models.Room{
		ID:              p.ID,
		Name:            p.Name,
		Power:           p.Setting.Power,
		ConnectionState: p.Connection.State,
		Boost:           present(p.BoostMode),
		OpenWindow:      present(p.OpenWindow),
	}
	if t := p.SensorDataPoints.InsideTemperature; t != nil {
		room.CurrentTemperature = t.Value
	}
	if h := p.SensorDataPoints.Humidity; h != nil {
		room.Humidity = h.Percentage
	}
	if t := p.Setting.Temperature; t != nil {
		room.TargetTemperature = t.Value
	}
	if hp := p.HeatingPower; hp != nil {
		room.HeatingPowerPercent = hp.Percentage
	}
	if mc := p.ManualControlTermination; mc != nil {
		room.ManualControlActive = true
		room.ManualControlType = mc.Type
		room.ManualControlRemainingSeconds = mc.RemainingTimeInSeconds
	}
	if next := p.NextScheduleChange; next != nil {
		room.NextScheduleChange = next.Start
		if next.Setting.Temperature != nil {
			room.NextScheduleTemperature = next.Setting.Temperature.Value
		}
	}
	return room
}

// present reports whether an optional object field is set.
func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null")) && !bytes.Equal(raw, []byte("false"))
}

type devicePayload struct {
	TemperatureAsMeasured  *float64        `json:"temperatureAsMeasured"`
	TemperatureOffset      *float64        `json:"temperatureOffset"`
	Connection             connectionField `json:"connection"`
	SerialNumber           string          `json:"serialNumber"`
	Type                   string          `json:"type"`
	FirmwareVersion        string          `json:"firmwareVersion"`
	BatteryState           string          `json:"batteryState"`
	ChildLockEnabled       bool            `json:"childLockEnabled"`
	DomesticHotWaterActive bool            `json:"domesticHotWaterActive"`
}

func (p devicePayload) toDevice() models.Device {
	return models.Device{
		SerialNumber:           p.SerialNumber,
		Type:                   p.Type,
		FirmwareVersion:        p.FirmwareVersion,
		BatteryState:           p.BatteryState,
		ConnectionState:        p.Connection.State,
		TemperatureMeasured:    p.TemperatureAsMeasured,
		TemperatureOffset:      p.TemperatureOffset,
		ChildLock:              p.ChildLockEnabled,
		DomesticHotWaterActive: p.DomesticHotWaterActive,
	}
}

type roomsAndDevicesPayload struct {
	Rooms []struct {
		RoomName string          `json:"roomName"`
		Devices  []devicePayload `json:"devices"`
		RoomID   int             `json:"roomId"`
	} `json:"rooms"`
	OtherDevices []devicePayload `json:"otherDevices"`
}

type homeStatePayload struct {
	Presence       string `json:"presence"`
	PresenceLocked bool   `json:"presenceLocked"`
}

type mePayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Homes []struct {
		Name string `json:"name"`
		ID   int64  `json:"id"`
	} `json:"homes"`
}

type weatherPayload struct {
	OutsideTemperature *celsiusField    `json:"outsideTemperature"`
	SolarIntensity     *percentageField `json:"solarIntensity"`
	WeatherState       *struct {
		Value string `json:"value"`
	} `json:"weatherState"`
}

func (p weatherPayload) toWeather() *models.Weather {
	w := &models.Weather{}
	if p.OutsideTemperature != nil {
		w.OutsideTemperature = p.OutsideTemperature.Celsius
	}
	if p.SolarIntensity != nil {
		w.SolarIntensity = p.SolarIntensity.Percentage
	}
	if p.WeatherState != nil {
		w.State = p.WeatherState.Value
	}
	return w
}

type mobileDevicePayload struct {
	Location *struct {
		AtHome bool `json:"atHome"`
		Stale  bool `json:"stale"`
	} `json:"location"`
	DeviceMetadata models.MobileDeviceMetadata `json:"deviceMetadata"`
	Name           string                      `json:"name"`
	Settings       struct {
		GeoTrackingEnabled bool `json:"geoTrackingEnabled"`
	} `json:"settings"`
	ID int64 `json:"id"`
}

func (p mobileDevicePayload) toMobileDevice() models.MobileDevice {
	m := models.MobileDevice{
		ID:                p.ID,
		Name:              p.Name,
		GeofencingEnabled: p.Settings.GeoTrackingEnabled,
		Metadata:          p.DeviceMetadata,
	}
	if loc := p.Location; loc != nil && !loc.Stale {
		m.AtHome = loc.AtHome
		m.Location = string(models.PresenceAway)
		if loc.AtHome {
			m.Location = string(models.PresenceHome)
		}
	}
	return m
}

type airComfortPayload struct {
	Freshness *struct {
		LastOpenWindow *time.Time `json:"lastOpenWindow"`
		Value          string     `json:"value"`
	} `json:"freshness"`
	Comfort []struct {
		TemperatureLevel string `json:"temperatureLevel"`
		HumidityLevel    string `json:"humidityLevel"`
		RoomID           int    `json:"roomId"`
	} `json:"comfort"`
}

func (p airComfortPayload) toAirComfort() *models.AirComfort {
	ac := &models.AirComfort{Rooms: make(map[int]models.RoomComfort, len(p.Comfort))}
	if p.Freshness != nil {
		ac.Freshness = p.Freshness.Value
		ac.LastOpenWindow = p.Freshness.LastOpenWindow
	}
	for _, c := range p.Comfort {
		ac.Rooms[c.RoomID] = models.RoomComfort{
			TemperatureLevel: c.TemperatureLevel,
			HumidityLevel:    c.HumidityLevel,
		}
	}
	return ac
}

type runningTimesPayload struct {
	RunningTimes []struct {
		Zones []struct {
			ID                   int `json:"id"`
			RunningTimeInSeconds int `json:"runningTimeInSeconds"`
		} `json:"zones"`
	} `json:"runningTimes"`
	Summary struct {
		StartTime                 string `json:"startTime"`
		EndTime                   string `json:"endTime"`
		TotalRunningTimeInSeconds int    `json:"totalRunningTimeInSeconds"`
		MeanInSecondsPerDay       int    `json:"meanInSecondsPerDay"`
	} `json:"summary"`
}

const minderTimeLayout = "2006-01-02 15:04:05"

func (p runningTimesPayload) toRunningTimes(from time.Time) *models.RunningTimes {
	rt := &models.RunningTimes{
		From:              from,
		TotalSeconds:      p.Summary.TotalRunningTimeInSeconds,
		MeanSecondsPerDay: p.Summary.MeanInSecondsPerDay,
		PerRoom:           make(map[int]int),
	}
	if t, err := time.Parse(minderTimeLayout, p.Summary.StartTime); err == nil {
		rt.From = t
	}
	if t, err := time.Parse(minderTimeLayout, p.Summary.EndTime); err == nil {
		rt.To = t
	}
	for _, day := range p.RunningTimes {
		for _, z := range day.Zones {
			rt.PerRoom[z.ID] += z.RunningTimeInSeconds
		}
	}
	return rt
}

type manualControlBody struct {
	Setting     manualSetting     `json:"setting"`
	Termination terminationFields `json:"termination"`
}

type manualSetting struct {
	Temperature *temperatureValue `json:"temperature,omitempty"`
	Power       string            `json:"power"`
}

type temperatureValue struct {
	Value float64 `json:"value"`
}

type terminationFields struct {
	DurationInSeconds *int   `json:"durationInSeconds,omitempty"`
	Type              string `json:"type"`
}

// terminationBody encodes t. A zero Termination is sent as MANUAL.
func terminationBody(t models.Termination) terminationFields {
	if t.Type == "" {
		t.Type = models.TerminationManual
	}
	out := terminationFields{Type: string(t.Type)}
	if t.Type == models.TerminationTimer {
		secs := int(t.Duration.Seconds())
		if secs <= 0 {
			secs = int(models.DefaultTimerDuration.Seconds())
		}
		out.DurationInSeconds = &secs
	}
	return out
}
