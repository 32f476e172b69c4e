package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
)

const roomsFixture = `[
  {
    "id": 1,
    "name": "Living Room",
    "sensorDataPoints": {"insideTemperature": {"value": 20.6}, "humidity": {"percentage": 48}},
    "setting": {"power": "ON", "temperature": {"value": 21.5}},
    "manualControlTermination": {"type": "TIMER", "remainingTimeInSeconds": 900},
    "boostMode": null,
    "heatingPower": {"percentage": 35},
    "connection": {"state": "CONNECTED"},
    "openWindow": {"activated": true},
    "nextScheduleChange": {"start": "2026-02-01T17:00:00Z", "setting": {"power": "ON", "temperature": {"value": 19}}}
  },
  {
    "id": 2,
    "name": "Bathroom",
    "sensorDataPoints": {"insideTemperature": {"value": 22.1}},
    "setting": {"power": "OFF", "temperature": null},
    "manualControlTermination": null,
    "boostMode": {"type": "TIMER"},
    "heatingPower": {"percentage": 0},
    "connection": {"state": "DISCONNECTED"},
    "openWindow": null
  }
]`

const roomsAndDevicesFixture = `{
  "rooms": [
    {"roomId": 1, "roomName": "Living Room", "devices": [
      {"serialNumber": "VA0001", "type": "VA04", "firmwareVersion": "245.1", "connection": {"state": "CONNECTED"},
       "batteryState": "LOW", "temperatureAsMeasured": 20.4, "temperatureOffset": -0.5, "childLockEnabled": true}
    ]}
  ],
  "otherDevices": [
    {"serialNumber": "IB0001", "type": "IB02", "firmwareVersion": "1.0", "connection": {"state": "CONNECTED"}}
  ]
}`

func TestGetRoomsParsesPayload(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hops/homes/42/rooms", r.URL.Path)
		_, _ = io.WriteString(w, roomsFixture)
	})

	rooms, err := env.client.GetRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	living := rooms[1]
	assert.Equal(t, "Living Room", living.Name)
	require.NotNil(t, living.CurrentTemperature)
	assert.InDelta(t, 20.6, *living.CurrentTemperature, 0.001)
	assert.InDelta(t, 48, *living.Humidity, 0.001)
	assert.InDelta(t, 21.5, *living.TargetTemperature, 0.001)
	assert.True(t, living.ManualControlActive)
	assert.Equal(t, "TIMER", living.ManualControlType)
	assert.Equal(t, 900, *living.ManualControlRemainingSeconds)
	assert.True(t, living.OpenWindow)
	assert.False(t, living.Boost)
	assert.Equal(t, 35, living.HeatingPowerPercent)
	assert.True(t, living.IsHeating())
	require.NotNil(t, living.NextScheduleChange)
	assert.Equal(t, time.Date(2026, 2, 1, 17, 0, 0, 0, time.UTC), living.NextScheduleChange.UTC())
	assert.InDelta(t, 19, *living.NextScheduleTemperature, 0.001)

	bath := rooms[2]
	assert.Equal(t, models.PowerOff, bath.Power)
	assert.Nil(t, bath.TargetTemperature)
	assert.Nil(t, bath.Humidity)
	assert.False(t, bath.ManualControlActive)
	assert.True(t, bath.Boost)
	assert.False(t, bath.OpenWindow)
	assert.Equal(t, models.ConnectionOffline, bath.ConnectionState)
}

func TestGetRoomsAndDevicesParsesPayload(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hops/homes/42/roomsAndDevices", r.URL.Path)
		_, _ = io.WriteString(w, roomsAndDevicesFixture)
	})

	rd, err := env.client.GetRoomsAndDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, rd.Devices, 2)
	assert.Equal(t, "Living Room", rd.Rooms[1])

	valve := rd.Devices["VA0001"]
	require.NotNil(t, valve.RoomID)
	assert.Equal(t, 1, *valve.RoomID)
	assert.Equal(t, "Living Room", valve.RoomName)
	assert.True(t, valve.LowBattery())
	assert.True(t, valve.ChildLock)
	assert.InDelta(t, -0.5, *valve.TemperatureOffset, 0.001)
	assert.InDelta(t, 20.4, *valve.TemperatureMeasured, 0.001)

	bridge := rd.Devices["IB0001"]
	assert.Nil(t, bridge.RoomID)
	assert.True(t, bridge.Connected())
}

func TestGetOptionalReads(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/my/homes/42/weather":
			_, _ = io.WriteString(w, `{"outsideTemperature":{"celsius":4.5},"solarIntensity":{"percentage":12},"weatherState":{"value":"CLOUDY"}}`)
		case "/my/homes/42/mobileDevices":
			_, _ = io.WriteString(w, `[
				{"id":1,"name":"Ada's phone","settings":{"geoTrackingEnabled":true},"location":{"atHome":true,"stale":false},
				 "deviceMetadata":{"platform":"iOS","osVersion":"18.1","model":"iPhone","locale":"en"}},
				{"id":2,"name":"Tablet","settings":{"geoTrackingEnabled":false},"location":null}
			]`)
		case "/my/homes/42/airComfort":
			_, _ = io.WriteString(w, `{"freshness":{"value":"FAIR","lastOpenWindow":"2026-02-01T08:00:00Z"},
				"comfort":[{"roomId":1,"temperatureLevel":"COMFY","humidityLevel":"HUMID"}]}`)
		case "/minder/homes/42/runningTimes":
			assert.Equal(t, "2026-01-25", r.URL.Query().Get("from"))
			_, _ = io.WriteString(w, `{"runningTimes":[
				{"zones":[{"id":1,"runningTimeInSeconds":600},{"id":2,"runningTimeInSeconds":60}]},
				{"zones":[{"id":1,"runningTimeInSeconds":400}]}],
				"summary":{"startTime":"2026-01-25 00:00:00","endTime":"2026-02-01 00:00:00","totalRunningTimeInSeconds":1060,"meanInSecondsPerDay":151}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	weather, err := env.client.GetWeather(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, *weather.OutsideTemperature, 0.001)
	assert.Equal(t, "CLOUDY", weather.State)

	mobiles, err := env.client.GetMobileDevices(ctx)
	require.NoError(t, err)
	require.Len(t, mobiles, 2)
	assert.True(t, mobiles[1].AtHome)
	assert.Equal(t, "HOME", mobiles[1].Location)
	assert.Equal(t, "iOS", mobiles[1].Metadata.Platform)
	assert.Empty(t, mobiles[2].Location)

	comfort, err := env.client.GetAirComfort(ctx)
	require.NoError(t, err)
	assert.Equal(t, "FAIR", comfort.Freshness)
	assert.Equal(t, "HUMID", comfort.Rooms[1].HumidityLevel)

	from := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)
	rt, err := env.client.GetRunningTimes(ctx, from)
	require.NoError(t, err)
	assert.Equal(t, 1060, rt.TotalSeconds)
	assert.Equal(t, 1000, rt.PerRoom[1])
	assert.Equal(t, 60, rt.PerRoom[2])
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), rt.To)
}

type capturedRequest struct {
	body   map[string]any
	method string
	path   string
}

func newCaptureEnv(t *testing.T) (*testEnv, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		c := capturedRequest{method: r.Method, path: r.URL.Path}
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			assert.NoError(t, json.Unmarshal(data, &c.body))
		}
		captured = append(captured, c)
		w.WriteHeader(http.StatusNoContent)
	})
	return env, &captured
}

func TestSetRoomManualControlBodies(t *testing.T) {
	env, captured := newCaptureEnv(t)
	ctx := context.Background()
	temp := 21.5

	require.NoError(t, env.client.SetRoomManualControl(ctx, 3, models.PowerOn, &temp, models.TimerTermination(0)))
	require.NoError(t, env.client.SetRoomManualControl(ctx, 3, models.PowerOff, nil, models.ManualTermination()))
	require.NoError(t, env.client.SetRoomManualControl(ctx, 3, models.PowerOn, &temp, models.NextTimeBlockTermination()))
	require.NoError(t, env.client.ResumeSchedule(ctx, 3))

	reqs := *captured
	require.Len(t, reqs, 4)

	assert.Equal(t, http.MethodPost, reqs[0].method)
	assert.Equal(t, "/hops/homes/42/rooms/3/manualControl", reqs[0].path)
	setting := reqs[0].body["setting"].(map[string]any)
	assert.Equal(t, "ON", setting["power"])
	assert.Equal(t, 21.5, setting["temperature"].(map[string]any)["value"])
	term := reqs[0].body["termination"].(map[string]any)
	assert.Equal(t, "TIMER", term["type"])
	assert.Equal(t, float64(1800), term["durationInSeconds"])

	setting = reqs[1].body["setting"].(map[string]any)
	assert.Equal(t, "OFF", setting["power"])
	assert.NotContains(t, setting, "temperature")
	term = reqs[1].body["termination"].(map[string]any)
	assert.Equal(t, "MANUAL", term["type"])
	assert.NotContains(t, term, "durationInSeconds")

	assert.Equal(t, "NEXT_TIME_BLOCK", reqs[2].body["termination"].(map[string]any)["type"])

	assert.Equal(t, http.MethodDelete, reqs[3].method)
	assert.Equal(t, "/hops/homes/42/rooms/3/manualControl", reqs[3].path)
}

func TestTerminationBody(t *testing.T) {
	tests := []struct {
		name     string
		term     models.Termination
		wantType string
		wantSecs *int
	}{
		{"zero value is manual", models.Termination{}, "MANUAL", nil},
		{"manual", models.ManualTermination(), "MANUAL", nil},
		{"timer", models.TimerTermination(10 * time.Minute), "TIMER", intPtr(600)},
		{"timer without duration", models.Termination{Type: models.TerminationTimer}, "TIMER", intPtr(1800)},
		{"next block", models.NextTimeBlockTermination(), "NEXT_TIME_BLOCK", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := terminationBody(tt.term)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantSecs, got.DurationInSeconds)
		})
	}
}

func intPtr(v int) *int { return &v }

func TestCommandEndpoints(t *testing.T) {
	env, captured := newCaptureEnv(t)
	ctx := context.Background()

	require.NoError(t, env.client.BoostRoom(ctx, 5))
	require.NoError(t, env.client.BoostAll(ctx))
	require.NoError(t, env.client.AllOff(ctx))
	require.NoError(t, env.client.ResumeAllSchedules(ctx))
	require.NoError(t, env.client.SetPresence(ctx, models.PresenceAway))
	require.NoError(t, env.client.SetPresence(ctx, models.PresenceAuto))
	require.NoError(t, env.client.SetBoilerTemperature(ctx, "CK0001", 55))
	require.NoError(t, env.client.SetTemperatureOffset(ctx, "VA0001", -1.5))
	require.NoError(t, env.client.AddMeterReading(ctx, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), 12345))
	require.NoError(t, env.client.SetTariff(ctx, models.Tariff{StartDate: "2026-01-01", TariffInCents: 9.5}))

	want := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/hops/homes/42/rooms/5/manualControl"},
		{http.MethodPost, "/hops/homes/42/quickActions/boost"},
		{http.MethodPost, "/hops/homes/42/quickActions/allOff"},
		{http.MethodPost, "/hops/homes/42/quickActions/resumeSchedule"},
		{http.MethodPut, "/my/homes/42/presenceLock"},
		{http.MethodDelete, "/my/homes/42/presenceLock"},
		{http.MethodPut, "/hops/homes/42/devices/CK0001/state"},
		{http.MethodPatch, "/hops/homes/42/roomsAndDevices/devices/VA0001"},
		{http.MethodPost, "/eiq/homes/42/meterReadings"},
		{http.MethodPut, "/eiq/homes/42/tariffs"},
	}

	reqs := *captured
	require.Len(t, reqs, len(want))
	for i, w := range want {
		assert.Equal(t, w.method, reqs[i].method, "request %d", i)
		assert.Equal(t, w.path, reqs[i].path, "request %d", i)
	}

	boost := reqs[0].body["setting"].(map[string]any)
	assert.Equal(t, BoostTemperature, boost["temperature"].(map[string]any)["value"])
	assert.Equal(t, "AWAY", reqs[4].body["homePresence"])
	assert.Equal(t, 55.0, reqs[6].body["temperature"].(map[string]any)["celsius"])
	assert.Equal(t, -1.5, reqs[7].body["temperatureOffset"])
	assert.Equal(t, "2026-02-01", reqs[8].body["date"])
	assert.Equal(t, float64(12345), reqs[8].body["reading"])
	assert.Equal(t, "m3", reqs[9].body["unit"])

	assert.Equal(t, len(want), env.client.tracker.CallsToday())
}

func TestCommandValidation(t *testing.T) {
	env, captured := newCaptureEnv(t)
	ctx := context.Background()
	tooHot := 30.0
	offStep := 21.3

	tests := []struct {
		name string
		call func() error
	}{
		{"TemperatureTooHigh", func() error {
			return env.client.SetRoomManualControl(ctx, 1, models.PowerOn, &tooHot, models.ManualTermination())
		}},
		{"TemperatureOffStep", func() error {
			return env.client.SetRoomManualControl(ctx, 1, models.PowerOn, &offStep, models.ManualTermination())
		}},
		{"MissingTemperature", func() error {
			return env.client.SetRoomManualControl(ctx, 1, models.PowerOn, nil, models.ManualTermination())
		}},
		{"BadPower", func() error {
			return env.client.SetRoomManualControl(ctx, 1, "AUTO", nil, models.ManualTermination())
		}},
		{"BadRoom", func() error { return env.client.ResumeSchedule(ctx, 0) }},
		{"BadQuickAction", func() error { return env.client.QuickAction(ctx, "party") }},
		{"BadPresence", func() error { return env.client.SetPresence(ctx, "VACATION") }},
		{"BoilerNoSerial", func() error { return env.client.SetBoilerTemperature(ctx, "", 50) }},
		{"BoilerTooHot", func() error { return env.client.SetBoilerTemperature(ctx, "CK1", 95) }},
		{"OffsetTooLarge", func() error { return env.client.SetTemperatureOffset(ctx, "VA1", 12) }},
		{"NegativeReading", func() error { return env.client.AddMeterReading(ctx, time.Now(), -1) }},
		{"BadTariffDate", func() error { return env.client.SetTariff(ctx, models.Tariff{StartDate: "01/01/2026"}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfgErr *ConfigurationError
			require.ErrorAs(t, tt.call(), &cfgErr)
		})
	}

	assert.Empty(t, *captured)
	assert.Zero(t, env.client.tracker.CallsToday(), "validation failures must not cost quota")
}
