package gateway

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
)

// Setpoint bounds outside the room range.
const (
	BoostTemperature     = models.MaxTemperature
	MaxBoilerTemperature = 80.0
	MaxTemperatureOffset = 9.9
)

// Account is the authenticated vendor user and the homes they can access.
type Account struct {
	Name  string        `json:"name"`
	Email string        `json:"email"`
	Homes []models.Home `json:"homes"`
}

// RoomsAndDevices is the decoded roomsAndDevices payload.
type RoomsAndDevices struct {
	Devices map[string]models.Device
	Rooms   map[int]string
}

// GetMe returns the authenticated account. It does not require a home.
func (c *Client) GetMe(ctx context.Context) (*Account, error) {
	var payload mePayload
	err := c.do(ctx, request{op: "get_me", method: http.MethodGet, base: c.cfg.MyURL, path: "/me"}, &payload)
	if err != nil {
		return nil, err
	}

	account := &Account{Name: payload.Name, Email: payload.Email}
	for _, h := range payload.Homes {
		account.Homes = append(account.Homes, models.Home{ID: h.ID, Name: h.Name})
	}
	return account, nil
}

// GetHomeState returns the bound home with its presence state.
func (c *Client) GetHomeState(ctx context.Context) (models.Home, error) {
	var payload homeStatePayload
	err := c.do(ctx, c.myRequest("get_home_state", http.MethodGet, "/state"), &payload)
	if err != nil {
		return models.Home{}, err
	}

	home := c.Home()
	home.Presence = payload.Presence
	home.PresenceLocked = payload.PresenceLocked
	return home, nil
}

// GetRooms returns the rooms keyed by room ID.
func (c *Client) GetRooms(ctx context.Context) (map[int]models.Room, error) {
	var payload []roomPayload
	if err := c.do(ctx, c.hopsRequest("get_rooms", http.MethodGet, "/rooms"), &payload); err != nil {
		return nil, err
	}

	rooms := make(map[int]models.Room, len(payload))
	for _, p := range payload {
		rooms[p.ID] = p.toRoom()
	}
	return rooms, nil
}

// GetRoomsAndDevices returns every device keyed by serial number, with its
// room association, plus the room names.
func (c *Client) GetRoomsAndDevices(ctx context.Context) (*RoomsAndDevices, error) {
	var payload roomsAndDevicesPayload
	if err := c.do(ctx, c.hopsRequest("get_rooms_and_devices", http.MethodGet, "/roomsAndDevices"), &payload); err != nil {
		return nil, err
	}

	out := &RoomsAndDevices{
		Devices: make(map[string]models.Device),
		Rooms:   make(map[int]string, len(payload.Rooms)),
	}
	for _, r := range payload.Rooms {
		out.Rooms[r.RoomID] = r.RoomName
		for _, p := range r.Devices {
			d := p.toDevice()
			roomID := r.RoomID
			d.RoomID = &roomID
			d.RoomName = r.RoomName
			out.Devices[d.SerialNumber] = d
		}
	}
	for _, p := range payload.OtherDevices {
		d := p.toDevice()
		out.Devices[d.SerialNumber] = d
	}
	return out, nil
}

// GetWeather returns the outdoor conditions for the home.
func (c *Client) GetWeather(ctx context.Context) (*models.Weather, error) {
	var payload weatherPayload
	if err := c.do(ctx, c.myRequest("get_weather", http.MethodGet, "/weather"), &payload); err != nil {
		return nil, err
	}
	return payload.toWeather(), nil
}

// GetMobileDevices returns the geofencing trackers keyed by ID.
func (c *Client) GetMobileDevices(ctx context.Context) (map[int64]models.MobileDevice, error) {
	var payload []mobileDevicePayload
	if err := c.do(ctx, c.myRequest("get_mobile_devices", http.MethodGet, "/mobileDevices"), &payload); err != nil {
		return nil, err
	}

	out := make(map[int64]models.MobileDevice, len(payload))
	for _, p := range payload {
		out[p.ID] = p.toMobileDevice()
	}
	return out, nil
}

// GetAirComfort returns the air comfort report.
func (c *Client) GetAirComfort(ctx context.Context) (*models.AirComfort, error) {
	var payload airComfortPayload
	if err := c.do(ctx, c.myRequest("get_air_comfort", http.MethodGet, "/airComfort"), &payload); err != nil {
		return nil, err
	}
	return payload.toAirComfort(), nil
}

// GetRunningTimes returns heating running times since from.
func (c *Client) GetRunningTimes(ctx context.Context, from time.Time) (*models.RunningTimes, error) {
	req := request{
		op:         "get_running_times",
		method:     http.MethodGet,
		base:       c.cfg.MinderURL,
		path:       "/runningTimes",
		query:      url.Values{"from": []string{from.Format(time.DateOnly)}},
		homeScoped: true,
	}

	var payload runningTimesPayload
	if err := c.do(ctx, req, &payload); err != nil {
		return nil, err
	}
	return payload.toRunningTimes(from), nil
}

// SetRoomManualControl overrides a room's schedule. temperature is required
// when power is ON and ignored when it is OFF.
func (c *Client) SetRoomManualControl(ctx context.Context, roomID int, power string, temperature *float64, term models.Termination) error {
	if roomID <= 0 {
		return configErrorf("invalid room id %d", roomID)
	}

	body := manualControlBody{Termination: terminationBody(term)}
	switch strings.ToUpper(power) {
	case models.PowerOn:
		if temperature == nil {
			return configErrorf("temperature is required when power is ON")
		}
		if err := validateRoomTemperature(*temperature); err != nil {
			return err
		}
		body.Setting = manualSetting{Power: models.PowerOn, Temperature: &temperatureValue{Value: *temperature}}
	case models.PowerOff:
		body.Setting = manualSetting{Power: models.PowerOff}
	default:
		return configErrorf("invalid power %q", power)
	}

	req := c.hopsRequest("set_manual_control", http.MethodPost, roomControlPath(roomID))
	req.body = body
	return c.do(ctx, req, nil)
}

// ResumeSchedule cancels the manual override of a room.
func (c *Client) ResumeSchedule(ctx context.Context, roomID int) error {
	if roomID <= 0 {
		return configErrorf("invalid room id %d", roomID)
	}
	return c.do(ctx, c.hopsRequest("resume_schedule", http.MethodDelete, roomControlPath(roomID)), nil)
}

// BoostRoom heats one room at the maximum setpoint for the default timer duration.
func (c *Client) BoostRoom(ctx context.Context, roomID int) error {
	temp := BoostTemperature
	return c.SetRoomManualControl(ctx, roomID, models.PowerOn, &temp, models.TimerTermination(models.DefaultTimerDuration))
}

// QuickAction runs a home-wide command.
func (c *Client) QuickAction(ctx context.Context, action models.QuickAction) error {
	switch action {
	case models.QuickActionBoost, models.QuickActionAllOff, models.QuickActionResume:
	default:
		return configErrorf("unknown quick action %q", action)
	}
	return c.do(ctx, c.hopsRequest("quick_action_"+string(action), http.MethodPost, "/quickActions/"+string(action)), nil)
}

// BoostAll boosts every room in the home.
func (c *Client) BoostAll(ctx context.Context) error {
	return c.QuickAction(ctx, models.QuickActionBoost)
}

// AllOff turns heating off in every room.
func (c *Client) AllOff(ctx context.Context) error {
	return c.QuickAction(ctx, models.QuickActionAllOff)
}

// ResumeAllSchedules cancels every manual override in the home.
func (c *Client) ResumeAllSchedules(ctx context.Context) error {
	return c.QuickAction(ctx, models.QuickActionResume)
}

// SetPresence locks the home presence, or releases the lock for AUTO.
func (c *Client) SetPresence(ctx context.Context, mode models.PresenceMode) error {
	switch mode {
	case models.PresenceHome, models.PresenceAway:
		req := c.myRequest("set_presence", http.MethodPut, "/presenceLock")
		req.body = map[string]string{"homePresence": string(mode)}
		return c.do(ctx, req, nil)
	case models.PresenceAuto:
		return c.do(ctx, c.myRequest("set_presence", http.MethodDelete, "/presenceLock"), nil)
	default:
		return configErrorf("unknown presence mode %q", mode)
	}
}

// SetBoilerTemperature sets the flow temperature of a boiler device.
func (c *Client) SetBoilerTemperature(ctx context.Context, serial string, celsius float64) error {
	if serial == "" {
		return configErrorf("device serial number is required")
	}
	if math.IsNaN(celsius) || celsius < models.MinTemperature || celsius > MaxBoilerTemperature {
		return configErrorf("boiler temperature %.1f out of range %.0f-%.0f", celsius, models.MinTemperature, MaxBoilerTemperature)
	}

	req := c.hopsRequest("set_boiler_temperature", http.MethodPut, "/devices/"+url.PathEscape(serial)+"/state")
	req.body = map[string]any{
		"temperature": map[string]float64{"celsius": celsius},
		"power":       models.PowerOn,
	}
	return c.do(ctx, req, nil)
}

// SetTemperatureOffset calibrates the temperature reading of a device.
func (c *Client) SetTemperatureOffset(ctx context.Context, serial string, offset float64) error {
	if serial == "" {
		return configErrorf("device serial number is required")
	}
	if math.IsNaN(offset) || math.Abs(offset) > MaxTemperatureOffset {
		return configErrorf("temperature offset %.1f out of range ±%.1f", offset, MaxTemperatureOffset)
	}

	req := c.hopsRequest("set_temperature_offset", http.MethodPatch, "/roomsAndDevices/devices/"+url.PathEscape(serial))
	req.body = map[string]float64{"temperatureOffset": offset}
	return c.do(ctx, req, nil)
}

// AddMeterReading submits a gas or energy meter reading for date.
func (c *Client) AddMeterReading(ctx context.Context, date time.Time, reading int) error {
	if reading < 0 {
		return configErrorf("meter reading must not be negative")
	}
	if date.IsZero() {
		return configErrorf("meter reading date is required")
	}

	req := c.eiqRequest("add_meter_reading", http.MethodPost, "/meterReadings")
	req.body = map[string]any{"date": date.Format(time.DateOnly), "reading": reading}
	return c.do(ctx, req, nil)
}

// SetTariff stores an Energy IQ tariff.
func (c *Client) SetTariff(ctx context.Context, tariff models.Tariff) error {
	if _, err := time.Parse(time.DateOnly, tariff.StartDate); err != nil {
		return configErrorf("invalid tariff start date %q", tariff.StartDate)
	}
	if tariff.EndDate != "" {
		if _, err := time.Parse(time.DateOnly, tariff.EndDate); err != nil {
			return configErrorf("invalid tariff end date %q", tariff.EndDate)
		}
	}
	if tariff.TariffInCents < 0 {
		return configErrorf("tariff must not be negative")
	}
	if tariff.Unit == "" {
		tariff.Unit = "m3"
	}

	req := c.eiqRequest("set_tariff", http.MethodPut, "/tariffs")
	req.body = tariff
	return c.do(ctx, req, nil)
}

func (c *Client) myRequest(op, method, path string) request {
	return request{op: op, method: method, base: c.cfg.MyURL, path: path, homeScoped: true}
}

func (c *Client) hopsRequest(op, method, path string) request {
	return request{op: op, method: method, base: c.cfg.HopsURL, path: path, homeScoped: true}
}

func (c *Client) eiqRequest(op, method, path string) request {
	return request{op: op, method: method, base: c.cfg.EIQURL, path: path, homeScoped: true}
}

func roomControlPath(roomID int) string {
	return "/rooms/" + strconv.Itoa(roomID) + "/manualControl"
}

func validateRoomTemperature(t float64) error {
	if math.IsNaN(t) || t < models.MinTemperature || t > models.MaxTemperature {
		return configErrorf("temperature %.1f out of range %.0f-%.0f", t, models.MinTemperature, models.MaxTemperature)
	}
	steps := t / models.TemperatureStep
	if math.Abs(steps-math.Round(steps)) > 1e-9 {
		return configErrorf("temperature %.2f is not a multiple of %.1f", t, models.TemperatureStep)
	}
	return nil
}
