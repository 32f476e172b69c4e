package models

import (
	"maps"
	"sort"
	"time"
)

// Optional snapshot sections. A section listed in Snapshot.Stale failed to
// refresh in the last cycle and carries its previous value.
const (
	SectionWeather       = "weather"
	SectionMobileDevices = "mobileDevices"
	SectionAirComfort    = "airComfort"
	SectionRunningTimes  = "runningTimes"
)

// Snapshot is one fully merged view of the polled home. A published snapshot
// is never mutated; use Clone to obtain a private copy.
type Snapshot struct {
	UpdatedAt     time.Time              `json:"updatedAt"`
	Weather       *Weather               `json:"weather,omitempty"`
	AirComfort    *AirComfort            `json:"airComfort,omitempty"`
	RunningTimes  *RunningTimes          `json:"runningTimes,omitempty"`
	Rooms         map[int]Room           `json:"rooms"`
	Devices       map[string]Device      `json:"devices"`
	MobileDevices map[int64]MobileDevice `json:"mobileDevices"`
	Home          Home                   `json:"home"`
	Stale         []string               `json:"stale,omitempty"`
	Quota         QuotaState             `json:"quota"`
}

// NewSnapshot returns an empty snapshot for home.
func NewSnapshot(home Home) *Snapshot {
	return &Snapshot{
		Home:          home,
		Rooms:         make(map[int]Room),
		Devices:       make(map[string]Device),
		MobileDevices: make(map[int64]MobileDevice),
	}
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	out := *s
	out.Rooms = maps.Clone(s.Rooms)
	out.Devices = maps.Clone(s.Devices)
	out.MobileDevices = maps.Clone(s.MobileDevices)
	out.Quota = s.Quota.Clone()
	out.Stale = append([]string(nil), s.Stale...)

	if s.Weather != nil {
		w := *s.Weather
		out.Weather = &w
	}
	if s.AirComfort != nil {
		ac := *s.AirComfort
		ac.Rooms = maps.Clone(s.AirComfort.Rooms)
		out.AirComfort = &ac
	}
	if s.RunningTimes != nil {
		rt := *s.RunningTimes
		rt.PerRoom = maps.Clone(s.RunningTimes.PerRoom)
		out.RunningTimes = &rt
	}
	return &out
}

// IsStale reports whether section kept its previous value in the last cycle.
func (s *Snapshot) IsStale(section string) bool {
	for _, name := range s.Stale {
		if name == section {
			return true
		}
	}
	return false
}

// SortedRooms returns the rooms ordered by name, then ID.
func (s *Snapshot) SortedRooms() []Room {
	rooms := make([]Room, 0, len(s.Rooms))
	for _, r := range s.Rooms {
		rooms = append(rooms, r)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name != rooms[j].Name {
			return rooms[i].Name < rooms[j].Name
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms
}

// SortedDevices returns the devices ordered by room name, then serial number.
func (s *Snapshot) SortedDevices() []Device {
	devices := make([]Device, 0, len(s.Devices))
	for _, d := range s.Devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].RoomName != devices[j].RoomName {
			return devices[i].RoomName < devices[j].RoomName
		}
		return devices[i].SerialNumber < devices[j].SerialNumber
	})
	return devices
}

// SortedMobileDevices returns the mobile devices ordered by name.
func (s *Snapshot) SortedMobileDevices() []MobileDevice {
	out := make([]MobileDevice, 0, len(s.MobileDevices))
	for _, m := range s.MobileDevices {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// LowBatteryDevices returns the serial numbers of devices reporting a low battery.
func (s *Snapshot) LowBatteryDevices() []string {
	var serials []string
	for serial, d := range s.Devices {
		if d.LowBattery() {
			serials = append(serials, serial)
		}
	}
	sort.Strings(serials)
	return serials
}
