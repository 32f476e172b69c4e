// Package mqttpub mirrors each snapshot onto retained MQTT topics.
package mqttpub

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/j-veylop/tadox-dashboard-tui/internal/logger"
	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/quota"
)

const (
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250
	qos               = 0
)

// Config holds the broker connection settings.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// Message is one retained topic update.
type Message struct {
	Topic   string
	Payload []byte
}

// Publisher writes snapshot sections to a broker.
type Publisher struct {
	client mqtt.Client
	prefix string
	homeID atomic.Int64
}

// New connects to the broker.
func New(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is not configured")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "tadox-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	logger.Info("connected to mqtt broker", "broker", cfg.Broker, "client_id", clientID)
	return NewWithClient(client, cfg.TopicPrefix), nil
}

// NewWithClient wraps an already connected client.
func NewWithClient(client mqtt.Client, prefix string) *Publisher {
	return &Publisher{client: client, prefix: strings.Trim(prefix, "/")}
}

// Consume publishes every snapshot and quota update received on events until
// the channel is closed.
func (p *Publisher) Consume(events <-chan services.ServiceEvent) {
	for ev := range events {
		switch e := ev.(type) {
		case services.SnapshotUpdatedEvent:
			p.PublishSnapshot(e.Snapshot)
		case services.QuotaUpdatedEvent:
			p.PublishQuota(e.Status)
		}
	}
}

// PublishSnapshot publishes the home, rooms, devices and mobile devices.
func (p *Publisher) PublishSnapshot(snap *models.Snapshot) {
	if snap == nil {
		return
	}
	p.homeID.Store(snap.Home.ID)
	msgs, err := SnapshotMessages(p.prefix, snap)
	if err != nil {
		logger.Warn("failed to encode snapshot for mqtt", "error", err)
		return
	}
	p.publish(msgs)
}

// PublishQuota publishes the quota status under the home of the last
// snapshot. It is dropped before the first snapshot.
func (p *Publisher) PublishQuota(status quota.Status) {
	homeID := p.homeID.Load()
	if homeID == 0 {
		return
	}
	msg, err := QuotaMessage(p.prefix, homeID, status)
	if err != nil {
		logger.Warn("failed to encode quota for mqtt", "error", err)
		return
	}
	p.publish([]Message{msg})
}

func (p *Publisher) publish(msgs []Message) {
	for _, m := range msgs {
		token := p.client.Publish(m.Topic, qos, true, m.Payload)
		if !token.WaitTimeout(publishTimeout) {
			logger.Warn("mqtt publish timed out", "topic", m.Topic)
			continue
		}
		if err := token.Error(); err != nil {
			logger.Warn("mqtt publish failed", "topic", m.Topic, "error", err)
		}
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
}

type homePayload struct {
	UpdatedAt    time.Time            `json:"updatedAt"`
	Weather      *models.Weather      `json:"weather,omitempty"`
	AirComfort   *models.AirComfort   `json:"airComfort,omitempty"`
	RunningTimes *models.RunningTimes `json:"runningTimes,omitempty"`
	Stale        []string             `json:"stale,omitempty"`
	models.Home
}

// SnapshotMessages builds the retained messages for snap.
func SnapshotMessages(prefix string, snap *models.Snapshot) ([]Message, error) {
	if snap == nil {
		return nil, nil
	}
	base := homeTopic(prefix, snap.Home.ID)

	var msgs []Message
	add := func(topic string, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", topic, err)
		}
		msgs = append(msgs, Message{Topic: topic, Payload: payload})
		return nil
	}

	if err := add(base+"/home", homePayload{
		Home:         snap.Home,
		UpdatedAt:    snap.UpdatedAt,
		Weather:      snap.Weather,
		AirComfort:   snap.AirComfort,
		RunningTimes: snap.RunningTimes,
		Stale:        snap.Stale,
	}); err != nil {
		return nil, err
	}

	for _, room := range snap.SortedRooms() {
		if err := add(base+"/rooms/"+strconv.Itoa(room.ID), room); err != nil {
			return nil, err
		}
	}
	for _, dev := range snap.SortedDevices() {
		if err := add(base+"/devices/"+topicSegment(dev.SerialNumber), dev); err != nil {
			return nil, err
		}
	}
	for _, md := range snap.SortedMobileDevices() {
		if err := add(base+"/mobile/"+strconv.FormatInt(md.ID, 10), md); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// QuotaMessage builds the quota status message for homeID.
func QuotaMessage(prefix string, homeID int64, status quota.Status) (Message, error) {
	payload, err := json.Marshal(status)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal quota: %w", err)
	}
	return Message{Topic: homeTopic(prefix, homeID) + "/quota", Payload: payload}, nil
}

func homeTopic(prefix string, homeID int64) string {
	return strings.Trim(prefix, "/") + "/" + strconv.FormatInt(homeID, 10)
}

// topicSegment strips MQTT wildcard and separator characters.
func topicSegment(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
