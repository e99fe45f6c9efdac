// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

// Package mqttpush mirrors controller status to an MQTT broker.
//
// Topics, under a configurable prefix:
//
//	<prefix>/outside_temp  outside temperature as sent to the display
//	<prefix>/mode          IDLE, HEATING or COOLING
//	<prefix>/state         JSON summary of each thermostat evaluation
package mqttpush

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/HWHardsoft/HVAC-car-control/pkg/hvac"
	"github.com/HWHardsoft/HVAC-car-control/pkg/logger"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "hvac"

// connectTimeout bounds the initial broker connection attempt.
const connectTimeout = 5 * time.Second

const (
	// maxPending bounds the publish tokens awaiting completion.
	maxPending = 64
	// publishTimeout bounds the wait on a single publish token.
	publishTimeout = 5 * time.Second
)

// Client is the part of mqtt.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Config holds broker connection settings.
type Config struct {
	Broker   string
	Username string
	Password string
	ClientID string
	Prefix   string
	QoS      byte
	Retain   bool
}

// Publisher is an hvac.Observer that publishes status pushes and
// thermostat decisions.
type Publisher struct {
	hvac.NopObserver

	client Client
	prefix string
	qos    byte
	retain bool

	pending   chan pendingPublish
	unwatched atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

type pendingPublish struct {
	topic string
	token mqtt.Token
}

// New creates a publisher on an existing client.
func New(client Client, prefix string, qos byte, retain bool) *Publisher {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	p := &Publisher{
		client:  client,
		prefix:  prefix,
		qos:     qos,
		retain:  retain,
		pending: make(chan pendingPublish, maxPending),
		done:    make(chan struct{}),
	}
	go p.watch()
	return p
}

// Connect dials the broker and returns a publisher. If the broker is not
// reachable yet the client keeps retrying in the background.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("no MQTT broker configured")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "hvacctl"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("connected to MQTT broker %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logger.Warn("MQTT broker %s not reachable yet, retrying in background", cfg.Broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	return New(client, cfg.Prefix, cfg.QoS, cfg.Retain), nil
}

// Topic returns the full topic name for a suffix.
func (p *Publisher) Topic(suffix string) string {
	return p.prefix + "/" + suffix
}

// StatusPushed publishes the outside temperature exactly as the display
// receives it.
func (p *Publisher) StatusPushed(r hvac.Reading) {
	p.publish("outside_temp", []byte(strconv.Itoa(r.Legacy())))
}

// statePayload is the JSON body of <prefix>/state.
type statePayload struct {
	Mode          string `json:"mode"`
	ACEnabled     bool   `json:"ac_enabled"`
	SetpointLeft  int    `json:"setpoint_left"`
	SetpointRight int    `json:"setpoint_right"`
	Outside       int    `json:"outside"`
	OutsideFault  bool   `json:"outside_fault,omitempty"`
	InsideLeft    int    `json:"inside_left"`
	InsideRight   int    `json:"inside_right"`
	FanLevel      int    `json:"fan_level"`
	Compressor    bool   `json:"compressor"`
	HeaterValve   bool   `json:"heater_valve"`
}

// ControlEvaluated publishes the thermostat decision and a state summary.
func (p *Publisher) ControlEvaluated(s hvac.Snapshot) {
	p.publish("mode", []byte(s.Mode.String()))

	body, err := json.Marshal(statePayload{
		Mode:          s.Mode.String(),
		ACEnabled:     s.ACEnabled,
		SetpointLeft:  s.SetpointLeft,
		SetpointRight: s.SetpointRight,
		Outside:       s.Outside.Celsius,
		OutsideFault:  s.Outside.Fault != 0,
		InsideLeft:    s.InsideLeft.Celsius,
		InsideRight:   s.InsideRight.Celsius,
		FanLevel:      s.FanLevel,
		Compressor:    s.Output(hvac.OutputCompressor),
		HeaterValve:   s.Output(hvac.OutputHeaterValve),
	})
	if err != nil {
		logger.Warn("failed to encode MQTT state: %v", err)
		return
	}
	p.publish("state", body)
}

// Close stops the token watcher and disconnects from the broker.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	p.client.Disconnect(250)
}

// Unwatched returns how many publishes were sent without their outcome
// being checked because the watch queue was full.
func (p *Publisher) Unwatched() uint64 {
	return p.unwatched.Load()
}

// publish sends without waiting; observers must not block the control loop.
// Completion is checked by the single watcher goroutine.
func (p *Publisher) publish(suffix string, payload []byte) {
	topic := p.Topic(suffix)
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	select {
	case p.pending <- pendingPublish{topic: topic, token: token}:
	default:
		if p.unwatched.Add(1) == 1 {
			logger.Warn("MQTT publish queue full, broker not keeping up")
		}
	}
}

// watch reports failed and timed-out publishes until Close.
func (p *Publisher) watch() {
	for {
		select {
		case <-p.done:
			return
		case pp := <-p.pending:
			if !pp.token.WaitTimeout(publishTimeout) {
				logger.Warn("MQTT publish %s timed out", pp.topic)
				continue
			}
			if err := pp.token.Error(); err != nil {
				logger.Warn("MQTT publish %s failed: %v", pp.topic, err)
			}
		}
	}
}
