// Package bridge publishes controller status over MQTT and accepts
// commands on a command topic.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"strobelink/host/controller"
	"strobelink/protocol"
)

// Topic suffixes under the configured prefix
const (
	TopicStatus   = "status"
	TopicCommand  = "command"
	TopicResponse = "response"
	TopicEvent    = "event"
	TopicOnline   = "online"
)

// Device is the controller as the bridge sees it.
type Device interface {
	Status(ctx context.Context) (protocol.Status, error)
	Execute(ctx context.Context, name string, value uint32) error
}

// Broker is the part of mqtt.Client the bridge uses.
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// Request is a command message.
type Request struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command"`
	Value   uint32 `json:"value,omitempty"`
	On      *bool  `json:"on,omitempty"`
}

// Response answers a Request on the response topic.
type Response struct {
	ID         string `json:"id"`
	CommandAck string `json:"command_ack"`
	Status     string `json:"status"`
	Code       int    `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// StatusMessage is the retained status snapshot.
type StatusMessage struct {
	ID               string  `json:"id"`
	FirmwareVersion  uint32  `json:"firmware_version"`
	FullCycleLenUS   uint32  `json:"full_cycle_len_us"`
	LightsPulseLenUS uint32  `json:"lights_pulse_len_us"`
	DutyLenUS        uint32  `json:"duty_len_us"`
	CameraHz         float64 `json:"camera_hz"`
	StrobeHz         float64 `json:"strobe_hz"`
	PowerOn          bool    `json:"power_on"`
	AutoMode         bool    `json:"auto_mode"`
	CameraWorks      bool    `json:"camera_works"`
	ErrorLED         bool    `json:"error_led"`
	FanOn            bool    `json:"fan_on"`
	Propagation      uint8   `json:"propagation"`
	ExternalTrigger  bool    `json:"external_trigger"`
	Timestamp        string  `json:"timestamp"`
}

// EventMessage carries a line the controller sent on its own.
type EventMessage struct {
	Line      string `json:"line"`
	Code      int    `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Options configures a Bridge.
type Options struct {
	Prefix       string
	QoS          byte
	PollInterval time.Duration
	Logger       *log.Logger
}

// Bridge connects one controller to an MQTT broker.
type Bridge struct {
	dev    Device
	broker Broker
	opts   Options
	log    *log.Logger

	requests chan Request
	rejects  chan Response // answers to undecodable messages

	mu         sync.Mutex
	lastStatus *StatusMessage
}

const publishTimeout = 5 * time.Second

// New creates a bridge. Call Run to start it.
func New(dev Device, broker Broker, opts Options) *Bridge {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Prefix == "" {
		opts.Prefix = "strobelink"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Bridge{
		dev:      dev,
		broker:   broker,
		opts:     opts,
		log:      logger,
		requests: make(chan Request, 10),
		rejects:  make(chan Response, 10),
	}
}

// Topic returns the full topic for suffix.
func (b *Bridge) Topic(suffix string) string {
	return b.opts.Prefix + "/" + suffix
}

// Run subscribes to the command topic and publishes status until ctx is
// done.
func (b *Bridge) Run(ctx context.Context) error {
	topic := b.Topic(TopicCommand)
	token := b.broker.Subscribe(topic, b.opts.QoS, b.messageHandler)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscription to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscription to %s failed: %w", topic, err)
	}
	b.log.Printf("listening for commands on %s", topic)

	if err := b.publish(b.Topic(TopicOnline), true, map[string]bool{"online": true}); err != nil {
		b.log.Printf("online flag: %v", err)
	}

	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()
	b.pollStatus(ctx)
	for {
		select {
		case <-ctx.Done():
			b.broker.Unsubscribe(topic).WaitTimeout(publishTimeout)
			return nil
		case req := <-b.requests:
			resp := b.handle(ctx, req)
			if err := b.publish(b.Topic(TopicResponse), false, resp); err != nil {
				b.log.Printf("response to %s: %v", req.Command, err)
			}
		case resp := <-b.rejects:
			if err := b.publish(b.Topic(TopicResponse), false, resp); err != nil {
				b.log.Printf("error response: %v", err)
			}
		case <-ticker.C:
			b.pollStatus(ctx)
		}
	}
}

// messageHandler decodes a command message and queues it for Run. It
// runs on the paho router and must not wait on tokens.
func (b *Bridge) messageHandler(client mqtt.Client, msg mqtt.Message) {
	var req Request
	if err := json.Unmarshal(msg.Payload(), &req); err != nil || req.Command == "" {
		b.log.Printf("ignoring command message on %s: invalid JSON", msg.Topic())
		select {
		case b.rejects <- Response{
			CommandAck: "unknown",
			Status:     "error",
			Code:       int(protocol.ErrUnknownCommand),
			Error:      "invalid JSON",
			Timestamp:  timestamp(),
		}:
		default:
		}
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	select {
	case b.requests <- req:
	default:
		b.log.Printf("command queue full, dropping %s", req.Command)
	}
}

// handle runs one request against the controller.
func (b *Bridge) handle(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID, CommandAck: req.Command, Status: "ok"}

	var err error
	if req.Command == "status" {
		err = b.pollStatus(ctx)
	} else {
		value := req.Value
		if req.On != nil {
			value = 0
			if *req.On {
				value = 1
			}
		}
		err = b.dev.Execute(ctx, req.Command, value)
	}

	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		resp.Code = int(protocol.ErrUnknown)
		var ce *controller.Error
		if errors.As(err, &ce) {
			resp.Code = int(ce.Code)
		}
	}
	resp.Timestamp = timestamp()
	return resp
}

// pollStatus reads the status and publishes it as a retained message.
func (b *Bridge) pollStatus(ctx context.Context) error {
	st, err := b.dev.Status(ctx)
	if err != nil {
		b.log.Printf("status: %v", err)
		return err
	}
	msg := statusMessage(st)

	b.mu.Lock()
	b.lastStatus = &msg
	b.mu.Unlock()

	return b.publish(b.Topic(TopicStatus), true, msg)
}

// LastStatus returns the most recent snapshot, or nil before the first.
func (b *Bridge) LastStatus() *StatusMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastStatus
}

// PublishEvent forwards an unsolicited controller line. It is meant for
// controller.Client.OnLine.
func (b *Bridge) PublishEvent(line string) {
	ev := EventMessage{Line: line, Timestamp: timestamp()}
	if len(line) > 1 && line[0] == 'E' {
		if n, err := strconv.Atoi(line[1:]); err == nil && n < protocol.NumCodes {
			ev.Code = n
			ev.Error = protocol.ErrorCode(n).String()
		}
	}
	if err := b.publish(b.Topic(TopicEvent), false, ev); err != nil {
		b.log.Printf("event: %v", err)
	}
}

func statusMessage(st protocol.Status) StatusMessage {
	return StatusMessage{
		ID:               uuid.NewString(),
		FirmwareVersion:  st.FirmwareVersion,
		FullCycleLenUS:   st.FullCycleLenUS,
		LightsPulseLenUS: st.LightsPulseLenUS,
		DutyLenUS:        st.DutyLenUS,
		CameraHz:         st.CameraFrequency(),
		StrobeHz:         st.StrobeFrequency(),
		PowerOn:          st.PowerOn,
		AutoMode:         st.AutoMode,
		CameraWorks:      st.CameraWorks,
		ErrorLED:         st.ErrorLED,
		FanOn:            st.FanOn,
		Propagation:      st.Propagation,
		ExternalTrigger:  st.ExternalTrigger,
		Timestamp:        timestamp(),
	}
}

func (b *Bridge) publish(topic string, retained bool, obj interface{}) error {
	msg, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	token := b.broker.Publish(topic, b.opts.QoS, retained, msg)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
