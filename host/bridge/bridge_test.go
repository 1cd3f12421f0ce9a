package bridge

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"strobelink/host/controller"
	"strobelink/protocol"
)

// fakeToken completes at once unless hold is set, in which case Wait
// blocks until hold is closed.
type fakeToken struct {
	err  error
	hold chan struct{}
}

func (t *fakeToken) Wait() bool {
	if t.hold != nil {
		<-t.hold
	}
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	if t.hold == nil {
		return true
	}
	select {
	case <-t.hold:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeBroker struct {
	mu         sync.Mutex
	published  []published
	subscribed map[string]mqtt.MessageHandler
	hold       chan struct{} // stalls publish tokens while open
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subscribed: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return &fakeToken{hold: f.hold}
}

func (f *fakeBroker) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[topic] = callback
	return &fakeToken{}
}

func (f *fakeBroker) Unsubscribe(topics ...string) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.subscribed, t)
	}
	return &fakeToken{}
}

func (f *fakeBroker) on(topic string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, p := range f.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeBroker) handler(topic string) mqtt.MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed[topic]
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type executed struct {
	name  string
	value uint32
}

type fakeDevice struct {
	mu       sync.Mutex
	status   protocol.Status
	executed []executed
	err      error
}

func (d *fakeDevice) Status(ctx context.Context) (protocol.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status, nil
}

func (d *fakeDevice) Execute(ctx context.Context, name string, value uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executed = append(d.executed, executed{name, value})
	return d.err
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func defaultStatus() protocol.Status {
	return protocol.Status{
		FirmwareVersion:  48,
		FullCycleLenUS:   200000,
		LightsPulseLenUS: 5000,
		DutyLenUS:        454,
		PowerOn:          true,
	}
}

func TestHandleSwitch(t *testing.T) {
	dev := &fakeDevice{}
	b := New(dev, newFakeBroker(), Options{Logger: quietLogger()})

	on := false
	resp := b.handle(context.Background(), Request{ID: "1", Command: "power", Value: 7, On: &on})
	if resp.Status != "ok" || resp.ID != "1" || resp.CommandAck != "power" {
		t.Errorf("Unexpected response %+v", resp)
	}
	if len(dev.executed) != 1 || dev.executed[0] != (executed{"power", 0}) {
		t.Errorf("Expected power off, got %+v", dev.executed)
	}
}

func TestHandleControllerError(t *testing.T) {
	dev := &fakeDevice{err: &controller.Error{Code: protocol.ErrFrequencyOutOfRange}}
	b := New(dev, newFakeBroker(), Options{Logger: quietLogger()})

	resp := b.handle(context.Background(), Request{Command: "frequency", Value: 99})
	if resp.Status != "error" {
		t.Fatalf("Expected error status, got %+v", resp)
	}
	if resp.Code != int(protocol.ErrFrequencyOutOfRange) {
		t.Errorf("Expected code 1, got %d", resp.Code)
	}
}

func TestStatusPublishedRetained(t *testing.T) {
	dev := &fakeDevice{status: defaultStatus()}
	broker := newFakeBroker()
	b := New(dev, broker, Options{Prefix: "lab", Logger: quietLogger()})

	resp := b.handle(context.Background(), Request{Command: "status"})
	if resp.Status != "ok" {
		t.Fatalf("Expected ok, got %+v", resp)
	}
	msgs := broker.on("lab/status")
	if len(msgs) != 1 || !msgs[0].retained {
		t.Fatalf("Expected one retained status, got %+v", msgs)
	}
	var st StatusMessage
	if err := json.Unmarshal(msgs[0].payload, &st); err != nil {
		t.Fatalf("Bad status payload: %v", err)
	}
	if st.FullCycleLenUS != 200000 || st.CameraHz != 5 || st.StrobeHz != 200 || !st.PowerOn {
		t.Errorf("Unexpected status %+v", st)
	}
	if st.ID == "" {
		t.Error("Expected snapshot ID")
	}
	if b.LastStatus() == nil || b.LastStatus().DutyLenUS != 454 {
		t.Error("Expected last status cached")
	}
}

func TestInvalidCommandMessage(t *testing.T) {
	broker := newFakeBroker()
	broker.hold = make(chan struct{})
	defer close(broker.hold)
	b := New(&fakeDevice{}, broker, Options{Logger: quietLogger()})

	// The handler must return even while the broker is not acking.
	done := make(chan struct{})
	go func() {
		b.messageHandler(nil, &fakeMessage{topic: "strobelink/command", payload: []byte("{")})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected the message handler to return without waiting on the broker")
	}

	if n := len(broker.on("strobelink/response")); n != 0 {
		t.Errorf("Expected no publish from the handler, got %d", n)
	}
	if len(b.requests) != 0 {
		t.Error("Expected nothing queued")
	}
	if len(b.rejects) != 1 {
		t.Fatalf("Expected one queued error response, got %d", len(b.rejects))
	}
	resp := <-b.rejects
	if resp.Status != "error" || resp.Code != int(protocol.ErrUnknownCommand) {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestPublishEvent(t *testing.T) {
	broker := newFakeBroker()
	b := New(&fakeDevice{}, broker, Options{Logger: quietLogger()})

	b.PublishEvent("E5")
	msgs := broker.on("strobelink/event")
	if len(msgs) != 1 {
		t.Fatalf("Expected one event, got %d", len(msgs))
	}
	var ev EventMessage
	json.Unmarshal(msgs[0].payload, &ev)
	if ev.Code != 5 || ev.Error != "Bad Pulse Frequency" {
		t.Errorf("Unexpected event %+v", ev)
	}
}

func TestRun(t *testing.T) {
	dev := &fakeDevice{status: defaultStatus()}
	broker := newFakeBroker()
	b := New(dev, broker, Options{PollInterval: time.Hour, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- b.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for broker.handler("strobelink/command") == nil {
		if time.Now().After(deadline) {
			t.Fatal("Expected subscription to the command topic")
		}
		time.Sleep(time.Millisecond)
	}
	broker.handler("strobelink/command")(nil, &fakeMessage{
		topic:   "strobelink/command",
		payload: []byte(`{"id":"abc","command":"frequency","value":10}`),
	})
	broker.handler("strobelink/command")(nil, &fakeMessage{
		topic:   "strobelink/command",
		payload: []byte(`not json`),
	})

	for len(broker.on("strobelink/response")) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("Expected a response")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}

	var ok, rejected int
	for _, msg := range broker.on("strobelink/response") {
		var resp Response
		json.Unmarshal(msg.payload, &resp)
		switch {
		case resp.ID == "abc" && resp.Status == "ok":
			ok++
		case resp.Status == "error" && resp.Code == int(protocol.ErrUnknownCommand):
			rejected++
		default:
			t.Errorf("Unexpected response %+v", resp)
		}
	}
	if ok != 1 || rejected != 1 {
		t.Errorf("Expected one ok and one error response, got %d and %d", ok, rejected)
	}
	if len(broker.on("strobelink/status")) == 0 {
		t.Error("Expected an initial status snapshot")
	}
	if len(broker.on("strobelink/online")) != 1 {
		t.Error("Expected online flag")
	}
	if broker.handler("strobelink/command") != nil {
		t.Error("Expected unsubscribe on shutdown")
	}
}
