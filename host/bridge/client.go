package bridge

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"strobelink/host/config"
)

// NewMQTTClient connects to the broker in cfg. The online topic gets a
// retained offline flag as last will.
func NewMQTTClient(cfg *config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetWill(cfg.TopicPrefix+"/"+TopicOnline, `{"online":false}`, cfg.QoS, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Broker, err)
	}
	return c, nil
}
