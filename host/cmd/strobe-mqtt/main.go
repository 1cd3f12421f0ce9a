package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"strobelink/host/bridge"
	"strobelink/host/config"
	"strobelink/host/controller"
)

var (
	configPath = flag.String("config", "", "JSON configuration file")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	broker     = flag.String("broker", "", "MQTT broker URL (overrides config)")
	prefix     = flag.String("prefix", "", "Topic prefix (overrides config)")
)

func main() {
	flag.Parse()
	logger := log.New(os.Stderr, "[strobelink] ", log.LstdFlags)

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}
	if *prefix != "" {
		cfg.MQTT.TopicPrefix = *prefix
	}

	client, err := controller.Dial(cfg.SerialPort(), cfg.ReplyTimeout())
	if err != nil {
		logger.Fatalf("controller: %v", err)
	}
	defer client.Close()
	logger.Printf("connected to controller on %s", cfg.Serial.Device)

	mq, err := bridge.NewMQTTClient(&cfg.MQTT)
	if err != nil {
		logger.Fatalf("mqtt: %v", err)
	}
	defer mq.Disconnect(250)
	logger.Printf("connected to %s as %s", cfg.MQTT.Broker, cfg.MQTT.ClientID)

	b := bridge.New(client, mq, bridge.Options{
		Prefix:       cfg.MQTT.TopicPrefix,
		QoS:          cfg.MQTT.QoS,
		PollInterval: cfg.PollInterval(),
		Logger:       logger,
	})
	client.OnLine = b.PublishEvent

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil {
		logger.Printf("bridge: %v", err)
		os.Exit(1)
	}
	logger.Printf("shutting down")
}
