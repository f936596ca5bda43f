package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/services/alert"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
)

const (
	alertQoS       = 1
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// publisher is the part of mqtt.Client the notifier needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTNotifier publishes alerts as JSON to an MQTT topic.
type MQTTNotifier struct {
	client publisher
	topic  string
	logger *logger.Logger

	mu     sync.Mutex
	failed uint64
}

// Connect opens a client to broker and returns a notifier publishing on topic.
// The client reconnects on its own after a lost connection.
func Connect(broker, clientID, topic string, logger *logger.Logger) (*MQTTNotifier, func(), error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		logger.Info("MQTT connection established: %s", broker)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.Warning("MQTT connection lost, reconnecting: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		client.Disconnect(0)
		return nil, nil, fmt.Errorf("mqtt connection timeout: %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	disconnect := func() {
		client.Disconnect(250)
		logger.Info("MQTT disconnected")
	}
	return NewMQTTNotifier(client, topic, logger), disconnect, nil
}

func NewMQTTNotifier(client publisher, topic string, logger *logger.Logger) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic, logger: logger}
}

// Notify publishes a without waiting for the broker.
func (n *MQTTNotifier) Notify(a alert.Alert) {
	payload, err := json.Marshal(a)
	if err != nil {
		n.logger.Error("Failed to encode alert: %v", err)
		return
	}

	token := n.client.Publish(n.topic, alertQoS, false, payload)
	go n.await(token)
}

func (n *MQTTNotifier) await(token mqtt.Token) {
	var err error
	if !token.WaitTimeout(publishTimeout) {
		err = fmt.Errorf("publish timeout")
	} else {
		err = token.Error()
	}
	if err == nil {
		return
	}

	n.mu.Lock()
	n.failed++
	n.mu.Unlock()
	n.logger.Warning("Alert not published to %s: %v", n.topic, err)
}

// Failed returns how many publishes did not complete.
func (n *MQTTNotifier) Failed() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failed
}
