package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/model"
	"facewatch/internal/services/alert"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err     error
	timeout bool
	done    chan struct{}
}

func newToken(err error, timeout bool) *fakeToken {
	t := &fakeToken{err: err, timeout: timeout, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu       sync.Mutex
	messages []published
	token    *fakeToken
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic, qos, retained, payload.([]byte)})
	return c.token
}

func TestMQTTNotifier_PublishesJSON(t *testing.T) {
	client := &fakeClient{token: newToken(nil, false)}
	n := NewMQTTNotifier(client, "facewatch/alerts", logger.Nop())
	at := time.Date(2024, 5, 17, 13, 4, 5, 0, time.UTC)

	n.Notify(alert.Alert{
		Name:         model.UnknownEventName,
		Status:       model.StatusCaptured,
		At:           at,
		EvidencePath: "captured_strangers/stranger_2024-05-17_13-04-05.jpg",
	})

	require.Len(t, client.messages, 1)
	msg := client.messages[0]
	assert.Equal(t, "facewatch/alerts", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.False(t, msg.retained)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.payload, &decoded))
	assert.Equal(t, "Unknown Stranger", decoded["name"])
	assert.Equal(t, "Captured", decoded["status"])
	assert.Equal(t, "captured_strangers/stranger_2024-05-17_13-04-05.jpg", decoded["evidence_path"])
}

func TestMQTTNotifier_CountsFailures(t *testing.T) {
	tests := []struct {
		name  string
		token *fakeToken
	}{
		{"broker error", newToken(errors.New("not authorized"), false)},
		{"timeout", newToken(nil, true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewMQTTNotifier(&fakeClient{token: tt.token}, "facewatch/alerts", logger.Nop())

			n.Notify(alert.Alert{Name: "alice", Status: model.StatusRecognized, At: time.Now()})

			assert.Eventually(t, func() bool { return n.Failed() == 1 }, time.Second, time.Millisecond)
		})
	}
}

func TestMQTTNotifier_SuccessIsNotCounted(t *testing.T) {
	n := NewMQTTNotifier(&fakeClient{token: newToken(nil, false)}, "facewatch/alerts", logger.Nop())

	n.Notify(alert.Alert{Name: "alice", Status: model.StatusRecognized, At: time.Now()})
	time.Sleep(20 * time.Millisecond)

	assert.Zero(t, n.Failed())
}
