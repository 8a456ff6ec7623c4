package out

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	syncout "focuskit/internal/modules/sync/port/out"
)

const mqttQoS byte = 1

// MQTTTransport publishes envelopes to one topic on a broker. Every surface
// subscribes to the same topic; the bridge drops its own echoes.
type MQTTTransport struct {
	client mqtt.Client
	topic  string
	logger zerolog.Logger

	mu      sync.Mutex
	deliver func([]byte)
}

func NewMQTTTransport(broker, topic, clientID string, logger zerolog.Logger) (*MQTTTransport, error) {
	t := &MQTTTransport{topic: topic, logger: logger}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second).
		SetOnConnectHandler(func(client mqtt.Client) {
			t.resubscribe(client)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn().Err(err).Str("broker", broker).Msg("mqtt connection lost")
		})

	t.client = mqtt.NewClient(opts)
	if token := t.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return t, nil
}

func (t *MQTTTransport) Publish(ctx context.Context, payload []byte) error {
	token := t.client.Publish(t.topic, mqttQoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

func (t *MQTTTransport) Listen(ctx context.Context, deliver func([]byte)) error {
	t.mu.Lock()
	t.deliver = deliver
	t.mu.Unlock()
	if err := t.subscribe(t.client); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		t.mu.Lock()
		t.deliver = nil
		t.mu.Unlock()
		if t.client.IsConnected() {
			t.client.Unsubscribe(t.topic)
		}
	}()
	return nil
}

func (t *MQTTTransport) Close() error {
	t.client.Disconnect(250)
	return nil
}

func (t *MQTTTransport) subscribe(client mqtt.Client) error {
	token := client.Subscribe(t.topic, mqttQoS, func(_ mqtt.Client, msg mqtt.Message) {
		t.mu.Lock()
		deliver := t.deliver
		t.mu.Unlock()
		if deliver != nil {
			deliver(msg.Payload())
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", t.topic, token.Error())
	}
	return nil
}

// resubscribe restores the subscription after an automatic reconnect; a
// clean session forgets it on the broker side.
func (t *MQTTTransport) resubscribe(client mqtt.Client) {
	t.mu.Lock()
	listening := t.deliver != nil
	t.mu.Unlock()
	if !listening {
		return
	}
	if err := t.subscribe(client); err != nil {
		t.logger.Error().Err(err).Msg("mqtt resubscribe")
	}
}

var _ syncout.Transport = (*MQTTTransport)(nil)
