package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MessageHandler receives every inbound message on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Broker owns the persistent connection to the MQTT broker and its
// subscription set. All inbound messages are routed to a single handler,
// mirroring how devices publish readings onto a shared topic namespace.
type Broker struct {
	client  paho.Client
	handler MessageHandler

	mu     sync.Mutex
	topics map[string]struct{}
}

// Connect dials the broker and returns the owned connection. The client id
// gets a random suffix so multiple processes can share a base id.
func Connect(brokerURI, clientID string, handler MessageHandler) (*Broker, error) {
	b := &Broker{
		handler: handler,
		topics:  make(map[string]struct{}),
	}

	opts := paho.NewClientOptions().
		AddBroker(brokerURI).
		SetClientID(clientID + "_" + uuid.NewString()[:8]).
		SetCleanSession(true).
		SetConnectTimeout(4 * time.Second).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Second)

	// Clean sessions drop subscriptions on reconnect, so restore them.
	opts.SetOnConnectHandler(func(c paho.Client) {
		log.Info().Str("broker", brokerURI).Msg("connected to MQTT broker")
		b.mu.Lock()
		topics := make([]string, 0, len(b.topics))
		for topic := range b.topics {
			topics = append(topics, topic)
		}
		b.mu.Unlock()
		for _, topic := range topics {
			if token := c.Subscribe(topic, 0, b.route); token.Wait() && token.Error() != nil {
				log.Error().Err(token.Error()).Str("topic", topic).Msg("resubscribe failed")
			}
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	b.client = paho.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return b, nil
}

func (b *Broker) route(_ paho.Client, msg paho.Message) {
	if b.handler != nil {
		b.handler(msg.Topic(), msg.Payload())
	}
}

// Subscribe adds topic to the subscription set and starts routing its
// messages to the handler.
func (b *Broker) Subscribe(topic string) error {
	if token := b.client.Subscribe(topic, 0, b.route); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	b.mu.Lock()
	b.topics[topic] = struct{}{}
	b.mu.Unlock()
	return nil
}

// Unsubscribe removes topic from the subscription set.
func (b *Broker) Unsubscribe(topic string) error {
	b.mu.Lock()
	delete(b.topics, topic)
	b.mu.Unlock()
	if token := b.client.Unsubscribe(topic); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Publish sends payload to topic and waits for the broker hand-off, so a
// QoS 1 publish returns only once delivery is acknowledged.
func (b *Broker) Publish(topic string, qos byte, payload []byte) error {
	token := b.client.Publish(topic, qos, false, payload)
	token.Wait()
	return token.Error()
}

// Disconnect closes the connection, allowing in-flight work to finish.
func (b *Broker) Disconnect() {
	b.client.Disconnect(250)
}
