package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	kafkaGo "github.com/segmentio/kafka-go"

	applog "storefront/internal/log"
)

// KafkaConfig describes the broker-backed transport. Each domain uses a
// topic pair: the client writes <prefix>.<domain>.requests and the
// server pushes <prefix>.<domain>.events.
type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
	// GroupID defaults to a per-process unique group so every client
	// instance sees the full event stream.
	GroupID string
}

// DialKafka returns a Dialer producing one broker connection per domain.
func DialKafka(cfg KafkaConfig) Dialer {
	return func(domain string) (Conn, error) {
		return newKafkaConn(cfg, domain)
	}
}

type kafkaConn struct {
	registry
	writer *kafkaGo.Writer
	reader *kafkaGo.Reader
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool
}

func newKafkaConn(cfg KafkaConfig, domain string) (*kafkaConn, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("channel: no brokers configured")
	}
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "storefront"
	}
	group := cfg.GroupID
	if group == "" {
		group = prefix + "-client-" + uuid.NewString()
	}

	c := &kafkaConn{
		writer: &kafkaGo.Writer{
			Addr:     kafkaGo.TCP(cfg.Brokers...),
			Topic:    fmt.Sprintf("%s.%s.requests", prefix, domain),
			Balancer: &kafkaGo.LeastBytes{},
		},
		reader: kafkaGo.NewReader(kafkaGo.ReaderConfig{
			Brokers: cfg.Brokers,
			Topic:   fmt.Sprintf("%s.%s.events", prefix, domain),
			GroupID: group,
		}),
		done: make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.consume(ctx)
	return c, nil
}

func (c *kafkaConn) consume(ctx context.Context) {
	defer close(c.done)
	topic := c.reader.Config().Topic

	c.notifyConnect()
	down := false
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			applog.Error(nil, "channel.read", err, map[string]any{"topic": topic})
			down = true
			time.Sleep(time.Second)
			continue
		}
		if down {
			down = false
			c.notifyConnect()
		}
		var msg Message
		if err := json.Unmarshal(m.Value, &msg); err != nil || msg.Event == "" {
			// Partial data: logged and treated as no data, never a crash.
			applog.Warn(nil, "channel.frame.bad", map[string]any{"topic": topic})
			continue
		}
		c.dispatch(msg)
	}
}

func (c *kafkaConn) Emit(ctx context.Context, event, id string, payload any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	data, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Message{Event: event, ID: id, Data: data})
	if err != nil {
		return err
	}
	return c.writer.WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(event),
		Value: frame,
	})
}

func (c *kafkaConn) On(event string, h Handler) func() { return c.on(event, h) }
func (c *kafkaConn) OnConnect(fn func()) func()        { return c.onConnect(fn) }

func (c *kafkaConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	rerr := c.reader.Close()
	werr := c.writer.Close()
	<-c.done
	if rerr != nil {
		return rerr
	}
	return werr
}
