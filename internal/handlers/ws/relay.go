package ws

import (
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const subjectPrefix = "chat.user."

// relayEnvelope is what instances exchange over NATS. Origin lets an instance
// skip events it already delivered locally.
type relayEnvelope struct {
	Origin  string          `json:"origin"`
	UserID  uint            `json:"user_id"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NatsRelay delivers events to users connected to any instance. It sends to
// local connections directly and publishes for the others.
type NatsRelay struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	hub    *Hub
	origin string
	logger *zap.Logger
}

func NewNatsRelay(url, name string, hub *Hub, logger *zap.Logger) (*NatsRelay, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("relay")

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, err
	}

	r := &NatsRelay{
		nc:     nc,
		hub:    hub,
		origin: uuid.NewString(),
		logger: log,
	}
	r.sub, err = nc.Subscribe(subjectPrefix+"*", r.handle)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return r, nil
}

func userSubject(userID uint) string {
	return subjectPrefix + strconv.FormatUint(uint64(userID), 10)
}

func (r *NatsRelay) BroadcastToUser(userID uint, event string, payload interface{}) {
	r.hub.BroadcastToUser(userID, event, payload)

	data, err := r.encode(userID, event, payload)
	if err != nil {
		r.logger.Error("encode relay event", zap.String("event", event), zap.Error(err))
		return
	}
	if err := r.nc.Publish(userSubject(userID), data); err != nil {
		r.logger.Warn("publish relay event", zap.Uint("user_id", userID), zap.Error(err))
	}
}

func (r *NatsRelay) encode(userID uint, event string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(relayEnvelope{
		Origin:  r.origin,
		UserID:  userID,
		Event:   event,
		Payload: raw,
	})
}

func (r *NatsRelay) handle(m *nats.Msg) {
	var env relayEnvelope
	if err := json.Unmarshal(m.Data, &env); err != nil {
		r.logger.Warn("bad relay frame", zap.String("subject", m.Subject), zap.Error(err))
		return
	}
	r.deliver(m.Subject, env)
}

func (r *NatsRelay) deliver(subject string, env relayEnvelope) {
	if env.Origin == r.origin {
		return
	}
	if !strings.HasPrefix(subject, subjectPrefix) || env.UserID == 0 {
		return
	}
	r.hub.BroadcastToUser(env.UserID, env.Event, env.Payload)
}

// Close drains the subscription and the connection.
func (r *NatsRelay) Close() error {
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}
	return r.nc.Drain()
}
