// README: Best-effort notification fan-out; delivery failures are logged, never propagated.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

// Transport moves an encoded envelope towards a recipient's channel. Delivery
// is at-most-once per attempt: disconnected recipients just miss the message,
// and the dispatch expiry path is the recovery mechanism.
type Transport interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Envelope struct {
	Event     string    `json:"event"`
	Recipient types.ID  `json:"recipient"`
	Payload   any       `json:"payload,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

type Notifier struct {
	transport Transport
	log       *zap.Logger
}

func NewNotifier(transport Transport, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{transport: transport, log: log}
}

// Notify sends one event to one recipient. Callers never block on delivery
// outcome; errors are swallowed after logging.
func (n *Notifier) Notify(ctx context.Context, recipient types.ID, event string, payload any) {
	env := Envelope{Event: event, Recipient: recipient, Payload: payload, SentAt: time.Now()}
	body, err := json.Marshal(env)
	if err != nil {
		n.log.Error("encode notification", zap.String("event", event), zap.Error(err))
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := n.transport.Publish(sendCtx, Channel(recipient), body); err != nil {
		n.log.Debug("notification dropped",
			zap.String("event", event),
			zap.String("recipient", string(recipient)),
			zap.Error(err))
	}
}

// Channel names the per-recipient delivery channel; the socket gateway
// subscribes to it for each connected client.
func Channel(recipient types.ID) string {
	return "notify:" + string(recipient)
}
