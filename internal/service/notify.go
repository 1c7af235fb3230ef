package service

// Topics and event types published after a committed mutation.
const (
	TopicCaixa   = "caixa"
	TopicPedidos = "pedidos"

	EventCaixaUpdated  = "caixa.updated"
	EventCaixaAlerta   = "caixa.alerta"
	EventPedidoCreated = "pedido.created"
	EventPedidoUpdated = "pedido.updated"
)

// Notifier receives events after the transaction that produced them has
// committed. Implementations must not block.
type Notifier interface {
	Notify(topic, eventType string, payload any)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string, any) {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return NopNotifier{}
	}
	return n
}
