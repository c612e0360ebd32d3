package rabbitmq

// NotificationsExchange — обменник, через который проходят все уведомления пользователей.
const NotificationsExchange = "notifications"

// Очередь и ключ маршрутизации сообщений для внешней доставки.
const (
	InboxQueue      = "notification.inbox"
	InboxRoutingKey = "inbox"
)

// QueueConfig описывает очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// NotificationQueues возвращает очереди, привязанные к обменнику уведомлений.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: InboxQueue, RoutingKey: InboxRoutingKey},
	}
}
