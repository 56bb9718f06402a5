package constants

const (
	UnificationExchange     = "unification_exchange"
	UnificationExchangeType = "direct"
)

// Имена очередей
const (
	QueueMatchRequests = "match_requests"
)

// Ключи маршрутизации
const (
	RoutingKeyMatchRequest = "match.request"

	RoutingKeyUnifiedCreated       = "unified.created"
	RoutingKeyUnifiedRebuilt       = "unified.rebuilt"
	RoutingKeyUnifiedUpdated       = "unified.updated"
	RoutingKeyFutureProjectCreated = "future_project.created"
	RoutingKeyFutureProjectDeleted = "future_project.deleted"
)

const (
	FinalDLXExchange   = "match_requests_final_dlx"
	FinalDLQ           = "match_requests_final_dlq"
	FinalDLQRoutingKey = "match_requests.dlq.key"
)

// Заголовки сообщений
const (
	HeaderEventType    = "event-type"
	HeaderEventVersion = "event-version"
	HeaderTraceID      = "x-trace-id"
)
