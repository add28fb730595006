package consumer

import (
	"context"
	"encoding/json"
)

// DebeziumSource identifies the table a change event came from.
type DebeziumSource struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// DebeziumPayload is the payload field of a Debezium CDC message. Rows are
// kept raw because each edge table has its own column names.
type DebeziumPayload struct {
	Before json.RawMessage `json:"before"`
	After  json.RawMessage `json:"after"`
	Source DebeziumSource  `json:"source"`
	Op     string          `json:"op"` // "c"=create, "u"=update, "d"=delete, "r"=snapshot
	TsMs   int64           `json:"ts_ms"`
}

// DebeziumMessage is the top-level Debezium CDC message envelope.
type DebeziumMessage struct {
	Payload DebeziumPayload `json:"payload"`
}

// CDCEventHandler processes a decoded Debezium CDC message. topic is the
// Kafka topic it was read from.
type CDCEventHandler interface {
	HandleCDCEvent(ctx context.Context, topic string, event *DebeziumMessage) error
}

// CDCEventConsumer manages the Kafka consumer lifecycle.
type CDCEventConsumer interface {
	Start(ctx context.Context) error
	Close() error
}
