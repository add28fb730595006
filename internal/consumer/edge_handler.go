package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edi-spaghetti/cs50w-network/internal/mutation"
	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

// EdgeHandler turns edge-table change events into EdgeChanged calls so
// writes made outside this process still mark their counters as hot.
type EdgeHandler struct {
	reg      *schema.Registry
	observer mutation.EdgeObserver
}

// NewEdgeHandler creates a handler that reports to observer.
func NewEdgeHandler(reg *schema.Registry, observer mutation.EdgeObserver) *EdgeHandler {
	return &EdgeHandler{reg: reg, observer: observer}
}

// HandleCDCEvent implements CDCEventHandler. Events for tables that hold no
// edge are ignored.
func (h *EdgeHandler) HandleCDCEvent(ctx context.Context, topic string, event *DebeziumMessage) error {
	table := event.Payload.Source.Table
	if table == "" {
		table = topic[strings.LastIndex(topic, ".")+1:]
	}
	edge, ok := repository.EdgeForTable(h.reg, table)
	if !ok {
		return nil
	}

	var rows []json.RawMessage
	switch event.Payload.Op {
	case "c", "r":
		rows = append(rows, event.Payload.After)
	case "d":
		rows = append(rows, event.Payload.Before)
	case "u":
		rows = append(rows, event.Payload.Before, event.Payload.After)
	default:
		return fmt.Errorf("unknown debezium op %q", event.Payload.Op)
	}

	seen := make(map[schema.Pair]bool, len(rows))
	for _, raw := range rows {
		if isNull(raw) {
			continue
		}
		p, err := decodePair(edge, raw)
		if err != nil {
			return fmt.Errorf("%s row: %w", table, err)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		h.observer.EdgeChanged(ctx, edge, p)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodePair(edge schema.Edge, raw json.RawMessage) (schema.Pair, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return schema.Pair{}, err
	}

	left, err := schema.CoerceInt(row[edge.LeftCol])
	if err != nil {
		return schema.Pair{}, fmt.Errorf("%s: %w", edge.LeftCol, err)
	}
	right, err := schema.CoerceInt(row[edge.RightCol])
	if err != nil {
		return schema.Pair{}, fmt.Errorf("%s: %w", edge.RightCol, err)
	}
	return schema.Pair{Left: left, Right: right}, nil
}

var _ CDCEventHandler = (*EdgeHandler)(nil)
