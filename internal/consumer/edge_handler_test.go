package consumer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

type change struct {
	edge string
	pair schema.Pair
}

type recorder struct {
	changes []change
}

func (r *recorder) EdgeChanged(_ context.Context, e schema.Edge, p schema.Pair) {
	r.changes = append(r.changes, change{edge: e.Name, pair: p})
}

func TestEdgeHandler_Ops(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		value string
		want  []change
	}{
		{
			name:  "follow created",
			topic: "dbserver1.public.follows",
			value: `{"payload": {"op": "c", "before": null, "after": {"follower_id": 1, "leader_id": 2}, "source": {"table": "follows"}}}`,
			want:  []change{{schema.EdgeFollow, schema.Pair{Left: 1, Right: 2}}},
		},
		{
			name:  "like deleted, table from topic",
			topic: "dbserver1.public.likes",
			value: `{"payload": {"op": "d", "before": {"user_id": 3, "post_id": 7}, "after": null}}`,
			want:  []change{{schema.EdgeLike, schema.Pair{Left: 3, Right: 7}}},
		},
		{
			name:  "update touches both rows",
			topic: "dbserver1.public.follows",
			value: `{"payload": {"op": "u", "before": {"follower_id": 1, "leader_id": 2}, "after": {"follower_id": 1, "leader_id": 3}}}`,
			want: []change{
				{schema.EdgeFollow, schema.Pair{Left: 1, Right: 2}},
				{schema.EdgeFollow, schema.Pair{Left: 1, Right: 3}},
			},
		},
		{
			name:  "snapshot read",
			topic: "dbserver1.public.likes",
			value: `{"payload": {"op": "r", "after": {"user_id": 1, "post_id": 1}}}`,
			want:  []change{{schema.EdgeLike, schema.Pair{Left: 1, Right: 1}}},
		},
		{
			name:  "non-edge table",
			topic: "dbserver1.public.posts",
			value: `{"payload": {"op": "c", "after": {"id": 1}}}`,
		},
		{
			name:  "tombstone",
			topic: "dbserver1.public.follows",
			value: ``,
		},
		{
			name:  "garbage",
			topic: "dbserver1.public.follows",
			value: `not json`,
		},
		{
			name:  "missing column",
			topic: "dbserver1.public.follows",
			value: `{"payload": {"op": "c", "after": {"follower_id": 1}}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			h := NewEdgeHandler(schema.Default(), rec)
			processMessage(context.Background(), h, tt.topic, []byte(tt.value))
			assert.Equal(t, tt.want, rec.changes)
		})
	}
}

func TestEdgeHandler_UnknownOp(t *testing.T) {
	h := NewEdgeHandler(schema.Default(), &recorder{})
	err := h.HandleCDCEvent(context.Background(), "dbserver1.public.follows",
		&DebeziumMessage{Payload: DebeziumPayload{Op: "x", Source: DebeziumSource{Table: "follows"}}})
	require.Error(t, err)
}

func TestSplitTopics(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTopics(" a, ,b "))
	assert.Empty(t, splitTopics(""))
}
