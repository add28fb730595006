// Package repotest provides an in-memory repository.Reader for tests.
package repotest

import (
	"fmt"
	"sort"
	"time"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

// Reader serves records and pairs from maps and counts the calls made.
type Reader struct {
	Data  map[string][]schema.Record
	Edges map[string][]schema.Pair
	Calls map[string]int
}

var _ repository.Reader = (*Reader)(nil)

func (r *Reader) count(method string) {
	if r.Calls == nil {
		r.Calls = make(map[string]int)
	}
	r.Calls[method]++
}

func (r *Reader) Records(model string) ([]schema.Record, error) {
	r.count("Records")
	recs := append([]schema.Record(nil), r.Data[model]...)
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

func (r *Reader) Record(model string, id int64) (schema.Record, error) {
	r.count("Record")
	for _, rec := range r.Data[model] {
		if rec.ID == id {
			return rec, nil
		}
	}
	return schema.Record{}, domain.Wrap(domain.KindNotFound, repository.ErrRecordNotFound, fmt.Sprintf("%s %d does not exist", model, id))
}

func (r *Reader) Pairs(edge string) ([]schema.Pair, error) {
	r.count("Pairs")
	return append([]schema.Pair(nil), r.Edges[edge]...), nil
}

func (r *Reader) HasPair(edge string, p schema.Pair) (bool, error) {
	r.count("HasPair")
	for _, q := range r.Edges[edge] {
		if q == p {
			return true, nil
		}
	}
	return false, nil
}

func (r *Reader) CountPairs(edge string, side schema.Side, id int64) (int64, error) {
	r.count("CountPairs")
	var n int64
	for _, p := range r.Edges[edge] {
		if p.Get(side) == id {
			n++
		}
	}
	return n, nil
}

// Day returns midnight UTC of the given January 2024 day.
func Day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

// User builds a user record.
func User(id int64, name string, followers, leaders int64) schema.Record {
	return schema.Record{Model: schema.ModelUser, ID: id, Values: map[string]any{
		"id":             id,
		"username":       name,
		"date_joined":    Day(int(id)),
		"follower_count": followers,
		"leader_count":   leaders,
	}}
}

// Post builds a post record.
func Post(id, userID int64, content string, ts time.Time, likes int64) schema.Record {
	return schema.Record{Model: schema.ModelPost, ID: id, Values: map[string]any{
		"id":         id,
		"user_id":    userID,
		"content":    content,
		"timestamp":  ts,
		"like_count": likes,
	}}
}

// Network returns a small consistent dataset:
//
//	users:   1 alice, 2 bob, 3 carol
//	follows: alice→bob, bob→alice, carol→bob
//	posts:   1 alice "first", 2 bob "hello world", 3 alice "again", 4 carol "carol here"
//	likes:   bob→1, carol→1, alice→2
func Network() *Reader {
	return &Reader{
		Data: map[string][]schema.Record{
			schema.ModelUser: {
				User(1, "alice", 1, 1),
				User(2, "bob", 2, 1),
				User(3, "carol", 0, 1),
			},
			schema.ModelPost: {
				Post(1, 1, "first", Day(10), 2),
				Post(2, 2, "hello world", Day(11), 1),
				Post(3, 1, "again", Day(12), 0),
				Post(4, 3, "carol here", Day(13), 0),
			},
		},
		Edges: map[string][]schema.Pair{
			schema.EdgeFollow: {{Left: 1, Right: 2}, {Left: 2, Right: 1}, {Left: 3, Right: 2}},
			schema.EdgeLike:   {{Left: 1, Right: 2}, {Left: 2, Right: 1}, {Left: 3, Right: 1}},
		},
	}
}
