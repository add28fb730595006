package projector

import (
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

type resolver func(p *Projector, rec schema.Record) (any, error)

// computed resolves viewer-relative fields, keyed by "model.field".
var computed = map[string]resolver{
	"user.is_following": func(p *Projector, rec schema.Record) (any, error) {
		if !p.viewer.Authenticated() {
			return false, nil
		}
		return p.snap.HasPair(schema.EdgeFollow, schema.Pair{Left: p.viewer.ID, Right: rec.ID})
	},
	"user.can_follow": func(p *Projector, rec schema.Record) (any, error) {
		return p.viewer.Authenticated() && p.viewer.ID != rec.ID, nil
	},
	"user.is_self": func(p *Projector, rec schema.Record) (any, error) {
		return p.viewer.Authenticated() && p.viewer.ID == rec.ID, nil
	},
	"post.i_like": func(p *Projector, rec schema.Record) (any, error) {
		if !p.viewer.Authenticated() {
			return false, nil
		}
		return p.snap.HasPair(schema.EdgeLike, schema.Pair{Left: p.viewer.ID, Right: rec.ID})
	},
	"post.username": func(p *Projector, rec schema.Record) (any, error) {
		author, ok, err := p.snap.Lookup(schema.ModelUser, rec.Int("user_id"))
		if err != nil || !ok {
			return nil, err
		}
		return author.Get("username"), nil
	},
}
