// Package seed fills an empty database with a reproducible demo network.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/mutation"
	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
	pkglog "github.com/edi-spaghetti/cs50w-network/pkg/log"
)

// Options control the shape of the generated network.
type Options struct {
	Seed     uint64
	MinUsers int
	MaxUsers int
	// MaxPosts bounds the posts written per user.
	MaxPosts int
	// MaxAge bounds how far into the past post timestamps are moved.
	MaxAge time.Duration
	Now    func() time.Time
}

// DefaultOptions mirror the classic demo: seed 1, 5 to 10 users, up to 10
// posts each spread over roughly four months.
func DefaultOptions() Options {
	return Options{
		Seed:     1,
		MinUsers: 5,
		MaxUsers: 10,
		MaxPosts: 10,
		MaxAge:   10_000_000 * time.Second,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// User is a generated account.
type User struct {
	ID       int64
	Username string
}

// Report summarizes a seeding run.
type Report struct {
	Users   []User
	Follows int
	Posts   int
	Likes   int
}

// Seeder writes users, follows, posts and likes through the mutation
// executor so counters are maintained by the normal write path.
type Seeder struct {
	exec  *mutation.Executor
	store repository.Store
	opts  Options
	rng   *rand.Rand
}

// New creates a seeder.
func New(exec *mutation.Executor, store repository.Store, opts Options) *Seeder {
	def := DefaultOptions()
	if opts.MinUsers <= 0 {
		opts.MinUsers = def.MinUsers
	}
	if opts.MaxUsers < opts.MinUsers {
		opts.MaxUsers = opts.MinUsers
	}
	if opts.MaxPosts < 0 {
		opts.MaxPosts = 0
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = def.MaxAge
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Seeder{
		exec:  exec,
		store: store,
		opts:  opts,
		rng:   rand.New(rand.NewPCG(opts.Seed, opts.Seed)),
	}
}

// Run seeds the network. The database is expected to be empty.
func (s *Seeder) Run(ctx context.Context) (*Report, error) {
	l := pkglog.Ctx(ctx)
	rep := &Report{}

	users, err := s.createUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("create users: %w", err)
	}
	rep.Users = users
	l.Info().Int(pkglog.FieldCount, len(users)).Msg("seed: users created")

	followers, n, err := s.createFollows(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("create follows: %w", err)
	}
	rep.Follows = n
	l.Info().Int(pkglog.FieldCount, n).Msg("seed: follows created")

	posts, err := s.createPosts(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("create posts: %w", err)
	}
	rep.Posts = len(posts)
	l.Info().Int(pkglog.FieldCount, len(posts)).Msg("seed: posts created")

	likes, err := s.createLikes(ctx, users, posts, followers)
	if err != nil {
		return nil, fmt.Errorf("create likes: %w", err)
	}
	rep.Likes = likes
	l.Info().Int(pkglog.FieldCount, likes).Msg("seed: likes created")

	return rep, nil
}

func callerOf(u User) domain.Caller {
	return domain.Caller{ID: u.ID, Username: u.Username}
}

func (s *Seeder) createUsers(ctx context.Context) ([]User, error) {
	n := s.opts.MinUsers + s.rng.IntN(s.opts.MaxUsers-s.opts.MinUsers+1)
	users := make([]User, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("user%d", i)
		rec, err := s.exec.Create(ctx, domain.System(), map[string]any{"model": schema.ModelUser, "username": name})
		if err != nil {
			return nil, err
		}
		id, _ := rec["id"].(int64)
		users = append(users, User{ID: id, Username: name})
	}
	return users, nil
}

// createFollows gives every user a random subset of the others as
// followers. It returns the follower lists keyed by leader id.
func (s *Seeder) createFollows(ctx context.Context, users []User) (map[int64][]User, int, error) {
	followers := make(map[int64][]User, len(users))
	total := 0
	for _, leader := range users {
		others := make([]User, 0, len(users)-1)
		for _, u := range users {
			if u.ID != leader.ID {
				others = append(others, u)
			}
		}
		s.rng.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })
		chosen := others[:s.rng.IntN(len(others)+1)]

		for _, f := range chosen {
			_, err := s.exec.Update(ctx, callerOf(f), mutation.UpdateRequest{
				Data:        []map[string]any{{"model": schema.ModelUser, "id": leader.ID, "followers": f.ID}},
				MultiOption: map[string]any{"followers": string(mutation.ModeAdd)},
			})
			if err != nil {
				return nil, 0, err
			}
		}
		followers[leader.ID] = chosen
		total += len(chosen)
	}
	return followers, total, nil
}

type post struct {
	id     int64
	author User
}

func (s *Seeder) createPosts(ctx context.Context, users []User) ([]post, error) {
	now := s.opts.Now()
	maxAge := int64(s.opts.MaxAge / time.Second)

	var posts []post
	for _, u := range users {
		n := s.rng.IntN(s.opts.MaxPosts + 1)
		for i := 0; i < n; i++ {
			rec, err := s.exec.Create(ctx, callerOf(u), map[string]any{"model": schema.ModelPost, "content": sentence(s.rng)})
			if err != nil {
				return nil, err
			}
			id, _ := rec["id"].(int64)

			ts := now.Add(-time.Duration(1+s.rng.Int64N(maxAge)) * time.Second)
			err = s.store.Atomic(ctx, func(tx repository.Tx) error {
				return tx.Update(schema.ModelPost, id, map[string]any{"timestamp": ts})
			})
			if err != nil {
				return nil, err
			}
			posts = append(posts, post{id: id, author: u})
		}
	}
	return posts, nil
}

// createLikes has between half and nine tenths of each author's followers
// like the post, plus up to five users who do not follow the author.
func (s *Seeder) createLikes(ctx context.Context, users []User, posts []post, followers map[int64][]User) (int, error) {
	total := 0
	for _, p := range posts {
		fans := followers[p.author.ID]
		lb, ub := len(fans)*5/10, len(fans)*9/10
		fans = fans[:lb+s.rng.IntN(ub-lb+1)]

		isFan := make(map[int64]bool, len(fans))
		for _, f := range fans {
			isFan[f.ID] = true
		}
		likers := append([]User(nil), fans...)
		extra := s.rng.IntN(6)
		for _, u := range users {
			if extra == 0 {
				break
			}
			if !isFan[u.ID] {
				likers = append(likers, u)
				extra--
			}
		}

		for _, u := range likers {
			_, err := s.exec.Update(ctx, callerOf(u), mutation.UpdateRequest{
				Data:        []map[string]any{{"model": schema.ModelPost, "id": p.id, "likes": u.ID}},
				MultiOption: map[string]any{"likes": string(mutation.ModeAdd)},
			})
			if err != nil {
				return 0, err
			}
		}
		total += len(likers)
	}
	return total, nil
}
