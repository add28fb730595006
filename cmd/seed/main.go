package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/edi-spaghetti/cs50w-network/internal/config"
	"github.com/edi-spaghetti/cs50w-network/internal/mutation"
	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
	"github.com/edi-spaghetti/cs50w-network/internal/seed"
	"github.com/edi-spaghetti/cs50w-network/pkg/database"
	"github.com/edi-spaghetti/cs50w-network/pkg/jwt"
	pkglog "github.com/edi-spaghetti/cs50w-network/pkg/log"
)

var opts = seed.DefaultOptions()

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill an empty network database with reproducible demo data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	f := rootCmd.Flags()
	f.Uint64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	f.IntVar(&opts.MinUsers, "min-users", opts.MinUsers, "minimum number of users")
	f.IntVar(&opts.MaxUsers, "max-users", opts.MaxUsers, "maximum number of users")
	f.IntVar(&opts.MaxPosts, "max-posts", opts.MaxPosts, "maximum posts per user")
	f.DurationVar(&opts.MaxAge, "max-age", opts.MaxAge, "how far back post timestamps may go")
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      true,
		ServiceName: "network-seed",
		Output:      os.Stderr,
	})

	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("JWT_SECRET is required to mint demo sessions: %w", err)
	}

	db, err := database.New(cfg.Database.Options())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	if err := repository.Migrate(db); err != nil {
		return err
	}

	reg := schema.Default()
	store := repository.NewGormStore(db, reg)
	rep, err := seed.New(mutation.NewExecutor(reg, store), store, opts).Run(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tUSERNAME\tSESSION TOKEN\n")
	for _, u := range rep.Users {
		token, _, err := tokens.GenerateToken(u.ID, u.Username, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", u.ID, u.Username, token)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d users, %d follows, %d posts, %d likes\n", len(rep.Users), rep.Follows, rep.Posts, rep.Likes)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
