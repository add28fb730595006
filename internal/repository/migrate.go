package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
	"github.com/edi-spaghetti/cs50w-network/pkg/database"
)

// Migrate creates or updates the users, posts, follows and likes tables.
func Migrate(db *gorm.DB) error {
	if err := database.AutoMigrate(db, domain.AllModels()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}

// OpenMemory opens a migrated in-memory SQLite database. Connections with
// the same name share one database.
func OpenMemory(name string) (*gorm.DB, error) {
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

type tabler interface {
	TableName() string
}

// EdgeForTable returns the edge stored in table.
func EdgeForTable(reg *schema.Registry, table string) (schema.Edge, bool) {
	for _, e := range reg.Edges() {
		m, err := edgeModel(e.Name)
		if err != nil {
			continue
		}
		if t, ok := m.(tabler); ok && t.TableName() == table {
			return e, true
		}
	}
	return schema.Edge{}, false
}
