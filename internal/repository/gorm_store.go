package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

// isUniqueViolation reports whether err is a unique-constraint violation.
// GORM wraps these as gorm.ErrDuplicatedKey when TranslateError is on; the
// string checks cover drivers without a translator.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "Duplicate entry")
}

// GormStore implements Store using GORM.
type GormStore struct {
	db  *gorm.DB
	reg *schema.Registry
}

// NewGormStore creates a new GORM-backed store for the models in reg.
func NewGormStore(db *gorm.DB, reg *schema.Registry) *GormStore {
	return &GormStore{db: db, reg: reg}
}

// View runs fn in a read-only transaction. On PostgreSQL the transaction is
// REPEATABLE READ so every read inside fn sees the same snapshot.
func (s *GormStore) View(ctx context.Context, fn func(r Reader) error) error {
	var opts *sql.TxOptions
	switch s.db.Dialector.Name() {
	case "postgres":
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	case "mysql":
		opts = &sql.TxOptions{ReadOnly: true}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx, reg: s.reg})
	}, optsOrNone(opts)...)
	return classify(err)
}

// Atomic runs fn in a single read-write transaction.
func (s *GormStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx, reg: s.reg})
	})
	return classify(err)
}

func optsOrNone(opts *sql.TxOptions) []*sql.TxOptions {
	if opts == nil {
		return nil
	}
	return []*sql.TxOptions{opts}
}

// gormTx implements Tx on top of an open GORM transaction.
type gormTx struct {
	db  *gorm.DB
	reg *schema.Registry
}

func notFound(model string, id int64) error {
	return domain.Wrap(domain.KindNotFound, ErrRecordNotFound, fmt.Sprintf("%s %d does not exist", model, id))
}

func tableModel(model string) (any, error) {
	switch model {
	case schema.ModelUser:
		return &domain.UserModel{}, nil
	case schema.ModelPost:
		return &domain.PostModel{}, nil
	}
	return nil, domain.Errorf(domain.KindUnknownModel, "model of name %q has no table", model)
}

func edgeModel(edge string) (any, error) {
	switch edge {
	case schema.EdgeFollow:
		return &domain.FollowModel{}, nil
	case schema.EdgeLike:
		return &domain.LikeModel{}, nil
	}
	return nil, domain.Errorf(domain.KindInvalidField, "edge %q has no table", edge)
}

func userRecord(m *domain.UserModel) schema.Record {
	return schema.Record{
		Model: schema.ModelUser,
		ID:    m.ID,
		Values: map[string]any{
			"id":             m.ID,
			"username":       m.Username,
			"date_joined":    m.DateJoined.UTC(),
			"follower_count": m.FollowerCount,
			"leader_count":   m.LeaderCount,
		},
	}
}

func postRecord(m *domain.PostModel) schema.Record {
	return schema.Record{
		Model: schema.ModelPost,
		ID:    m.ID,
		Values: map[string]any{
			"id":         m.ID,
			"user_id":    m.UserID,
			"content":    m.Content,
			"timestamp":  m.Timestamp.UTC(),
			"like_count": m.LikeCount,
		},
	}
}

func (t *gormTx) Records(model string) ([]schema.Record, error) {
	switch model {
	case schema.ModelUser:
		var rows []domain.UserModel
		if err := t.db.Order("id").Find(&rows).Error; err != nil {
			return nil, classify(err)
		}
		out := make([]schema.Record, len(rows))
		for i := range rows {
			out[i] = userRecord(&rows[i])
		}
		return out, nil
	case schema.ModelPost:
		var rows []domain.PostModel
		if err := t.db.Order("id").Find(&rows).Error; err != nil {
			return nil, classify(err)
		}
		out := make([]schema.Record, len(rows))
		for i := range rows {
			out[i] = postRecord(&rows[i])
		}
		return out, nil
	}
	_, err := tableModel(model)
	return nil, err
}

func (t *gormTx) Record(model string, id int64) (schema.Record, error) {
	return t.record(t.db, model, id)
}

// RecordForUpdate locks the row with SELECT ... FOR UPDATE. SQLite has no row
// locks; its single writer already serializes the transaction.
func (t *gormTx) RecordForUpdate(model string, id int64) (schema.Record, error) {
	db := t.db
	if db.Dialector.Name() != "sqlite" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return t.record(db, model, id)
}

func (t *gormTx) record(db *gorm.DB, model string, id int64) (schema.Record, error) {
	var err error
	switch model {
	case schema.ModelUser:
		var m domain.UserModel
		if err = db.First(&m, "id = ?", id).Error; err == nil {
			return userRecord(&m), nil
		}
	case schema.ModelPost:
		var m domain.PostModel
		if err = db.First(&m, "id = ?", id).Error; err == nil {
			return postRecord(&m), nil
		}
	default:
		_, err = tableModel(model)
		return schema.Record{}, err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return schema.Record{}, notFound(model, id)
	}
	return schema.Record{}, classify(err)
}

func (t *gormTx) edge(name string) (schema.Edge, any, error) {
	e, ok := t.reg.Edge(name)
	if !ok {
		return schema.Edge{}, nil, domain.Errorf(domain.KindInvalidField, "edge %q does not exist", name)
	}
	m, err := edgeModel(name)
	return e, m, err
}

func (t *gormTx) Pairs(edge string) ([]schema.Pair, error) {
	e, m, err := t.edge(edge)
	if err != nil {
		return nil, err
	}
	var rows []pairRow
	err = t.db.Model(m).
		Select(e.LeftCol + " AS l, " + e.RightCol + " AS r").
		Order(e.LeftCol).Order(e.RightCol).
		Scan(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	pairs := make([]schema.Pair, len(rows))
	for i, row := range rows {
		pairs[i] = schema.Pair{Left: row.L, Right: row.R}
	}
	return pairs, nil
}

type pairRow struct {
	L int64 `gorm:"column:l"`
	R int64 `gorm:"column:r"`
}

func (t *gormTx) HasPair(edge string, p schema.Pair) (bool, error) {
	e, m, err := t.edge(edge)
	if err != nil {
		return false, err
	}
	var count int64
	err = t.db.Model(m).
		Where(e.LeftCol+" = ? AND "+e.RightCol+" = ?", p.Left, p.Right).
		Count(&count).Error
	if err != nil {
		return false, classify(err)
	}
	return count > 0, nil
}

func (t *gormTx) CountPairs(edge string, side schema.Side, id int64) (int64, error) {
	e, m, err := t.edge(edge)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := t.db.Model(m).Where(e.Column(side)+" = ?", id).Count(&count).Error; err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func (t *gormTx) Insert(model string, values map[string]any) (int64, error) {
	var (
		row any
		id  func() int64
	)
	switch model {
	case schema.ModelUser:
		m := &domain.UserModel{
			Username:   stringValue(values["username"]),
			DateJoined: timeValue(values["date_joined"]),
		}
		row, id = m, func() int64 { return m.ID }
	case schema.ModelPost:
		m := &domain.PostModel{
			UserID:    intValue(values["user_id"]),
			Content:   stringValue(values["content"]),
			Timestamp: timeValue(values["timestamp"]),
		}
		row, id = m, func() int64 { return m.ID }
	default:
		_, err := tableModel(model)
		return 0, err
	}

	if err := t.db.Omit(clause.Associations).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, classify(err)
	}
	return id(), nil
}

func (t *gormTx) Update(model string, id int64, values map[string]any) error {
	m, err := tableModel(model)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	if err := t.db.Model(m).Where("id = ?", id).Updates(values).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return classify(err)
	}
	return nil
}

// InsertPair relies on the composite primary key: a second insert of the
// same pair affects no rows, so concurrent adds report true at most once.
func (t *gormTx) InsertPair(edge string, p schema.Pair) (bool, error) {
	var row any
	switch edge {
	case schema.EdgeFollow:
		row = &domain.FollowModel{FollowerID: p.Left, LeaderID: p.Right}
	case schema.EdgeLike:
		row = &domain.LikeModel{UserID: p.Left, PostID: p.Right}
	default:
		_, _, err := t.edge(edge)
		return false, err
	}
	result := t.db.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(row)
	if result.Error != nil {
		return false, classify(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (t *gormTx) DeletePair(edge string, p schema.Pair) (bool, error) {
	e, m, err := t.edge(edge)
	if err != nil {
		return false, err
	}
	result := t.db.
		Where(e.LeftCol+" = ? AND "+e.RightCol+" = ?", p.Left, p.Right).
		Delete(m)
	if result.Error != nil {
		return false, classify(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (t *gormTx) AddToCounter(model string, id int64, field string, delta int64) error {
	m, err := tableModel(model)
	if err != nil {
		return err
	}
	result := t.db.Model(m).Where("id = ?", id).
		UpdateColumn(field, gorm.Expr(field+" + ?", delta))
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(model, id)
	}
	return nil
}

func (t *gormTx) SetCounter(model string, id int64, field string, value int64) error {
	m, err := tableModel(model)
	if err != nil {
		return err
	}
	result := t.db.Model(m).Where("id = ?", id).UpdateColumn(field, value)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(model, id)
	}
	return nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func intValue(v any) int64 {
	i, _ := v.(int64)
	return i
}

func timeValue(v any) time.Time {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return time.Now().UTC()
}

// Ensure interfaces are satisfied at compile time.
var (
	_ Store = (*GormStore)(nil)
	_ Tx    = (*gormTx)(nil)
)
