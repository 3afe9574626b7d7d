package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/runforge/runforge/internal/model"
)

type gormServerStore struct {
	db *gorm.DB
}

// NewGormServerStore returns a ServerStore backed by db.
func NewGormServerStore(db *gorm.DB) ServerStore {
	return &gormServerStore{db: db}
}

func (s *gormServerStore) Create(ctx context.Context, srv *model.Server) error {
	return s.db.WithContext(ctx).Create(srv).Error
}

func (s *gormServerStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Server, error) {
	var srv model.Server
	if err := s.db.WithContext(ctx).First(&srv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &srv, nil
}

func (s *gormServerStore) List(ctx context.Context, opts ListOptions) ([]*model.Server, error) {
	var out []*model.Server
	q := s.db.WithContext(ctx).Order("created_at desc")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit).Offset(opts.Offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *gormServerStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&model.Server{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddInterpreter is idempotent: it first checks membership so a repeated
// grant does not insert a duplicate join row.
func (s *gormServerStore) AddInterpreter(ctx context.Context, serverID, interpreterID uuid.UUID) error {
	ok, err := s.HasInterpreter(ctx, serverID, interpreterID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	join := &model.ServerInterpreter{ServerID: serverID, InterpreterID: interpreterID}
	return s.db.WithContext(ctx).Create(join).Error
}

func (s *gormServerStore) RemoveInterpreter(ctx context.Context, serverID, interpreterID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("server_id = ? AND interpreter_id = ?", serverID, interpreterID).
		Delete(&model.ServerInterpreter{}).Error
}

func (s *gormServerStore) HasInterpreter(ctx context.Context, serverID, interpreterID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.ServerInterpreter{}).
		Where("server_id = ? AND interpreter_id = ?", serverID, interpreterID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListInterpreters loads join rows then fetches Interpreters explicitly —
// GORM cannot resolve this many-to-many automatically because both sides
// are keyed by uuid.UUID.
func (s *gormServerStore) ListInterpreters(ctx context.Context, serverID uuid.UUID) ([]*model.Interpreter, error) {
	var joins []model.ServerInterpreter
	if err := s.db.WithContext(ctx).Where("server_id = ?", serverID).Find(&joins).Error; err != nil {
		return nil, err
	}
	if len(joins) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(joins))
	for i, j := range joins {
		ids[i] = j.InterpreterID
	}
	var out []*model.Interpreter
	if err := s.db.WithContext(ctx).Clauses(clause.OrderBy{Expression: clause.Expr{SQL: "created_at desc"}}).
		Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
