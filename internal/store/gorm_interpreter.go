package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/runforge/runforge/internal/model"
)

type gormInterpreterStore struct {
	db *gorm.DB
}

// NewGormInterpreterStore returns an InterpreterStore backed by db.
func NewGormInterpreterStore(db *gorm.DB) InterpreterStore {
	return &gormInterpreterStore{db: db}
}

func (s *gormInterpreterStore) Create(ctx context.Context, i *model.Interpreter) error {
	if err := s.db.WithContext(ctx).Create(i).Error; err != nil {
		return err
	}
	return nil
}

func (s *gormInterpreterStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Interpreter, error) {
	var i model.Interpreter
	if err := s.db.WithContext(ctx).First(&i, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &i, nil
}

func (s *gormInterpreterStore) List(ctx context.Context, opts ListOptions) ([]*model.Interpreter, error) {
	var out []*model.Interpreter
	q := s.db.WithContext(ctx).Order("created_at desc")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit).Offset(opts.Offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *gormInterpreterStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&model.Interpreter{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
