package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/runforge/runforge/internal/model"
)

type gormLogStore struct {
	db *gorm.DB
}

// NewGormLogStore returns a LogStore backed by db.
func NewGormLogStore(db *gorm.DB) LogStore {
	return &gormLogStore{db: db}
}

func (s *gormLogStore) BulkCreate(ctx context.Context, logs []*model.Log) error {
	if len(logs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&logs).Error
}

func (s *gormLogStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Log, error) {
	var out []*model.Log
	if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("time asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type gormResultStore struct {
	db *gorm.DB
}

// NewGormResultStore returns a ResultStore backed by db.
func NewGormResultStore(db *gorm.DB) ResultStore {
	return &gormResultStore{db: db}
}

func (s *gormResultStore) Create(ctx context.Context, r *model.Result) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *gormResultStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Result, error) {
	var out []*model.Result
	if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("created_at asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
