package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/runforge/runforge/internal/model"
)

type gormJobStore struct {
	db *gorm.DB
}

// NewGormJobStore returns a JobStore backed by db.
func NewGormJobStore(db *gorm.DB) JobStore {
	return &gormJobStore{db: db}
}

func (s *gormJobStore) Create(ctx context.Context, j *model.Job) error {
	if j.UUID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return err
		}
		j.UUID = id
	}
	return s.db.WithContext(ctx).Create(j).Error
}

func (s *gormJobStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var j model.Job
	if err := s.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (s *gormJobStore) GetByUUID(ctx context.Context, jobUUID uuid.UUID) (*model.Job, error) {
	var j model.Job
	if err := s.db.WithContext(ctx).First(&j, "uuid = ?", jobUUID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (s *gormJobStore) Update(ctx context.Context, j *model.Job) error {
	res := s.db.WithContext(ctx).Save(j)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus performs a partial update of the status column only, so it
// never clobbers concurrent writers touching other Job fields.
func (s *gormJobStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.JobStatus) error {
	res := s.db.WithContext(ctx).Model(&model.Job{}).Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormJobStore) List(ctx context.Context, opts ListOptions) ([]*model.Job, error) {
	var out []*model.Job
	q := s.db.WithContext(ctx).Order("created_at desc")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit).Offset(opts.Offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByOwner orders by updated_at desc — the caller (internal/wsapi's
// replay-on-subscribe snapshot) wants the most recently *modified* jobs, not
// the most recently created ones, since a status transition is itself a
// modification a subscriber needs to see (spec.md §6).
func (s *gormJobStore) ListByOwner(ctx context.Context, ownerUsername string, opts ListOptions) ([]*model.Job, error) {
	var out []*model.Job
	q := s.db.WithContext(ctx).Where("owner_username = ?", ownerUsername).Order("updated_at desc")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit).Offset(opts.Offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *gormJobStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&model.Job{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
