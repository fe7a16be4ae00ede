package api

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"flierbuilder/internal/database"
)

var errFlierNotFound = errors.New("flier not found")

const archiveListLimit = 50

type flierStore interface {
	Create(ctx context.Context, record *database.Flier) error
	Get(ctx context.Context, id uint) (database.Flier, error)
	List(ctx context.Context, limit int) ([]database.Flier, error)
	SetStatus(ctx context.Context, id uint, status string) error
}

// FlierStore 基于 gorm 存取传单存档。
type FlierStore struct {
	db *gorm.DB
}

func NewFlierStore(db *gorm.DB) *FlierStore {
	return &FlierStore{db: db}
}

func (s *FlierStore) Create(ctx context.Context, record *database.Flier) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("create flier: %w", err)
	}
	return nil
}

func (s *FlierStore) Get(ctx context.Context, id uint) (database.Flier, error) {
	var record database.Flier
	if err := s.db.WithContext(ctx).First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Flier{}, errFlierNotFound
		}
		return database.Flier{}, fmt.Errorf("get flier %d: %w", id, err)
	}
	return record, nil
}

func (s *FlierStore) List(ctx context.Context, limit int) ([]database.Flier, error) {
	if limit <= 0 || limit > archiveListLimit {
		limit = archiveListLimit
	}
	var records []database.Flier
	err := s.db.WithContext(ctx).
		Select("id", "created_at", "updated_at", "session_id", "club_name", "meeting_date", "filename", "pdf_key", "status").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list fliers: %w", err)
	}
	return records, nil
}

func (s *FlierStore) SetStatus(ctx context.Context, id uint, status string) error {
	res := s.db.WithContext(ctx).Model(&database.Flier{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("set flier %d status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return errFlierNotFound
	}
	return nil
}
