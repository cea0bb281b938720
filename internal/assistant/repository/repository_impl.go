package repository

import (
	"context"

	"github.com/smallbiznis/oceandata/internal/assistant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertChat(ctx context.Context, db *gorm.DB, msg *domain.ChatMessage) error {
	return db.WithContext(ctx).Create(msg).Error
}

func (r *repo) ListChats(ctx context.Context, db *gorm.DB, limit int) ([]domain.ChatMessage, error) {
	var items []domain.ChatMessage
	err := db.WithContext(ctx).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertIdentification(ctx context.Context, db *gorm.DB, item *domain.SpeciesIdentification) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repo) ListIdentifications(ctx context.Context, db *gorm.DB, limit int) ([]domain.SpeciesIdentification, error) {
	var items []domain.SpeciesIdentification
	err := db.WithContext(ctx).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
