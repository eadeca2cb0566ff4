package storage

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bookaudio-server-go/internal/platform/errors"
)

// ArtifactRepository persists audio artifact records. Saves upsert by id so
// regeneration supersedes rather than duplicates.
type ArtifactRepository interface {
	Save(ctx context.Context, artifact *AudioArtifact) error
	FindByID(ctx context.Context, id string) (*AudioArtifact, error)
	FindByChapterVoice(ctx context.Context, chapterID, voice string) (*AudioArtifact, error)
	ListByBookID(ctx context.Context, bookID string) ([]*AudioArtifact, error)
	ListExpired(ctx context.Context, now time.Time) ([]*AudioArtifact, error)
	Delete(ctx context.Context, id string) error
}

type artifactRepository struct {
	db *gorm.DB
}

func NewArtifactRepository(db *gorm.DB) ArtifactRepository {
	return &artifactRepository{db: db}
}

func (r *artifactRepository) Save(ctx context.Context, artifact *AudioArtifact) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(artifact).Error
	if err != nil {
		return errors.Wrap(errors.KindStorage, "artifact.save", "failed to save artifact", err)
	}
	return nil
}

func (r *artifactRepository) FindByID(ctx context.Context, id string) (*AudioArtifact, error) {
	var model AudioArtifact
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindStorage, "artifact.find_by_id", "failed to find artifact", err)
	}
	return &model, nil
}

func (r *artifactRepository) FindByChapterVoice(ctx context.Context, chapterID, voice string) (*AudioArtifact, error) {
	var model AudioArtifact
	err := r.db.WithContext(ctx).
		Where("chapter_id = ? AND voice = ?", chapterID, voice).
		Order("created_at desc").
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindStorage, "artifact.find_by_chapter_voice", "failed to find artifact", err)
	}
	return &model, nil
}

func (r *artifactRepository) ListByBookID(ctx context.Context, bookID string) ([]*AudioArtifact, error) {
	var models []*AudioArtifact
	err := r.db.WithContext(ctx).Where("book_id = ?", bookID).Order("created_at asc").Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "artifact.list_by_book", "failed to list artifacts", err)
	}
	return models, nil
}

func (r *artifactRepository) ListExpired(ctx context.Context, now time.Time) ([]*AudioArtifact, error) {
	var models []*AudioArtifact
	err := r.db.WithContext(ctx).Where("cache_expires_at < ?", now).Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "artifact.list_expired", "failed to list expired artifacts", err)
	}
	return models, nil
}

func (r *artifactRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Delete(&AudioArtifact{}, "id = ?", id).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "artifact.delete", "failed to delete artifact", err)
	}
	return nil
}
