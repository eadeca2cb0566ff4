package storage

import (
	"context"

	"gorm.io/gorm"

	"bookaudio-server-go/internal/platform/errors"
)

// BookRepository reads and updates book records, including the audio summary
// fields maintained by the batch scheduler.
type BookRepository interface {
	FindByID(ctx context.Context, id string) (*Book, error)
	Save(ctx context.Context, book *Book) error
	UpdateAudioStatus(ctx context.Context, id, status string) error
	UpdateAudioSummary(ctx context.Context, id string, hasAudio bool, cost, duration float64) error
}

// ChapterRepository reads chapter text for synthesis.
type ChapterRepository interface {
	FindByID(ctx context.Context, id string) (*Chapter, error)
	ListByBookID(ctx context.Context, bookID string) ([]*Chapter, error)
	Save(ctx context.Context, chapter *Chapter) error
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) FindByID(ctx context.Context, id string) (*Book, error) {
	var model Book
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindStorage, "book.find_by_id", "failed to find book", err)
	}
	return &model, nil
}

func (r *bookRepository) Save(ctx context.Context, book *Book) error {
	if err := r.db.WithContext(ctx).Save(book).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "book.save", "failed to save book", err)
	}
	return nil
}

func (r *bookRepository) UpdateAudioStatus(ctx context.Context, id, status string) error {
	err := r.db.WithContext(ctx).Model(&Book{}).Where("id = ?", id).
		Update("audio_status", status).Error
	if err != nil {
		return errors.Wrap(errors.KindStorage, "book.update_audio_status", "failed to update status", err)
	}
	return nil
}

func (r *bookRepository) UpdateAudioSummary(ctx context.Context, id string, hasAudio bool, cost, duration float64) error {
	err := r.db.WithContext(ctx).Model(&Book{}).Where("id = ?", id).
		Updates(map[string]any{
			"has_audio":      hasAudio,
			"audio_cost":     cost,
			"audio_duration": duration,
		}).Error
	if err != nil {
		return errors.Wrap(errors.KindStorage, "book.update_audio_summary", "failed to update summary", err)
	}
	return nil
}

type chapterRepository struct {
	db *gorm.DB
}

func NewChapterRepository(db *gorm.DB) ChapterRepository {
	return &chapterRepository{db: db}
}

func (r *chapterRepository) FindByID(ctx context.Context, id string) (*Chapter, error) {
	var model Chapter
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindStorage, "chapter.find_by_id", "failed to find chapter", err)
	}
	return &model, nil
}

func (r *chapterRepository) ListByBookID(ctx context.Context, bookID string) ([]*Chapter, error) {
	var models []*Chapter
	err := r.db.WithContext(ctx).Where("book_id = ?", bookID).Order("seq asc").Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "chapter.list_by_book", "failed to list chapters", err)
	}
	return models, nil
}

func (r *chapterRepository) Save(ctx context.Context, chapter *Chapter) error {
	if err := r.db.WithContext(ctx).Save(chapter).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "chapter.save", "failed to save chapter", err)
	}
	return nil
}
