package storage

import "time"

// Audio generation status values persisted on the book record.
const (
	AudioStatusPending    = "PENDING"
	AudioStatusProcessing = "PROCESSING"
	AudioStatusCompleted  = "COMPLETED"
	AudioStatusFailed     = "FAILED"
)

type Book struct {
	ID            string `gorm:"primaryKey"`
	Title         string
	Author        string
	HasAudio      bool
	AudioStatus   string
	AudioCost     float64
	AudioDuration float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Chapter struct {
	ID      string `gorm:"primaryKey"`
	BookID  string `gorm:"index"`
	Seq     int
	Title   string
	Content string
}

// AudioArtifact is the durable record for one synthesized (chapter, voice)
// result. The file on disk is the source of truth for the bytes; the record
// carries everything needed to serve and price it.
type AudioArtifact struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	BookID         string    `gorm:"index" json:"book_id"`
	ChapterID      string    `gorm:"index" json:"chapter_id"`
	FilePath       string    `json:"-"`
	SizeBytes      int64     `json:"size_bytes"`
	Duration       float64   `json:"duration"`
	ContentHash    string    `json:"content_hash"`
	Provider       string    `json:"provider"`
	Voice          string    `json:"voice"`
	Language       string    `json:"language"`
	Cost           float64   `json:"cost_usd"`
	SampleRate     int       `json:"sample_rate"`
	BitRate        int       `json:"bit_rate"`
	Format         string    `json:"format"`
	CDNURL         string    `json:"cdn_url,omitempty"`
	CacheExpiresAt time.Time `gorm:"index" json:"cache_expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}
