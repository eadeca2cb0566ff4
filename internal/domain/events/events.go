package events

import (
	evbus "github.com/asaskevich/EventBus"
)

// Topics published by the audio pipeline.
const (
	TopicJobStarted      = "audio.job.started"
	TopicJobCompleted    = "audio.job.completed"
	TopicJobFailed       = "audio.job.failed"
	TopicChapterComplete = "audio.chapter.completed"
	TopicCacheSweep      = "audio.cache.swept"
)

// JobEvent is the payload published on the audio.job.* topics.
type JobEvent struct {
	JobID     string
	BookID    string
	Status    string
	Succeeded int
	Failed    int
	CostUSD   float64
}

// ChapterEvent is published once per finished chapter inside a batch job.
type ChapterEvent struct {
	BookID     string
	ChapterID  string
	ArtifactID string
	CostUSD    float64
	Err        string
}

// SweepEvent reports one maintenance sweep round.
type SweepEvent struct {
	Removed int
	Failed  int
}

// Bus wraps the shared process-wide event bus so publishers and subscribers
// agree on topics and payload types.
type Bus struct {
	bus evbus.Bus
}

func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

func (b *Bus) PublishJob(topic string, event JobEvent) {
	b.bus.Publish(topic, event)
}

func (b *Bus) PublishChapter(event ChapterEvent) {
	b.bus.Publish(TopicChapterComplete, event)
}

func (b *Bus) PublishSweep(event SweepEvent) {
	b.bus.Publish(TopicCacheSweep, event)
}

func (b *Bus) SubscribeJob(topic string, fn func(JobEvent)) error {
	return b.bus.Subscribe(topic, fn)
}

func (b *Bus) SubscribeChapter(fn func(ChapterEvent)) error {
	return b.bus.Subscribe(TopicChapterComplete, fn)
}

func (b *Bus) SubscribeSweep(fn func(SweepEvent)) error {
	return b.bus.Subscribe(TopicCacheSweep, fn)
}

func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}
