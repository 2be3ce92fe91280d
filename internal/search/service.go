package search

import (
	"log"
)

// Service is the facade over Meilisearch. Indexing is fire-and-forget;
// Search reports ok=false when the index is unavailable so the caller
// can fall back to scanning the entity store directly.
type Service struct {
	meili *Meili
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili) *Service {
	return &Service{meili: meili}
}

// Search queries Meilisearch. ok is false when Meilisearch is not
// configured or unhealthy.
func (s *Service) Search(q Query) (results []MessageRecord, total int, ok bool) {
	if s.meili == nil || !s.meili.Healthy() {
		return nil, 0, false
	}
	results, total, err := s.meili.Search(q)
	if err != nil {
		log.Printf("search: meilisearch error, caller falls back to store scan: %v", err)
		return nil, 0, false
	}
	return results, total, true
}

// IndexMessage indexes a message (fire-and-forget).
func (s *Service) IndexMessage(rec MessageRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexMessage(rec); err != nil {
			log.Printf("search: index message %d: %v", rec.ID, err)
		}
	}()
}

// DeleteMessage removes a message from the index (fire-and-forget).
func (s *Service) DeleteMessage(id int) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteMessage(id); err != nil {
			log.Printf("search: delete message %d: %v", id, err)
		}
	}()
}

// ReindexAll replaces the index contents with the given records.
// Called after a snapshot restore.
func (s *Service) ReindexAll(records []MessageRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.DeleteAll(); err != nil {
		log.Printf("search: clear index: %v", err)
		return
	}
	if err := s.meili.IndexMessages(records); err != nil {
		log.Printf("search: reindex messages: %v", err)
	}
}

// Clear empties the index (fire-and-forget). Called on workspace reset.
func (s *Service) Clear() {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteAll(); err != nil {
			log.Printf("search: clear index: %v", err)
		}
	}()
}
