package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxMessages = "huddle_messages"

// Meili indexes and searches messages via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the message
// index. The client starts unhealthy if the initial connection fails
// and recovers via the background health loop.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxMessages,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxMessages, err)
	}

	index := m.client.Index(idxMessages)
	filterable := []interface{}{"channelId", "senderId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxMessages, err)
	}
	searchable := []string{"body"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxMessages, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the message index restricted to the given channels.
func (m *Meili) Search(q Query) ([]MessageRecord, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	if len(q.ChannelIDs) == 0 {
		return nil, 0, nil
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 50
	}

	ids := make([]string, len(q.ChannelIDs))
	for i, id := range q.ChannelIDs {
		ids[i] = strconv.Itoa(id)
	}

	resp, err := m.client.Index(idxMessages).Search(q.Text, &meili.SearchRequest{
		Limit:  limit,
		Filter: fmt.Sprintf("channelId IN [%s]", strings.Join(ids, ", ")),
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]MessageRecord, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToRecord(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func hitToRecord(hit meili.Hit) MessageRecord {
	var r MessageRecord
	r.ID = decodeInt(hit, "id")
	r.ChannelID = decodeInt(hit, "channelId")
	r.SenderID = decodeInt(hit, "senderId")
	r.Body = decodeString(hit, "body")
	r.CreatedAt = int64(decodeInt(hit, "createdAt"))
	return r
}

func decodeInt(hit meili.Hit, key string) int {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	return 0
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// IndexMessage adds or updates a message in the search index.
func (m *Meili) IndexMessage(rec MessageRecord) error {
	_, err := m.client.Index(idxMessages).AddDocuments([]MessageRecord{rec}, nil)
	return err
}

// IndexMessages bulk-indexes messages.
func (m *Meili) IndexMessages(records []MessageRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxMessages).AddDocuments(records, nil)
	return err
}

// DeleteMessage removes a message from the search index.
func (m *Meili) DeleteMessage(id int) error {
	_, err := m.client.Index(idxMessages).DeleteDocument(strconv.Itoa(id), nil)
	return err
}

// DeleteAll clears the whole message index.
func (m *Meili) DeleteAll() error {
	_, err := m.client.Index(idxMessages).DeleteAllDocuments(nil)
	return err
}
