// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnknownSender is stored when a message has no sender.
const UnknownSender = "Unknown"

// RawMessage is one record of the chat corpus as it arrives from the source.
type RawMessage struct {
	ID        string
	Sender    string
	Message   string
	Timestamp string
	IsSystem  bool
}

// rawMessageJSON mirrors the corpus wire shape. Pointers let null and absent collapse to defaults.
type rawMessageJSON struct {
	ID        json.RawMessage `json:"id"`
	Sender    *string         `json:"sender"`
	Message   *string         `json:"message"`
	Timestamp *string         `json:"timestamp"`
	IsSystem  *bool           `json:"is_system"`
}

// UnmarshalJSON accepts string or numeric ids and defaults missing optional fields.
func (m *RawMessage) UnmarshalJSON(data []byte) error {
	var raw rawMessageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := decodeID(raw.ID)
	if err != nil {
		return err
	}

	*m = RawMessage{ID: id}
	if raw.Sender != nil {
		m.Sender = *raw.Sender
	}
	if raw.Message != nil {
		m.Message = *raw.Message
	}
	if raw.Timestamp != nil {
		m.Timestamp = *raw.Timestamp
	}
	if raw.IsSystem != nil {
		m.IsSystem = *raw.IsSystem
	}
	return nil
}

// MarshalJSON writes the corpus wire shape back out.
func (m RawMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string `json:"id"`
		Sender    string `json:"sender,omitempty"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp,omitempty"`
		IsSystem  bool   `json:"is_system"`
	}{m.ID, m.Sender, m.Message, m.Timestamp, m.IsSystem})
}

func decodeID(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("missing id")
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		if s == "" {
			return "", fmt.Errorf("empty id")
		}
		return s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", fmt.Errorf("id must be a string or number: %w", err)
		}
		return n.String(), nil
	}
}

// Indexable reports whether the message carries text worth retrieving.
func (m RawMessage) Indexable() bool {
	return m.Message != ""
}

// IndexRecord derives the stored record for a message.
// The document text and metadata defaults are relied on by every consumer of the index.
func (m RawMessage) IndexRecord() IndexRecord {
	sender := m.Sender
	if sender == "" {
		sender = UnknownSender
	}
	return IndexRecord{
		ID:       m.ID,
		Document: sender + ": " + m.Message,
		Metadata: Metadata{
			Sender:     sender,
			Timestamp:  m.Timestamp,
			IsSystem:   m.IsSystem,
			OriginalID: m.ID,
		},
	}
}

// Metadata is the structured part of an indexed message used for filtering.
type Metadata struct {
	Sender     string `json:"sender"`
	Timestamp  string `json:"timestamp"`
	IsSystem   bool   `json:"is_system"`
	OriginalID string `json:"original_id"`
}

// IndexRecord is a message as stored in the vector index.
type IndexRecord struct {
	ID        string
	Document  string
	Metadata  Metadata
	Embedding []float32 // populated by the ingestion pipeline
}

// Match is one nearest-neighbour hit.
type Match struct {
	ID       string   `json:"id"`
	Document string   `json:"document"`
	Distance float64  `json:"distance"`
	Metadata Metadata `json:"metadata"`
}

// Score converts the distance for display.
// Only meaningful for cosine distance in [0, 2]; other metrics need their own conversion.
func (m Match) Score() float64 {
	return 1 - m.Distance
}

// QueryResult is the answer to one query, ranked by ascending distance.
type QueryResult struct {
	Query    string  `json:"query"`
	Prompt   string  `json:"prompt"`
	Response string  `json:"response"`
	Matches  []Match `json:"matches"`
}

// Context returns the retrieved documents in rank order.
func (r *QueryResult) Context() []string {
	out := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = m.Document
	}
	return out
}

// Distances returns the raw distances in rank order.
func (r *QueryResult) Distances() []float64 {
	out := make([]float64, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = m.Distance
	}
	return out
}

// Metadatas returns the metadata of each hit in rank order.
func (r *QueryResult) Metadatas() []Metadata {
	out := make([]Metadata, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = m.Metadata
	}
	return out
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Total   int `json:"total"`   // messages received
	Skipped int `json:"skipped"` // messages without text
	Indexed int `json:"indexed"` // records written during this run; a repeated id counts once per write
	Resumed int `json:"resumed"` // records skipped because a checkpoint covered them
	Batches int `json:"batches"` // batches written during this run
}

// EvalRow is one ranked line of an evaluation report.
type EvalRow struct {
	Rank    int     `json:"rank"`
	Score   float64 `json:"score"`
	Sender  string  `json:"sender"`
	Preview string  `json:"preview"`
}

// EvalReport is the diagnostic view of a query's ranking.
type EvalReport struct {
	Query        string    `json:"query"`
	Expected     string    `json:"expected,omitempty"`
	ExpectedRank int       `json:"expected_rank"` // 1-based; 0 when expected is empty or not retrieved
	Rows         []EvalRow `json:"rows"`
}

// Preview keeps the first n runes of a document followed by an ellipsis.
func Preview(doc string, n int) string {
	runes := []rune(doc)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes) + "..."
}
