package store

import (
	"encoding/json"
	"fmt"
)

// ProgressDocument is the flat target → last message ID mapping persisted by
// FileStore. Keys are decimal target IDs.
type ProgressDocument map[string]int

// Get returns the offset stored for key.
func (d ProgressDocument) Get(key string) (int, bool) {
	id, ok := d[key]
	return id, ok
}

// Set stores the offset for key.
func (d ProgressDocument) Set(key string, messageID int) {
	d[key] = messageID
}

// Merge copies every entry of other into d, replacing entries with the same key.
func (d ProgressDocument) Merge(other ProgressDocument) {
	for k, v := range other {
		d[k] = v
	}
}

// Clone returns an independent copy.
func (d ProgressDocument) Clone() ProgressDocument {
	out := make(ProgressDocument, len(d))
	out.Merge(d)
	return out
}

// DecodeProgressDocument parses a JSON progress document. An empty input is an
// empty document.
func DecodeProgressDocument(data []byte) (ProgressDocument, error) {
	doc := ProgressDocument{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode progress document: %w", err)
	}
	if doc == nil {
		// a literal null
		doc = ProgressDocument{}
	}
	return doc, nil
}

// Encode renders the document as indented JSON.
func (d ProgressDocument) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode progress document: %w", err)
	}
	return append(data, '\n'), nil
}
