package host

import (
	"bytes"
	"encoding/json"
	"log"
)

// DecodeChatBody normalizes a chat fetch response into a Document.
//
// The host's fetch endpoints are polymorphic: the reply may be an array
// whose first element is an envelope record, a bare message array, a
// single envelope object, or an empty object meaning "no data yet".
// Every observed shape is tolerated; anything unrecognized degrades to an
// empty document with a warning instead of failing.
func DecodeChatBody(data []byte) *Document {
	doc := &Document{Metadata: NewMetadata(), Messages: []Message{}}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		log.Printf("[host] chat body empty, using default document")
		return doc
	}

	switch trimmed[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			log.Printf("[host] chat body is not a valid array: %v", err)
			return doc
		}
		if len(elems) == 0 {
			return doc
		}
		if isEnvelope(elems[0]) {
			doc.Metadata = metadataFromHead(elems[0])
			doc.Messages = decodeMessages(elems[1:])
			return doc
		}
		doc.Messages = decodeMessages(elems)
		return doc

	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			log.Printf("[host] chat body is not a valid object: %v", err)
			return doc
		}
		if len(fields) == 0 {
			// "No data yet" shape for freshly created chats.
			return doc
		}
		if isEnvelope(trimmed) {
			doc.Metadata = metadataFromHead(trimmed)
			return doc
		}
		log.Printf("[host] chat body object has unknown shape, using default document")
		return doc

	default:
		log.Printf("[host] chat body has unknown shape, using default document")
		return doc
	}
}

// isEnvelope reports whether a record looks like a chat-file head record.
func isEnvelope(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return false
	}
	for _, key := range []string{"user_name", "character_name", "create_date", "chat_metadata"} {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}

// metadataFromHead extracts the metadata document from a head record:
// the nested chat_metadata object when present, otherwise the head
// record itself.
func metadataFromHead(raw json.RawMessage) *Metadata {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return NewMetadata()
	}
	if nested, ok := fields["chat_metadata"]; ok {
		trimmed := bytes.TrimSpace(nested)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			md := NewMetadata()
			if err := json.Unmarshal(trimmed, md); err == nil {
				md.EnsureFavorites()
				return md
			}
		}
	}
	md := NewMetadata()
	if err := json.Unmarshal(raw, md); err != nil {
		return NewMetadata()
	}
	md.EnsureFavorites()
	return md
}

func decodeMessages(elems []json.RawMessage) []Message {
	out := make([]Message, 0, len(elems))
	for _, e := range elems {
		var m Message
		if err := json.Unmarshal(e, &m); err != nil || m == nil {
			// Non-object entries carry nothing the panel can index.
			continue
		}
		out = append(out, m)
	}
	return out
}

// MetadataFromListing pulls a fast-path metadata document out of a raw
// chat listing record: its nested chat_metadata object when present,
// otherwise the record itself. Returns nil when the record carries
// nothing usable.
func MetadataFromListing(raw json.RawMessage) *Metadata {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil
	}
	if nested, ok := fields["chat_metadata"]; ok {
		nt := bytes.TrimSpace(nested)
		if len(nt) > 0 && nt[0] == '{' {
			md := NewMetadata()
			if err := json.Unmarshal(nt, md); err == nil {
				md.EnsureFavorites()
				return md
			}
		}
		return nil
	}
	return nil
}
