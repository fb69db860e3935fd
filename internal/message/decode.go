package message

import (
	"encoding/json"
	"net/url"
	"strconv"
)

// jsonWire mirrors Message for JSON decode/encode, since Message tracks
// presence separately from zero values.
type jsonWire struct {
	ID      *string  `json:"id,omitempty"`
	Event   *string  `json:"event,omitempty"`
	Data    *string  `json:"data,omitempty"`
	Comment []string `json:"comment,omitempty"`
	Retry   *int64   `json:"retry,omitempty"`
}

// DecodeJSON parses a JSON publish body into a Message.
func DecodeJSON(raw []byte) (Message, error) {
	var w jsonWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Message{}, err
	}
	m := Message{Comment: w.Comment, Retry: w.Retry}
	if w.ID != nil {
		m.SetID(*w.ID)
	}
	if w.Event != nil {
		m.SetEvent(*w.Event)
	}
	if w.Data != nil {
		m.SetData(*w.Data)
	}
	return m, nil
}

// EncodeJSON renders a Message back to JSON, for diagnostics and for
// round-trip tests; only present fields are emitted.
func EncodeJSON(m Message, pretty bool) ([]byte, error) {
	w := jsonWire{Comment: m.Comment, Retry: m.Retry}
	if m.HasID() {
		id := m.ID
		w.ID = &id
	}
	if m.HasEvent() {
		ev := m.Event
		w.Event = &ev
	}
	if m.HasData() {
		d := m.Data
		w.Data = &d
	}
	if pretty {
		return json.MarshalIndent(w, "", "  ")
	}
	return json.Marshal(w)
}

// DecodeForm parses an application/x-www-form-urlencoded publish body into
// a Message. Per the bound open question, "comment" is accepted only in
// its repeated-key shape: comment=a&comment=b decodes to ["a","b"]; a
// single comment=a decodes to the one-element array ["a"].
func DecodeForm(raw []byte) (Message, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return Message{}, err
	}
	var m Message
	if v, ok := values["id"]; ok && len(v) > 0 {
		m.SetID(v[0])
	}
	if v, ok := values["event"]; ok && len(v) > 0 {
		m.SetEvent(v[0])
	}
	if v, ok := values["data"]; ok && len(v) > 0 {
		m.SetData(v[0])
	}
	if v, ok := values["comment"]; ok {
		m.Comment = append([]string(nil), v...)
	}
	if v, ok := values["retry"]; ok && len(v) > 0 {
		r, err := strconv.ParseInt(v[0], 10, 64)
		if err != nil {
			return Message{}, err
		}
		m.Retry = &r
	}
	return m, nil
}
