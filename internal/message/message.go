// Package message holds the data carried end-to-end through the bus: the
// SSE message itself, the per-request address/context, and the publish and
// subscribe envelopes the script host observes.
package message

import (
	"net/http"
	"unicode/utf8"
)

// Message is a single SSE event body. Empty iff ID, Event and Data are all
// absent, Comment is empty, and Retry is absent.
type Message struct {
	ID      string
	Event   string
	Data    string
	Comment []string
	Retry   *int64

	hasID    bool
	hasEvent bool
	hasData  bool
}

// NewMessage builds a Message, tracking which scalar fields were actually
// set so IsEmpty and the encoders can distinguish "" from absent.
func NewMessage() Message {
	return Message{}
}

// SetID sets the id field and marks it present.
func (m *Message) SetID(v string) { m.ID = v; m.hasID = true }

// SetEvent sets the event field and marks it present.
func (m *Message) SetEvent(v string) { m.Event = v; m.hasEvent = true }

// SetData sets the data field and marks it present.
func (m *Message) SetData(v string) { m.Data = v; m.hasData = true }

// HasID reports whether id was set.
func (m Message) HasID() bool { return m.hasID }

// HasEvent reports whether event was set.
func (m Message) HasEvent() bool { return m.hasEvent }

// HasData reports whether data was set.
func (m Message) HasData() bool { return m.hasData }

// IsEmpty reports whether the message carries nothing observable on the
// wire: no id/event/data, no comments, no retry.
func (m Message) IsEmpty() bool {
	return !m.hasID && !m.hasEvent && !m.hasData && len(m.Comment) == 0 && m.Retry == nil
}

// Address is the client socket the request arrived from.
type Address struct {
	IP   string
	Port int
}

// Request is per-HTTP-request metadata exposed to the script. Built once at
// request entry and never mutated afterward.
type Request struct {
	Addr    Address
	Method  string
	URI     string
	Path    string
	Query   string
	Headers map[string]string
}

// NewRequest builds an immutable Request snapshot from an *http.Request and
// its resolved remote address. Non-UTF-8 header values are dropped rather
// than mangled.
func NewRequest(r *http.Request, addr Address) Request {
	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		v := r.Header.Get(name)
		if !utf8.ValidString(v) {
			continue
		}
		headers[name] = v
	}
	return Request{
		Addr:    addr,
		Method:  r.Method,
		URI:     r.RequestURI,
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Headers: headers,
	}
}

// Meta is the open, script-visible bag carried by PublishEnvelope and
// SubscribeEnvelope. Server code never inspects its contents; it is read
// and written by script hooks only.
type Meta map[string]interface{}

// PublishEnvelope is the unit that travels from the publish pipeline
// through the script host onto the bus and out to every subscriber.
type PublishEnvelope struct {
	Req  Request
	Msg  Message
	Meta Meta
}

// SubscribeEnvelope is built once per subscription and lives for its
// duration.
type SubscribeEnvelope struct {
	Req         Request
	LastEventID *string
	Meta        Meta
}
