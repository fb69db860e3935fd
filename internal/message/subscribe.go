package message

import "net/http"

// LastEventID resolves the subscriber's resume point: the
// Last-Event-ID header wins over the last_event_id query parameter; nil if
// neither is present.
func LastEventID(r *http.Request) *string {
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		return &v
	}
	if v := r.URL.Query().Get("last_event_id"); v != "" {
		return &v
	}
	return nil
}
