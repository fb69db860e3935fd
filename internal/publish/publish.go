// Package publish implements the publish pipeline: decode the
// incoming body, build a PublishEnvelope, run the optional publish hook,
// enqueue onto the bus, and report delivery counts. Grounded on
// sse/handler.go's handleBroadcast test endpoint, generalized per the
// decode contract in original_source/src/web.rs's publish handler.
package publish

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/johnjansen/tinysse/internal/apperr"
	"github.com/johnjansen/tinysse/internal/bus"
	"github.com/johnjansen/tinysse/internal/message"
	"github.com/johnjansen/tinysse/internal/scripting"
)

// Handler serves the pub_path route.
type Handler struct {
	Bus         *bus.Bus
	Host        *scripting.Host
	MaxBodySize int64
	Log         zerolog.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pe, appErr := h.decode(r)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	result, ok, err := h.Host.Publish(pe)
	if err != nil {
		writeError(w, apperr.NewInternal(err))
		return
	}
	if !ok {
		writeError(w, apperr.NewForbidden("message rejected by script"))
		return
	}

	subscribers := h.Bus.Publish(result)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"subscribers": subscribers,
		"queued":      h.Bus.Len(),
	})
}

func (h *Handler) decode(r *http.Request) (message.PublishEnvelope, *apperr.Error) {
	limited := io.LimitReader(r.Body, h.MaxBodySize+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return message.PublishEnvelope{}, apperr.NewInternal(err)
	}
	if int64(len(raw)) > h.MaxBodySize {
		return message.PublishEnvelope{}, apperr.NewPayloadTooLarge("request body exceeds max_body_size")
	}

	contentType := r.Header.Get("Content-Type")
	mediaType, _ := parseMediaType(contentType)

	var msg message.Message
	switch mediaType {
	case "application/json":
		msg, err = message.DecodeJSON(raw)
	case "application/x-www-form-urlencoded":
		msg, err = message.DecodeForm(raw)
	default:
		return message.PublishEnvelope{}, apperr.NewUnsupportedMediaType("unsupported media type \"" + contentType + "\"")
	}
	if err != nil {
		return message.PublishEnvelope{}, apperr.NewBadRequest(err.Error(), err)
	}

	req := message.NewRequest(r, addrFromRequest(r))
	return message.PublishEnvelope{Req: req, Msg: msg, Meta: message.Meta{}}, nil
}

func writeError(w http.ResponseWriter, err *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
