// Package sseframe writes Messages to the wire in SSE format:
// any number of comment lines, then optional id/event/data/retry, closed
// by a blank line.
package sseframe

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/johnjansen/tinysse/internal/message"
)

// WriteMessage frames m and writes it to w. Callers are responsible for
// flushing w afterward. Empty messages should not reach here;
// WriteMessage writes whatever fields are present without judging
// emptiness itself.
func WriteMessage(w io.Writer, m message.Message) error {
	for _, c := range m.Comment {
		if err := writeComment(w, c); err != nil {
			return err
		}
	}
	if m.HasID() {
		if _, err := fmt.Fprintf(w, "id: %s\n", sanitizeLine(m.ID)); err != nil {
			return err
		}
	}
	if m.HasEvent() {
		if _, err := fmt.Fprintf(w, "event: %s\n", sanitizeLine(m.Event)); err != nil {
			return err
		}
	}
	if m.HasData() {
		for _, line := range strings.Split(m.Data, "\n") {
			if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
				return err
			}
		}
	}
	if m.Retry != nil {
		if _, err := fmt.Fprintf(w, "retry: %s\n", strconv.FormatInt(*m.Retry, 10)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// WriteComment writes a single bare comment event (e.g. the handshake
// frame or a keep-alive ping) terminated by a blank line.
func WriteComment(w io.Writer, text string) error {
	if err := writeComment(w, text); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// WriteTimeout writes the final timeout event: a "timeout" comment plus a
// retry hint.
func WriteTimeout(w io.Writer, retryMS int64) error {
	if err := writeComment(w, "timeout"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "retry: %d\n", retryMS); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

func writeComment(w io.Writer, text string) error {
	for _, line := range strings.Split(text, "\n") {
		if _, err := fmt.Fprintf(w, ": %s\n", line); err != nil {
			return err
		}
	}
	return nil
}

// sanitizeLine strips embedded newlines from a single-valued field; the
// SSE format has no escape for them and id/event are defined as single
// lines.
func sanitizeLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
