package sseframe

import (
	"strings"
	"testing"

	"github.com/johnjansen/tinysse/internal/message"
)

func TestWriteMessageOrdering(t *testing.T) {
	var m message.Message
	m.Comment = []string{"hint"}
	m.SetID("1")
	m.SetEvent("x")
	m.SetData("line1\nline2")
	retry := int64(500)
	m.Retry = &retry

	var b strings.Builder
	if err := WriteMessage(&b, m); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := ": hint\nid: 1\nevent: x\ndata: line1\ndata: line2\nretry: 500\n\n"
	if b.String() != want {
		t.Fatalf("got:\n%q\nwant:\n%q", b.String(), want)
	}
}

func TestWriteComment(t *testing.T) {
	var b strings.Builder
	if err := WriteComment(&b, "ok"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if b.String() != ": ok\n\n" {
		t.Fatalf("got %q", b.String())
	}
}

func TestWriteTimeout(t *testing.T) {
	var b strings.Builder
	if err := WriteTimeout(&b, 2000); err != nil {
		t.Fatalf("write: %v", err)
	}
	if b.String() != ": timeout\nretry: 2000\n\n" {
		t.Fatalf("got %q", b.String())
	}
}
