package recognizer

import "testing"

func TestTranscriptAssembler(t *testing.T) {
	var a transcriptAssembler
	a.apply([]segment{{text: "hello"}})
	if got := a.text(); got != "hello" {
		t.Fatalf("unexpected text: %q", got)
	}
	a.apply([]segment{{text: " hello world ", final: true}})
	if got := a.text(); got != "hello world" {
		t.Fatalf("unexpected text: %q", got)
	}
	a.apply([]segment{{text: "how are"}, {text: "you"}})
	if got := a.text(); got != "hello world how are you" {
		t.Fatalf("unexpected text: %q", got)
	}
	a.apply(nil)
	if got := a.text(); got != "hello world how are you" {
		t.Fatalf("empty response must keep interim, got %q", got)
	}
	a.commit("how are you")
	if got := a.text(); got != "hello world how are you" {
		t.Fatalf("unexpected text after commit: %q", got)
	}
	a.commit("  ")
	if len(a.committed) != 2 {
		t.Fatalf("blank commit must be ignored, got %v", a.committed)
	}
}
