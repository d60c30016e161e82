package usecase

import (
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
)

func TestAppendFragment(t *testing.T) {
	t.Parallel()

	cases := []struct {
		body, fragment, want string
	}{
		{"", "hello", "hello"},
		{"hello", "world", "hello world"},
		{"hello", "", "hello"},
	}
	for _, tc := range cases {
		if got := appendFragment(tc.body, tc.fragment); got != tc.want {
			t.Fatalf("appendFragment(%q, %q) = %q, want %q", tc.body, tc.fragment, got, tc.want)
		}
	}
}

func TestConsumeTranscriptsJoinsInArrivalOrder(t *testing.T) {
	t.Parallel()

	fragments := []string{"Pesakit", " mengadu demam", "sejak", "semalam. ", " "}
	ch := make(chan string, len(fragments)+1)
	ch <- fragments[0]
	ch <- ""
	for _, fragment := range fragments[1:] {
		ch <- fragment
	}
	close(ch)

	events := &fakeEventSink{}
	log, _ := logtest.NewNullLogger()
	form := NewReportForm(&fakeAnalyzer{}, &fakeDeliverer{}, events, log)

	consumeTranscripts(ch, form)

	want := strings.Join(fragments, " ")
	if got := form.Snapshot().Draft.Body; got != want {
		t.Fatalf("unexpected body: %q, want %q", got, want)
	}
	if got := form.Snapshot().Draft.Body; got != "Pesakit  mengadu demam sejak semalam.   " {
		t.Fatalf("fragments were not kept verbatim: %q", got)
	}
	if len(events.drafts) != len(fragments) {
		t.Fatalf("expected one draft event per fragment, got %d", len(events.drafts))
	}
}
