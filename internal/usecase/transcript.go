package usecase

import "caseintake/internal/domain"

// RecordingSink is the part of the report form a recording writes to.
type RecordingSink interface {
	ResetBody()
	AppendTranscript(text string)
	SetRecording(state domain.RecordingState)
	Fail(message string)
}

// appendFragment joins fragment onto body with a single space.
func appendFragment(body string, fragment string) string {
	if fragment == "" {
		return body
	}
	if body == "" {
		return fragment
	}
	return body + " " + fragment
}

// consumeTranscripts forwards fragments to sink unchanged and in arrival
// order until the session closes its channel.
func consumeTranscripts(transcripts <-chan string, sink RecordingSink) {
	for text := range transcripts {
		if text == "" {
			continue
		}
		sink.AppendTranscript(text)
	}
}
