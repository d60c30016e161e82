package domain

// RecordingState models which capture, if any, is running.
type RecordingState string

const (
	RecordingNone  RecordingState = ""
	RecordingAudio RecordingState = "audio"
	RecordingVideo RecordingState = "video"
)

// Valid reports whether s names a capture kind that can be started.
func (s RecordingState) Valid() bool {
	return s == RecordingAudio || s == RecordingVideo
}

// RecordingReason provides a structured reason for recording transitions.
type RecordingReason string

const (
	RecordingReasonStarted       RecordingReason = "recording_started"
	RecordingReasonStopped       RecordingReason = "recording_stopped"
	RecordingReasonSessionFailed RecordingReason = "session_failed"
	RecordingReasonSessionClosed RecordingReason = "session_closed"
	RecordingReasonDenied        RecordingReason = "permission_denied"
)

// BusyState tells the view which one-shot request is in flight.
type BusyState string

const (
	BusyIdle      BusyState = ""
	BusyAnalyzing BusyState = "analyzing"
	BusySending   BusyState = "sending"
)

// ReportDraft is the in-progress, unsaved case report.
type ReportDraft struct {
	Title    string `json:"title"`
	Reporter string `json:"reporter"`
	Body     string `json:"body"`
}

// Source is a citation returned by the analysis service.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// AnalyzedReportData is a completed, citation-annotated report.
type AnalyzedReportData struct {
	Title    string   `json:"title"`
	Reporter string   `json:"reporter"`
	Summary  string   `json:"summary"`
	Sources  []Source `json:"sources"`
}

// DeliveryResult acknowledges a delivered report.
type DeliveryResult struct {
	MessageID int64 `json:"message_id"`
}

// MediaChunk is a realtime media payload: base64 PCM plus its MIME type.
type MediaChunk struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// FormState is the snapshot rendered by the view.
type FormState struct {
	Draft          ReportDraft         `json:"draft"`
	Recording      RecordingState      `json:"recording"`
	Busy           BusyState           `json:"busy"`
	LoadingMessage string              `json:"loadingMessage,omitempty"`
	Error          string              `json:"error,omitempty"`
	Notice         string              `json:"notice,omitempty"`
	Analyzed       *AnalyzedReportData `json:"analyzed,omitempty"`
}
