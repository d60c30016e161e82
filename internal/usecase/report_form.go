package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"caseintake/internal/domain"
	"caseintake/internal/ports"
)

// ErrBusy is returned when an analysis or delivery is already in flight.
var ErrBusy = errors.New(msgBusy)

// ReportForm holds the draft and the results of the one-shot requests made
// from it. It is the transcript sink of the Recorder.
type ReportForm struct {
	analyzer  ports.Analyzer
	deliverer ports.Deliverer
	events    ports.EventSink
	log       logrus.FieldLogger

	mu    sync.Mutex
	state domain.FormState
}

func NewReportForm(analyzer ports.Analyzer, deliverer ports.Deliverer, events ports.EventSink, log logrus.FieldLogger) *ReportForm {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ReportForm{
		analyzer:  analyzer,
		deliverer: deliverer,
		events:    events,
		log:       log,
	}
}

func (f *ReportForm) SetTitle(title string) {
	f.update(func(s *domain.FormState) { s.Draft.Title = title })
}

func (f *ReportForm) SetReporter(reporter string) {
	f.update(func(s *domain.FormState) { s.Draft.Reporter = reporter })
}

func (f *ReportForm) SetBody(body string) {
	f.update(func(s *domain.FormState) { s.Draft.Body = body })
}

// Snapshot returns a copy of the form state.
func (f *ReportForm) Snapshot() domain.FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *ReportForm) ResetBody() {
	f.updateDraft(func(d *domain.ReportDraft) { d.Body = "" })
}

func (f *ReportForm) AppendTranscript(text string) {
	f.updateDraft(func(d *domain.ReportDraft) { d.Body = appendFragment(d.Body, text) })
}

func (f *ReportForm) SetRecording(state domain.RecordingState) {
	f.emit(func(s *domain.FormState) { s.Recording = state })
}

func (f *ReportForm) Fail(message string) {
	f.emit(func(s *domain.FormState) {
		s.Error = message
		s.Notice = ""
	})
}

// RequestAnalysis validates the draft and replaces the analyzed report with
// the service's result. On failure the draft and the previous report are
// left as they were.
func (f *ReportForm) RequestAnalysis(ctx context.Context) (domain.AnalyzedReportData, error) {
	draft, err := f.begin(domain.BusyAnalyzing, msgAnalyzing)
	if err != nil {
		return domain.AnalyzedReportData{}, err
	}

	log := f.log.WithField("title", draft.Title)
	report, err := f.analyzer.Analyze(ctx, draft.Title, draft.Reporter, draft.Body)
	if err != nil {
		log.WithError(err).Warn("analysis failed")
		f.end(func(s *domain.FormState) { s.Error = errorText(err, msgAnalysisUnknown) })
		return domain.AnalyzedReportData{}, ensureCode(err, domain.ErrorCodeAnalysis)
	}

	log.WithField("sources", len(report.Sources)).Info("report analyzed")
	stored := cloneReport(report)
	f.end(func(s *domain.FormState) { s.Analyzed = &stored })
	return report, nil
}

// RequestDelivery validates the draft and sends the analyzed report as is,
// or one built from the draft when nothing was analyzed yet.
func (f *ReportForm) RequestDelivery(ctx context.Context) (domain.DeliveryResult, error) {
	draft, err := f.begin(domain.BusySending, msgSending)
	if err != nil {
		return domain.DeliveryResult{}, err
	}

	f.mu.Lock()
	var report domain.AnalyzedReportData
	if f.state.Analyzed != nil {
		report = cloneReport(*f.state.Analyzed)
	} else {
		report = domain.AnalyzedReportData{
			Title:    draft.Title,
			Reporter: draft.Reporter,
			Summary:  draft.Body,
			Sources:  []domain.Source{},
		}
	}
	f.mu.Unlock()

	log := f.log.WithField("title", report.Title)
	result, err := f.deliverer.Send(ctx, report)
	if err != nil {
		log.WithError(err).Warn("delivery failed")
		f.end(func(s *domain.FormState) { s.Error = errorText(err, msgDeliveryUnknown) })
		return domain.DeliveryResult{}, ensureCode(err, domain.ErrorCodeDelivery)
	}

	log.WithField("message_id", result.MessageID).Info("report delivered")
	f.end(func(s *domain.FormState) { s.Notice = fmt.Sprintf(msgDelivered, result.MessageID) })
	return result, nil
}

// begin validates the draft and marks the form busy.
func (f *ReportForm) begin(busy domain.BusyState, loading string) (domain.ReportDraft, error) {
	f.mu.Lock()
	draft := f.state.Draft
	if err := validateDraft(draft); err != nil {
		f.state.Error = err.Error()
		f.state.Notice = ""
		snapshot := f.snapshotLocked()
		f.mu.Unlock()
		f.events.FormChanged(snapshot)
		return domain.ReportDraft{}, err
	}
	if f.state.Busy != domain.BusyIdle {
		f.mu.Unlock()
		return domain.ReportDraft{}, ErrBusy
	}
	f.state.Busy = busy
	f.state.LoadingMessage = loading
	f.state.Error = ""
	f.state.Notice = ""
	snapshot := f.snapshotLocked()
	f.mu.Unlock()

	f.events.FormChanged(snapshot)
	return draft, nil
}

func (f *ReportForm) end(apply func(*domain.FormState)) {
	f.emit(func(s *domain.FormState) {
		s.Busy = domain.BusyIdle
		s.LoadingMessage = ""
		apply(s)
	})
}

func (f *ReportForm) update(apply func(*domain.FormState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	apply(&f.state)
}

func (f *ReportForm) updateDraft(apply func(*domain.ReportDraft)) {
	f.mu.Lock()
	apply(&f.state.Draft)
	draft := f.state.Draft
	f.mu.Unlock()

	f.events.DraftChanged(draft)
}

func (f *ReportForm) emit(apply func(*domain.FormState)) {
	f.mu.Lock()
	apply(&f.state)
	snapshot := f.snapshotLocked()
	f.mu.Unlock()

	f.events.FormChanged(snapshot)
}

func (f *ReportForm) snapshotLocked() domain.FormState {
	snapshot := f.state
	if f.state.Analyzed != nil {
		analyzed := cloneReport(*f.state.Analyzed)
		snapshot.Analyzed = &analyzed
	}
	return snapshot
}

func validateDraft(draft domain.ReportDraft) error {
	if strings.TrimSpace(draft.Title) == "" ||
		strings.TrimSpace(draft.Reporter) == "" ||
		strings.TrimSpace(draft.Body) == "" {
		return domain.NewError(domain.ErrorCodeValidation, errors.New(msgValidation))
	}
	return nil
}

func cloneReport(report domain.AnalyzedReportData) domain.AnalyzedReportData {
	if report.Sources != nil {
		report.Sources = append([]domain.Source{}, report.Sources...)
	}
	return report
}

func errorText(err error, fallback string) string {
	if text := strings.TrimSpace(err.Error()); text != "" {
		return text
	}
	return fallback
}

func ensureCode(err error, code domain.ErrorCode) error {
	if domain.CodeOf(err) != "" {
		return err
	}
	return domain.NewError(code, err)
}
