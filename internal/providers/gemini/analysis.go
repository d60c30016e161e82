package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"caseintake/internal/domain"
)

const analysisPrompt = `Analyze the following case report and write a structured summary for responders.

Title: %s
Reporter: %s

Report:
---
%s
---

Requirements:
- Write in the same language as the report.
- Start with a one-sentence overview of the case.
- List the key facts (who, what, where, when) as bullet points.
- Use Google Search to add relevant public context, such as procedures, guidance or related incidents.
- End with recommended next steps.
- Use plain text with simple "-" bullet points. Do not use markdown headings or tables.`

// generator is the slice of the genai Models service the analyzer needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// AnalysisConfig controls the web-grounded analysis call.
type AnalysisConfig struct {
	APIKey     string
	APIBaseURL string
	Model      string
	// RequestsPerMinute paces calls; zero disables pacing.
	RequestsPerMinute int
}

// Analyzer implements ports.Analyzer with Gemini and Google Search grounding.
type Analyzer struct {
	models  generator
	model   string
	limiter *rate.Limiter
}

func NewAnalyzer(ctx context.Context, cfg AnalysisConfig) (*Analyzer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("Gemini API key is not configured")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.APIBaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.APIBaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return newAnalyzer(client.Models, cfg), nil
}

func newAnalyzer(models generator, cfg AnalysisConfig) *Analyzer {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	a := &Analyzer{models: models, model: cfg.Model}
	if cfg.RequestsPerMinute > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	return a
}

// Analyze makes a single attempt; failures come back as analysis errors
// carrying the service's message.
func (a *Analyzer) Analyze(ctx context.Context, title, reporter, body string) (domain.AnalyzedReportData, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(reporter) == "" || strings.TrimSpace(body) == "" {
		return domain.AnalyzedReportData{}, domain.NewError(domain.ErrorCodeValidation, nil)
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return domain.AnalyzedReportData{}, domain.NewError(domain.ErrorCodeAnalysis, err)
		}
	}

	prompt := fmt.Sprintf(analysisPrompt, title, reporter, body)
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	result, err := a.models.GenerateContent(ctx, a.model, genai.Text(prompt), config)
	if err != nil {
		return domain.AnalyzedReportData{}, domain.NewError(domain.ErrorCodeAnalysis, err)
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return domain.AnalyzedReportData{}, domain.NewError(domain.ErrorCodeAnalysis, errors.New("empty response from Gemini"))
	}

	candidate := result.Candidates[0]
	summary := candidateText(candidate)
	if summary == "" {
		return domain.AnalyzedReportData{}, domain.NewError(domain.ErrorCodeAnalysis, errors.New("empty response from Gemini"))
	}

	return domain.AnalyzedReportData{
		Title:    title,
		Reporter: reporter,
		Summary:  summary,
		Sources:  groundingSources(candidate),
	}, nil
}

func candidateText(candidate *genai.Candidate) string {
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}

// groundingSources lists web citations in order, once per URI.
func groundingSources(candidate *genai.Candidate) []domain.Source {
	sources := []domain.Source{}
	if candidate.GroundingMetadata == nil {
		return sources
	}
	seen := make(map[string]bool)
	for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
			continue
		}
		seen[chunk.Web.URI] = true
		title := chunk.Web.Title
		if title == "" {
			title = chunk.Web.URI
		}
		sources = append(sources, domain.Source{URI: chunk.Web.URI, Title: title})
	}
	return sources
}
