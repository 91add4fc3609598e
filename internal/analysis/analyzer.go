// Package analysis asks a text-analysis provider for language, summary and topics
// and folds the free-text reply into a structured result.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docvoice/internal/apperr"
	"docvoice/internal/logger"
	"docvoice/internal/model"
)

const SystemPrompt = "You are a helpful assistant that analyzes text and provides structured information."

const analysisPrompt = `Analyze the following text and provide:
1. The language it's written in (en/ru)
2. A brief summary (max 200 words)
3. Key topics and concepts (as a list)

Text: %s`

const optimizeSystemPrompt = "You are a helpful assistant that prepares text for speech synthesis."

const optimizePrompt = `Optimize the following text for speech synthesis by:
1. Breaking long sentences into shorter ones
2. Adding appropriate punctuation
3. Converting abbreviations and symbols to full words
4. Maintaining natural flow and readability

Text: %s`

// Provider is the text-analysis collaborator: a system and a user prompt in, a reply out.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Observer receives timing for each provider round-trip.
type Observer interface {
	ObserveAnalysis(op string, d time.Duration, err error)
}

// Analyzer orchestrates provider calls for document analysis.
type Analyzer struct {
	provider Provider
	maxInput int
	obs      Observer
}

// NewAnalyzer constructs an Analyzer. maxInput bounds the prompt text in runes; zero disables the bound.
func NewAnalyzer(p Provider, maxInput int, obs Observer) *Analyzer {
	return &Analyzer{provider: p, maxInput: maxInput, obs: obs}
}

// Analyze detects language, summary and keywords of text.
func (a *Analyzer) Analyze(ctx context.Context, text string) (model.AnalysisResult, error) {
	reply, err := a.call(ctx, "analyze", SystemPrompt, fmt.Sprintf(analysisPrompt, a.clip(text)))
	if err != nil {
		return model.AnalysisResult{}, apperr.Wrap(err, apperr.AnalysisProviderError, "failed to analyze text")
	}
	if strings.TrimSpace(reply) == "" {
		return model.AnalysisResult{}, apperr.WithDetails(
			apperr.New(apperr.AnalysisEmpty, "failed to analyze text"),
			"no analysis result",
		)
	}

	res := ParseAnalysis(reply)
	logger.C(ctx).Debug().
		Str("language", string(res.Language)).
		Int("keywords", len(res.Keywords)).
		Msg("analysis parsed")
	return res, nil
}

// OptimizeForSpeech rewrites text so it reads naturally when synthesized.
func (a *Analyzer) OptimizeForSpeech(ctx context.Context, text string) (string, error) {
	reply, err := a.call(ctx, "optimize", optimizeSystemPrompt, fmt.Sprintf(optimizePrompt, a.clip(text)))
	if err != nil {
		return "", apperr.Wrap(err, apperr.OptimizationError, "failed to optimize text")
	}
	out := strings.TrimSpace(reply)
	if out == "" {
		return "", apperr.WithDetails(apperr.New(apperr.OptimizationError, "failed to optimize text"), "no optimized text returned")
	}
	return out, nil
}

func (a *Analyzer) call(ctx context.Context, op, system, user string) (string, error) {
	start := time.Now()
	reply, err := a.provider.Complete(ctx, system, user)
	if a.obs != nil {
		a.obs.ObserveAnalysis(op, time.Since(start), err)
	}
	return reply, err
}

func (a *Analyzer) clip(text string) string {
	if a.maxInput <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= a.maxInput {
		return text
	}
	return string(r[:a.maxInput])
}
