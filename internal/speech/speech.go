// Package speech resolves voices and drives the speech-synthesis provider.
package speech

import (
	"context"
	"strings"

	"docvoice/internal/apperr"
	"docvoice/internal/model"
)

// OutputFormat is the audio encoding requested from the provider.
const OutputFormat = "audio-16khz-32kbitrate-mono-mp3"

// SynthesisRequest is one provider call.
type SynthesisRequest struct {
	Text    string
	VoiceID string
	Rate    float64
	Pitch   float64
	Volume  float64
}

// SynthesisResult reports an explicit completion flag; anything but Completed is a failure.
type SynthesisResult struct {
	Completed bool
	Audio     []byte
	Reason    string
}

// ProviderVoice is one entry of the provider catalogue.
type ProviderVoice struct {
	ShortName   string `json:"ShortName"`
	DisplayName string `json:"DisplayName"`
	LocalName   string `json:"LocalName"`
	Gender      string `json:"Gender"`
	Locale      string `json:"Locale"`
}

// Provider is the speech-synthesis collaborator.
type Provider interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (SynthesisResult, error)
	Voices(ctx context.Context) ([]ProviderVoice, error)
}

var voiceTable = map[model.Language]map[model.Gender]string{
	model.LanguageEN: {
		model.GenderMale:   "en-US-GuyNeural",
		model.GenderFemale: "en-US-AriaNeural",
	},
	model.LanguageRU: {
		model.GenderMale:   "ru-RU-DmitryNeural",
		model.GenderFemale: "ru-RU-SvetlanaNeural",
	},
}

const (
	defaultVoiceRU = "ru-RU-SvetlanaNeural"
	defaultVoiceEN = "en-US-AriaNeural"
)

// ResolveVoice maps (language, gender) to a concrete voice id. It never fails.
func ResolveVoice(lang model.Language, gender model.Gender) string {
	if byGender, ok := voiceTable[lang]; ok {
		if id, ok := byGender[gender]; ok {
			return id
		}
	}
	if lang == model.LanguageRU {
		return defaultVoiceRU
	}
	return defaultVoiceEN
}

// Orchestrator wraps a Provider with voice resolution and failure classification.
type Orchestrator struct {
	provider Provider
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(p Provider) *Orchestrator {
	return &Orchestrator{provider: p}
}

func requestFor(text string, s model.AudioSettings) SynthesisRequest {
	return SynthesisRequest{
		Text:    text,
		VoiceID: ResolveVoice(s.Language, s.Voice),
		Rate:    s.Speed,
		Pitch:   s.Pitch,
		Volume:  s.Volume,
	}
}

// Synthesize renders text with the given settings and returns the audio bytes.
func (o *Orchestrator) Synthesize(ctx context.Context, text string, s model.AudioSettings) ([]byte, error) {
	res, err := o.provider.Synthesize(ctx, requestFor(text, s))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.SynthesisFailed, "failed to synthesize speech")
	}
	if !res.Completed {
		return nil, apperr.WithDetails(apperr.New(apperr.SynthesisFailed, "failed to synthesize speech"), res.Reason)
	}
	return res.Audio, nil
}

// ValidateText performs a trial synthesis with default settings.
// A provider refusal is reported in the result; only a transport failure is an error.
func (o *Orchestrator) ValidateText(ctx context.Context, text string, lang model.Language) (model.TextValidation, error) {
	res, err := o.provider.Synthesize(ctx, requestFor(text, model.DefaultAudioSettings(lang)))
	if err != nil {
		return model.TextValidation{}, apperr.Wrap(err, apperr.ValidationError, "failed to validate text")
	}
	if !res.Completed {
		reason := res.Reason
		if reason == "" {
			reason = "synthesis was not completed"
		}
		return model.TextValidation{IsValid: false, Errors: []string{reason}}, nil
	}
	return model.TextValidation{IsValid: true}, nil
}

// ListVoices returns the catalogue grouped by locale in first-seen order,
// keeping only locales that start with filter when it is non-empty.
func (o *Orchestrator) ListVoices(ctx context.Context, filter string) ([]model.VoiceGroup, error) {
	voices, err := o.provider.Voices(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.VoicesError, "failed to get available voices")
	}

	groups := []model.VoiceGroup{}
	index := map[string]int{}
	for _, v := range voices {
		if filter != "" && !strings.HasPrefix(strings.ToLower(v.Locale), strings.ToLower(filter)) {
			continue
		}
		i, ok := index[v.Locale]
		if !ok {
			i = len(groups)
			index[v.Locale] = i
			groups = append(groups, model.VoiceGroup{Language: v.Locale, Voices: []model.Voice{}})
		}
		name := v.DisplayName
		if name == "" {
			name = v.LocalName
		}
		groups[i].Voices = append(groups[i].Voices, model.Voice{
			ID:     v.ShortName,
			Gender: strings.ToLower(v.Gender),
			Name:   name,
		})
	}
	return groups, nil
}
