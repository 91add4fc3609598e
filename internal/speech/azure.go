package speech

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"docvoice/internal/config"
)

// AzureProvider talks to the Azure Speech REST API through the fiber HTTP client.
type AzureProvider struct {
	baseURL string
	key     string
	timeout time.Duration
}

// NewAzureProvider builds a provider for the configured region or explicit endpoint.
func NewAzureProvider(cfg config.SpeechConfig) (*AzureProvider, error) {
	if cfg.Key == "" || (cfg.Region == "" && cfg.Endpoint == "") {
		return nil, fmt.Errorf("speech key and region are required")
	}
	base := cfg.Endpoint
	if base == "" {
		base = fmt.Sprintf("https://%s.tts.speech.microsoft.com", cfg.Region)
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AzureProvider{baseURL: strings.TrimRight(base, "/"), key: cfg.Key, timeout: timeout}, nil
}

// Synthesize posts SSML and returns the rendered audio. Non-200 answers are reported
// as an incomplete result; only transport failures are returned as errors.
func (p *AzureProvider) Synthesize(ctx context.Context, req SynthesisRequest) (SynthesisResult, error) {
	if err := ctx.Err(); err != nil {
		return SynthesisResult{}, err
	}
	body, err := BuildSSML(req)
	if err != nil {
		return SynthesisResult{}, err
	}

	a := fiber.Post(p.baseURL + "/cognitiveservices/v1")
	a.Set("Ocp-Apim-Subscription-Key", p.key)
	a.Set("X-Microsoft-OutputFormat", OutputFormat)
	a.ContentType("application/ssml+xml")
	a.Body(body)
	a.Timeout(p.timeout)

	code, audio, errs := a.Bytes()
	if len(errs) > 0 {
		return SynthesisResult{}, fmt.Errorf("speech request: %w", errs[0])
	}
	if code != fiber.StatusOK {
		return SynthesisResult{Completed: false, Reason: fmt.Sprintf("status %d: %s", code, strings.TrimSpace(string(audio)))}, nil
	}
	if len(audio) == 0 {
		return SynthesisResult{Completed: false, Reason: "empty audio stream"}, nil
	}
	return SynthesisResult{Completed: true, Audio: audio}, nil
}

// Voices fetches the regional voice catalogue.
func (p *AzureProvider) Voices(ctx context.Context) ([]ProviderVoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := fiber.Get(p.baseURL + "/cognitiveservices/voices/list")
	a.Set("Ocp-Apim-Subscription-Key", p.key)
	a.Timeout(p.timeout)

	var out []ProviderVoice
	code, body, errs := a.Struct(&out)
	if code != 0 && code != fiber.StatusOK {
		return nil, fmt.Errorf("voices list: status %d: %s", code, strings.TrimSpace(string(body)))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("voices list: %w", errs[0])
	}
	return out, nil
}

// BuildSSML renders a synthesis request as an SSML document.
func BuildSSML(req SynthesisRequest) ([]byte, error) {
	var text bytes.Buffer
	if err := xml.EscapeText(&text, []byte(req.Text)); err != nil {
		return nil, fmt.Errorf("escape text: %w", err)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, `<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s">`, localeOf(req.VoiceID))
	fmt.Fprintf(&b, `<voice name="%s">`, req.VoiceID)
	fmt.Fprintf(&b, `<prosody rate="%s" pitch="%s" volume="%s">`, relative(rateDelta(req.Rate)), relative(req.Pitch), volume(req.Volume))
	b.Write(text.Bytes())
	b.WriteString(`</prosody></voice></speak>`)
	return b.Bytes(), nil
}

func localeOf(voiceID string) string {
	parts := strings.SplitN(voiceID, "-", 3)
	if len(parts) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

// rateDelta converts a speed multiplier into a relative percentage.
func rateDelta(speed float64) float64 {
	if speed <= 0 {
		return 0
	}
	return (speed - 1) * 100
}

func relative(pct float64) string {
	return fmt.Sprintf("%+.0f%%", pct)
}

func volume(v float64) string {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return fmt.Sprintf("%.0f", v)
}
