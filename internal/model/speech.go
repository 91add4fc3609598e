package model

// Gender selects the voice family for synthesis.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// AudioSettings are the caller-chosen synthesis parameters.
type AudioSettings struct {
	Voice    Gender   `json:"voice" validate:"omitempty,oneof=male female"`
	Speed    float64  `json:"speed" validate:"gte=0.5,lte=2"`
	Pitch    float64  `json:"pitch" validate:"gte=-50,lte=50"`
	Volume   float64  `json:"volume" validate:"gte=0,lte=100"`
	Language Language `json:"language" validate:"omitempty,oneof=en ru"`
}

// DefaultAudioSettings returns neutral prosody for the given language.
func DefaultAudioSettings(lang Language) AudioSettings {
	return AudioSettings{Voice: GenderFemale, Speed: 1, Pitch: 0, Volume: 100, Language: lang}
}

// Voice is one entry of the provider voice catalogue.
type Voice struct {
	ID     string `json:"id"`
	Gender string `json:"gender"`
	Name   string `json:"name"`
}

// VoiceGroup collects the voices of one locale.
type VoiceGroup struct {
	Language string  `json:"language"`
	Voices   []Voice `json:"voices"`
}

// TextValidation is the outcome of a synthesis pre-flight check.
type TextValidation struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors,omitempty"`
}
