package model

import "time"

// JobStatus is the lifecycle state of a ConversionJob.
type JobStatus string

const (
	StatusUploading  JobStatus = "uploading"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
)

// Terminal reports whether no further status change is allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Language is a detected document language.
type Language string

const (
	LanguageEN Language = "en"
	LanguageRU Language = "ru"
)

// ConversionJob tracks one uploaded document through the pipeline.
// It is mutated only through the conversion package transitions.
type ConversionJob struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	FileName         string    `json:"fileName"`
	SizeBytes        int64     `json:"size"`
	PageCount        int       `json:"pageCount,omitempty"`
	Status           JobStatus `json:"status"`
	DetectedLanguage Language  `json:"language,omitempty"`
	Summary          string    `json:"summary,omitempty"`
	Keywords         []string  `json:"keywords,omitempty"`
	StorageHandle    string    `json:"storageHandle,omitempty"`
	AudioHandle      string    `json:"audioHandle,omitempty"`
	ErrorCode        string    `json:"errorCode,omitempty"`
	ErrorDetail      string    `json:"errorDetail,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// AnalysisResult is the structured insight extracted from a document's text.
type AnalysisResult struct {
	Language Language `json:"language"`
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}
