// Package ragerr holds the error kinds shared by the ingestion, retrieval,
// chat and quiz pipelines. Callers wrap them with fmt.Errorf("...: %w") and
// match with errors.Is.
package ragerr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConfiguration            = errors.New("configuration error")
	ErrInvalidInput             = errors.New("invalid input")
	ErrEmptyInput               = errors.New("empty input")
	ErrUnsupportedFormat        = errors.New("unsupported format")
	ErrExtractionFailed         = errors.New("extraction failed")
	ErrNoTextExtracted          = errors.New("no text extracted")
	ErrNoChunksGenerated        = errors.New("no chunks generated")
	ErrAllChunksFailed          = errors.New("all chunks failed")
	ErrUnexpectedResponseFormat = errors.New("unexpected response format")
	ErrProviderAuth             = errors.New("provider rejected credentials")
	ErrRateLimited              = errors.New("provider rate limit exceeded")
	ErrNoDocumentsFound         = errors.New("no documents found")
	ErrDocumentNotFound         = errors.New("document not found")
	ErrConversationNotFound     = errors.New("conversation not found")
	ErrQuizNotFound             = errors.New("quiz not found")
	ErrWrongQuestionCount       = errors.New("wrong question count")
	ErrInvalidCorrectAnswer     = errors.New("invalid correct answer")
	ErrInvalidQuestion          = errors.New("invalid question")
)

type kind struct {
	err    error
	reason string
	status int
}

// Ordered so that the most specific kind wins when an error wraps several.
var kinds = []kind{
	{ErrConfiguration, "ConfigurationError", http.StatusServiceUnavailable},
	{ErrInvalidInput, "InvalidInput", http.StatusBadRequest},
	{ErrEmptyInput, "EmptyInput", http.StatusBadRequest},
	{ErrUnsupportedFormat, "UnsupportedFormat", http.StatusUnsupportedMediaType},
	{ErrNoTextExtracted, "NoTextExtracted", http.StatusUnprocessableEntity},
	{ErrNoChunksGenerated, "NoChunksGenerated", http.StatusUnprocessableEntity},
	{ErrAllChunksFailed, "AllChunksFailed", http.StatusBadGateway},
	{ErrWrongQuestionCount, "WrongQuestionCount", http.StatusBadGateway},
	{ErrInvalidCorrectAnswer, "InvalidCorrectAnswer", http.StatusBadGateway},
	{ErrInvalidQuestion, "InvalidQuestion", http.StatusBadGateway},
	{ErrUnexpectedResponseFormat, "UnexpectedResponseFormat", http.StatusBadGateway},
	{ErrExtractionFailed, "ExtractionFailed", http.StatusUnprocessableEntity},
	{ErrProviderAuth, "ProviderAuthError", http.StatusBadGateway},
	{ErrRateLimited, "RateLimited", http.StatusTooManyRequests},
	{ErrNoDocumentsFound, "NoDocumentsFound", http.StatusNotFound},
	{ErrDocumentNotFound, "DocumentNotFound", http.StatusNotFound},
	{ErrConversationNotFound, "ConversationNotFound", http.StatusNotFound},
	{ErrQuizNotFound, "QuizNotFound", http.StatusNotFound},
}

// Reason returns the stable reason string reported to API clients.
func Reason(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.reason
		}
	}
	return "InternalError"
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// FromStatus classifies a provider's HTTP status code. It returns err wrapped
// in ErrProviderAuth or ErrRateLimited, or nil when the status is neither.
func FromStatus(status int, err error) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrProviderAuth, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return nil
}
