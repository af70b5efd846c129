package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Transcript is the text produced from one voice note.
type Transcript struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// TranscribeClient talks to the voice note transcription service.
type TranscribeClient struct {
	*Client
}

// NewTranscribeClient creates a transcription client rooted at baseURL.
func NewTranscribeClient(baseURL string, auth Authorizer) *TranscribeClient {
	return &TranscribeClient{Client: NewClient(baseURL, auth)}
}

// Transcribe submits audio content and returns its transcript.
func (c *TranscribeClient) Transcribe(ctx context.Context, contentType string, audio io.Reader) (*Transcript, error) {
	headers := map[string]string{"Content-Type": contentType}
	resp, err := c.do(ctx, http.MethodPost, "/transcriptions", audio, headers)
	if err != nil {
		return nil, err
	}

	var transcript Transcript
	if err := decodeJSON(resp, &transcript, http.StatusOK); err != nil {
		return nil, fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return &transcript, nil
}
