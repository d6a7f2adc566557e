package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"voice-recorder/internal/infra"
)

const defaultModel = "whisper-1"

type WhisperClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	language   string
	model      string
	retry      infra.RetryConfig
}

func NewWhisperClient(apiKey, language, model string) *WhisperClient {
	return NewWhisperClientWithURL(apiKey, language, model, "https://api.openai.com/v1")
}

func NewWhisperClientWithURL(apiKey, language, model, baseURL string) *WhisperClient {
	if model == "" {
		model = defaultModel
	}
	return &WhisperClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		language:   language,
		model:      model,
		retry:      infra.DefaultRetryConfig(),
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads audio as "audio.<format>" so the API can pick the
// decoder from the extension.
func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio")
	}
	if format == "" {
		format = "wav"
	}

	var result transcriptionResponse

	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)

		part, err := writer.CreateFormFile("file", "audio."+format)
		if err != nil {
			return fmt.Errorf("creating form file: %w", err)
		}

		if _, err = part.Write(audio); err != nil {
			return fmt.Errorf("writing audio: %w", err)
		}

		if err = writer.WriteField("model", c.model); err != nil {
			return fmt.Errorf("writing model field: %w", err)
		}

		if c.language != "" {
			if err = writer.WriteField("language", c.language); err != nil {
				return fmt.Errorf("writing language field: %w", err)
			}
		}

		if err = writer.Close(); err != nil {
			return fmt.Errorf("closing writer: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &infra.StatusError{Service: "whisper", StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		// Decode failures on a 200 are not retried.
		if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}

		return nil
	})

	if retryErr != nil {
		return "", retryErr
	}

	return strings.TrimSpace(result.Text), nil
}
