package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joseph-ayodele/receipt-analyzer/internal/common"
)

// Client posts base64-encoded images to an OCR HTTP endpoint and returns the
// extracted text.
type Client struct {
	cfg        common.OCRConfig
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg common.OCRConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) Extract(ctx context.Context, imagePath string) (Result, error) {
	start := time.Now()

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return Result{}, fmt.Errorf("read image: %w", err)
	}

	body := map[string]any{
		"image": base64.StdEncoding.EncodeToString(data),
		"options": map[string]any{
			"text_extraction":    true,
			"structure_analysis": true,
		},
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("encode ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(bs))
	if err != nil {
		return Result{}, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("ocr.extract.start", "path", imagePath, "image_bytes", len(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ocr.extract.http_error", "path", imagePath, "error", err)
		return Result{}, fmt.Errorf("ocr http error: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("ocr response body close error", "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read ocr response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("ocr.extract.status_error", "path", imagePath, "status", resp.StatusCode)
		return Result{}, fmt.Errorf("ocr status %d: %s", resp.StatusCode, string(raw))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("decode ocr response: %w", err)
	}

	res := Result{Text: out.Text, Duration: time.Since(start)}
	c.logger.Info("ocr.extract.ok",
		"path", imagePath,
		"text_len", len(res.Text),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
