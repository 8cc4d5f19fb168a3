package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/edugradelab/gradelab-backend/internal/logger"
)

// ScanRequest is the job handed to the external scanner service. The
// scanner reports back asynchronously on the scanner webhook.
type ScanRequest struct {
	UploadID uint   `json:"uploadId"`
	UserID   uint   `json:"userId"`
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
}

// AnalysisRequest is the job handed to the external grading service
// after a successful scan.
type AnalysisRequest struct {
	UploadID    uint    `json:"uploadId"`
	UserID      uint    `json:"userId"`
	ScannedText string  `json:"scannedText"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// PipelineDispatcher asks the external services to start the next
// pipeline stage. Calls are fire-and-forget with a bounded timeout,
// retries are the caller's problem.
type PipelineDispatcher interface {
	DispatchScan(ctx context.Context, req ScanRequest) error
	DispatchAnalysis(ctx context.Context, req AnalysisRequest) error
}

type httpDispatcher struct {
	httpClient *http.Client
	log        *logger.Logger
	scannerURL string
	aiURL      string
}

func NewHTTPDispatcher(log *logger.Logger, scannerURL, aiURL string, timeout time.Duration) PipelineDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpDispatcher{
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("service", "PipelineDispatcher"),
		scannerURL: scannerURL,
		aiURL:      aiURL,
	}
}

func (d *httpDispatcher) DispatchScan(ctx context.Context, req ScanRequest) error {
	return d.post(ctx, d.scannerURL, req)
}

func (d *httpDispatcher) DispatchAnalysis(ctx context.Context, req AnalysisRequest) error {
	return d.post(ctx, d.aiURL, req)
}

func (d *httpDispatcher) post(ctx context.Context, url string, payload interface{}) error {
	if url == "" {
		return fmt.Errorf("dispatch target url is not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal dispatch payload: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("dispatch to %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("dispatch to %s: status %d: %s", url, resp.StatusCode, string(snippet))
	}
	return nil
}
