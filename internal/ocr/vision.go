package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ricevute/internal/core"

	goption "google.golang.org/api/option"
	gvision "google.golang.org/api/vision/v1"
)

// VisionClient extracts receipt text through the Google Cloud Vision API.
type VisionClient struct {
	svc *gvision.Service
}

var _ TextExtractor = (*VisionClient)(nil)

// NewVisionFromEnv creates a Vision client using Service Account credentials
// from the environment, resolved the same way as the Sheets client:
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewVisionFromEnv(ctx context.Context) (*VisionClient, error) {
	credentialsJSON, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}
	svc, err := gvision.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gvision.CloudVisionScope))
	if err != nil {
		return nil, fmt.Errorf("create vision service: %w", err)
	}
	return &VisionClient{svc: svc}, nil
}

func credentialsFromEnv() ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	if inline != "" {
		return []byte(inline), nil
	}
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	credentialsJSON, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return credentialsJSON, nil
}

// ExtractText runs TEXT_DETECTION on the image and returns the cleaned
// full-text annotation. An image without any detectable text fails.
func (c *VisionClient) ExtractText(ctx context.Context, image []byte) (core.OCRResult, error) {
	if c.svc == nil {
		return core.OCRResult{}, errors.New("vision service not initialized")
	}
	if len(image) == 0 {
		return core.OCRResult{}, errors.New("empty image")
	}

	req := &gvision.BatchAnnotateImagesRequest{
		Requests: []*gvision.AnnotateImageRequest{{
			Image:    &gvision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*gvision.Feature{{Type: "TEXT_DETECTION"}},
		}},
	}
	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return core.OCRResult{}, fmt.Errorf("annotate image: %w", err)
	}
	if len(resp.Responses) == 0 {
		return core.OCRResult{}, errors.New("annotate image: empty response")
	}
	ann := resp.Responses[0]
	if ann.Error != nil {
		return core.OCRResult{}, fmt.Errorf("annotate image: %s", ann.Error.Message)
	}
	if ann.FullTextAnnotation == nil || strings.TrimSpace(ann.FullTextAnnotation.Text) == "" {
		return core.OCRResult{}, core.ErrEmptyText
	}

	text := CleanText(ann.FullTextAnnotation.Text)
	confidence := pageConfidence(ann.FullTextAnnotation)

	slog.InfoContext(ctx, "OCR completed",
		"text_length", len(text),
		"confidence", confidence)

	return core.OCRResult{Text: text, Confidence: confidence}, nil
}

// pageConfidence averages per-page confidences when the API reports them.
func pageConfidence(full *gvision.TextAnnotation) float64 {
	if full == nil || len(full.Pages) == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, p := range full.Pages {
		if p.Confidence > 0 {
			sum += p.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
