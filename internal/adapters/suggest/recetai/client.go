package recetai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medication-tracker/internal/domain/medications"
	"medication-tracker/internal/platform/httpclient"
)

var (
	ErrNotConfigured = errors.New("recetai client not configured")
	ErrUpstream      = errors.New("recetai upstream error")
)

// Config del extractor de recetas.
type Config struct {
	BaseURL string
	APIKey  string

	APIKeyHeader string
	Timeout      time.Duration
}

// Client llama al servicio de extracción (LLM detrás) y devuelve
// sugerencias crudas. El dominio las normaliza antes de persistir.
type Client struct {
	apiKey       string
	apiKeyHeader string
	http         *httpclient.Client
}

func NewClient(cfg Config) (*Client, error) {
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		// la extracción puede tardar bastante más que un verify
		timeout = 30 * time.Second
	}

	hc, err := httpclient.NewWithBaseURL(strings.TrimSpace(cfg.BaseURL), timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiKeyHeader: h,
		http:         hc,
	}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && c.http.BaseURL != ""
}

type extractRequest struct {
	PrescriptionText string `json:"prescription_text"`
}

type extractResponse struct {
	Medications []suggestionDTO `json:"medications"`
}

type suggestionDTO struct {
	Name         string       `json:"name"`
	Dosage       string       `json:"dosage"`
	Frequency    string       `json:"frequency"`
	Instructions string       `json:"instructions"`
	FixedTimes   []string     `json:"fixed_times"`
	Meals        []triggerDTO `json:"meals"`
}

type triggerDTO struct {
	Meal   string `json:"meal"`
	Timing string `json:"timing"`
}

// ExtractPrescription implementa medications.PrescriptionExtractor.
func (c *Client) ExtractPrescription(ctx context.Context, prescriptionText string) ([]medications.Suggestion, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	prescriptionText = strings.TrimSpace(prescriptionText)
	if prescriptionText == "" {
		return nil, errors.New("prescription text required")
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers[c.apiKeyHeader] = c.apiKey
	}

	var out extractResponse
	err := c.http.DoJSON(ctx, "POST", "/v1/prescriptions/extract",
		headers,
		extractRequest{PrescriptionText: prescriptionText},
		&out,
	)
	if err != nil {
		var he *httpclient.HTTPError
		if errors.As(err, &he) {
			return nil, fmt.Errorf("%w: status=%d", ErrUpstream, he.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	sugs := make([]medications.Suggestion, 0, len(out.Medications))
	for _, dto := range out.Medications {
		s := medications.Suggestion{
			Name:         dto.Name,
			Dosage:       dto.Dosage,
			Frequency:    dto.Frequency,
			Instructions: dto.Instructions,
			FixedTimes:   dto.FixedTimes,
		}
		for _, t := range dto.Meals {
			s.Meals = append(s.Meals, medications.SuggestedTrigger{
				Meal:   t.Meal,
				Timing: t.Timing,
			})
		}
		sugs = append(sugs, s)
	}
	return sugs, nil
}
