package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"kestrel-go/pkg/models"
	"kestrel-go/pkg/retry"
)

const vtBaseURL = "https://www.virustotal.com/api/v3"

// VTClient queries VirusTotal file reports. A 404 is a valid "unknown"
// verdict, not an error.
type VTClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	policy  retry.Policy
}

func NewVTClient(apiKey string) *VTClient {
	return &VTClient{
		apiKey:  apiKey,
		baseURL: vtBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "virustotal",
			Timeout: 30 * time.Second,
		}),
		policy: retry.DefaultPolicy,
	}
}

type vtFileResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats map[string]int `json:"last_analysis_stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// FileReport fetches the verdict for a file hash, retrying transient
// failures with bounded backoff.
func (c *VTClient) FileReport(ctx context.Context, hash string) (*models.VTResult, error) {
	var result *models.VTResult

	err := c.policy.Do(ctx, func() error {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetch(ctx, hash)
		})
		if err != nil {
			return err
		}
		result = out.(*models.VTResult)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *VTClient) fetch(ctx context.Context, hash string) (*models.VTResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/files/%s", c.baseURL, hash), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vt request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Hash unknown to VT.
		return &models.VTResult{Positives: 0, Total: 0}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vt returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("vt body read failed: %w", err)
	}

	var parsed vtFileResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("vt decode failed: %w", err)
	}

	stats := parsed.Data.Attributes.LastAnalysisStats
	total := 0
	for _, n := range stats {
		total += n
	}
	return &models.VTResult{
		Positives: stats["malicious"] + stats["suspicious"],
		Total:     total,
	}, nil
}
