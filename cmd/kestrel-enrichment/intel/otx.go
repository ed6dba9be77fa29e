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

const otxBaseURL = "https://otx.alienvault.com/api/v1"

// OTXClient queries AlienVault OTX pulse counts for file hashes and IPv4
// indicators.
type OTXClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	policy  retry.Policy
}

func NewOTXClient(apiKey string) *OTXClient {
	return &OTXClient{
		apiKey:  apiKey,
		baseURL: otxBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "otx",
			Timeout: 30 * time.Second,
		}),
		policy: retry.DefaultPolicy,
	}
}

type otxResponse struct {
	PulseInfo struct {
		Count int `json:"count"`
	} `json:"pulse_info"`
}

// FileIndicator fetches the pulse count for a file hash.
func (c *OTXClient) FileIndicator(ctx context.Context, hash string) (*models.OTXResult, error) {
	return c.lookup(ctx, fmt.Sprintf("%s/indicators/file/%s/general", c.baseURL, hash))
}

// IPv4Indicator fetches the pulse count for an IPv4 address.
func (c *OTXClient) IPv4Indicator(ctx context.Context, ip string) (*models.OTXResult, error) {
	return c.lookup(ctx, fmt.Sprintf("%s/indicators/IPv4/%s/general", c.baseURL, ip))
}

func (c *OTXClient) lookup(ctx context.Context, url string) (*models.OTXResult, error) {
	var result *models.OTXResult

	err := c.policy.Do(ctx, func() error {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetch(ctx, url)
		})
		if err != nil {
			return err
		}
		result = out.(*models.OTXResult)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *OTXClient) fetch(ctx context.Context, url string) (*models.OTXResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-OTX-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("otx request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &models.OTXResult{Pulses: 0}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("otx returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("otx body read failed: %w", err)
	}

	var parsed otxResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("otx decode failed: %w", err)
	}

	return &models.OTXResult{Pulses: parsed.PulseInfo.Count}, nil
}
