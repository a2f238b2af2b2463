package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DFY-Network/pawnshop_layer/pkg/logger"
)

// HTTPSource queries an external rate endpoint. The endpoint receives the
// token pair as query parameters and responds with a JSON rate.
type HTTPSource struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

// NewHTTPSource constructs a rate source using the provided endpoint.
func NewHTTPSource(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPSource, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("rate endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse rate endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("exchange-http")
	}
	return &HTTPSource{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		log:      log,
	}, nil
}

var _ RateSource = (*HTTPSource)(nil)

func (s *HTTPSource) Rate(ctx context.Context, tokenA, tokenB string) (decimal.Decimal, error) {
	requestURL := *s.endpoint
	q := requestURL.Query()
	q.Set("base", tokenA)
	q.Set("quote", tokenB)
	requestURL.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("build rate request: %w", err)
	}
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("rate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Decimal{}, fmt.Errorf("%w: %s/%s", ErrRateUnavailable, tokenA, tokenB)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("rate endpoint status %d", resp.StatusCode)
	}

	var payload struct {
		Rate string `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode rate response: %w", err)
	}

	rate, err := decimal.NewFromString(payload.Rate)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse rate %q: %w", payload.Rate, err)
	}
	if rate.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: non-positive rate for %s/%s", ErrRateUnavailable, tokenA, tokenB)
	}
	return rate, nil
}
