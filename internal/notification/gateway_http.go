package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

const providerHTTP = "http"

type httpGatewayRequest struct {
	To       string            `json:"to"`
	Body     string            `json:"body"`
	MediaURL string            `json:"media_url,omitempty"`
	Priority string            `json:"priority"`
	Context  map[string]string `json:"context,omitempty"`
}

// HTTPGateway posts messages as JSON to a WhatsApp gateway service.
type HTTPGateway struct {
	url    string
	token  string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPGateway creates a gateway whose calls are bounded by timeout.
func NewHTTPGateway(url, token string, timeout time.Duration, log *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
		logger: log.Named("http_gateway"),
	}
}

func (g *HTTPGateway) SendMessage(ctx context.Context, to, body string, opts SendOptions) bool {
	start := time.Now()
	err := g.send(ctx, to, body, opts)
	observer.ObserveGatewayDuration(providerHTTP, time.Since(start), err == nil)
	if err != nil {
		logger.FromContextOr(ctx, g.logger).Warn("WhatsApp gateway call failed",
			zap.String("to", utils.MaskPhone(to)),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (g *HTTPGateway) send(ctx context.Context, to, body string, opts SendOptions) error {
	priority := "normal"
	if opts.Urgent {
		priority = "high"
	}
	payload, err := json.Marshal(httpGatewayRequest{
		To:       to,
		Body:     body,
		MediaURL: opts.MediaURL,
		Priority: priority,
		Context:  opts.Context,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", apperrors.ErrGateway, resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
