package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
)

// inquiry mirrors the JSON body accepted by the inquiry endpoint.
type inquiry struct {
	VisitorName  string `json:"visitor_name"`
	VisitorPhone string `json:"visitor_phone"`
	Message      string `json:"message,omitempty"`
}

// task is one simulated visitor: an optional referral click followed by an inquiry.
type task struct {
	Slug string
	Code string
}

type generator struct {
	client   *http.Client
	target   string
	slugs    []string
	codes    []string
	refRatio float64
	rnd      *rand.Rand
	log      *zap.Logger
}

func newGenerator(target string, slugs, codes []string, refRatio float64, timeout time.Duration, log *zap.Logger) (*generator, error) {
	if _, err := url.ParseRequestURI(target); err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", target, err)
	}
	if len(slugs) == 0 {
		return nil, fmt.Errorf("at least one property slug is required")
	}
	return &generator{
		client: &http.Client{
			Timeout: timeout,
			// The referral redirect is inspected, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		target:   strings.TrimRight(target, "/"),
		slugs:    slugs,
		codes:    codes,
		refRatio: refRatio,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      log,
	}, nil
}

// next picks the n-th task. Slugs rotate; a code is attached to roughly
// refRatio of the tasks when codes are configured. Only called from the
// load loop goroutine.
func (g *generator) next(n int) task {
	t := task{Slug: g.slugs[n%len(g.slugs)]}
	if len(g.codes) > 0 && g.rnd.Float64() < g.refRatio {
		t.Code = g.codes[n%len(g.codes)]
	}
	return t
}

// run executes one task. Outcomes are recorded as metrics; the returned
// error is only for logging.
func (g *generator) run(ctx context.Context, t task) error {
	var cookies []*http.Cookie
	if t.Code != "" {
		resp, err := g.do(ctx, http.MethodGet, "/ref/"+url.PathEscape(t.Code), nil, nil)
		observer.IncLoadgenRequest("referral", outcome(resp, err))
		if err != nil {
			return fmt.Errorf("referral %s: %w", t.Code, err)
		}
		cookies = resp.Cookies()
	}

	body, err := json.Marshal(inquiry{
		VisitorName:  gofakeit.Name(),
		VisitorPhone: "+62812" + gofakeit.DigitN(7),
		Message:      gofakeit.Sentence(10),
	})
	if err != nil {
		return fmt.Errorf("marshal inquiry: %w", err)
	}

	resp, err := g.do(ctx, http.MethodPost, "/properties/"+url.PathEscape(t.Slug)+"/inquiries", body, cookies)
	observer.IncLoadgenRequest("inquiry", outcome(resp, err))
	if err != nil {
		return fmt.Errorf("inquiry %s: %w", t.Slug, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("inquiry %s: unexpected status %d", t.Slug, resp.StatusCode)
	}
	return nil
}

func (g *generator) do(ctx context.Context, method, path string, body []byte, cookies []*http.Cookie) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.target+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp, nil
}

func outcome(resp *http.Response, err error) string {
	if err != nil || resp == nil {
		return "error"
	}
	return fmt.Sprintf("%dxx", resp.StatusCode/100)
}
