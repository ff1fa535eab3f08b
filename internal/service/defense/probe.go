package defense

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/campaign-ops-go/internal/constants"
	"go.uber.org/zap"
)

// PageMeta is what a plain HTML fetch reveals about a post page.
type PageMeta struct {
	Title       string
	Description string
	Author      string
	SiteName    string
}

func (m PageMeta) IsEmpty() bool {
	return m.Title == "" && m.Description == "" && m.Author == ""
}

// PageProber reads public metadata of a page.
type PageProber interface {
	Probe(ctx context.Context, rawURL string) (PageMeta, error)
}

// HTTPPageProbe fetches the page and reads its Open Graph tags.
type HTTPPageProbe struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHTTPPageProbe(logger *zap.Logger) *HTTPPageProbe {
	return &HTTPPageProbe{
		httpClient: &http.Client{Timeout: constants.AcquisitionConfig.ProbeTimeout},
		logger:     logger,
	}
}

// NewHTTPPageProbeWithClient is used by tests to point at an httptest server.
func NewHTTPPageProbeWithClient(client *http.Client, logger *zap.Logger) *HTTPPageProbe {
	return &HTTPPageProbe{httpClient: client, logger: logger}
}

func (p *HTTPPageProbe) Probe(ctx context.Context, rawURL string) (PageMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return PageMeta{}, err
	}
	req.Header.Set("User-Agent", constants.AcquisitionConfig.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return PageMeta{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PageMeta{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, constants.AcquisitionConfig.ProbeMaxBytes))
	if err != nil {
		return PageMeta{}, fmt.Errorf("parse HTML: %w", err)
	}

	meta := PageMeta{
		Title:       firstMeta(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`),
		Description: firstMeta(doc, `meta[property="og:description"]`, `meta[name="description"]`, `meta[name="twitter:description"]`),
		Author:      firstMeta(doc, `meta[name="author"]`, `meta[property="article:author"]`, `meta[name="twitter:creator"]`),
		SiteName:    firstMeta(doc, `meta[property="og:site_name"]`),
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	p.logger.Debug("Page probe completed",
		zap.String("url", rawURL),
		zap.Bool("title", meta.Title != ""),
		zap.Bool("description", meta.Description != ""),
		zap.Bool("author", meta.Author != ""),
	)
	return meta, nil
}

func firstMeta(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if content = strings.TrimSpace(content); content != "" {
				return content
			}
		}
	}
	return ""
}
