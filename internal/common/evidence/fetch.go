package evidence

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"search-workers/internal/common/errors"
	httpclient "search-workers/internal/common/http"
	"search-workers/internal/common/logger"
	"search-workers/internal/models"
)

// PageFetcher opens a URL and reduces it to readable text.
type PageFetcher struct {
	client   *httpclient.Client
	maxChars int
	logger   logger.Logger
}

func NewPageFetcher(client *httpclient.Client, maxChars int, log logger.Logger) *PageFetcher {
	return &PageFetcher{client: client, maxChars: maxChars, logger: log}
}

func (f *PageFetcher) Open(ctx context.Context, rawURL string) (*models.OpenedPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.NewPageFetchFailedError(rawURL, fmt.Errorf("unsupported url"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.NewPageFetchFailedError(rawURL, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.NewPageFetchFailedError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, errors.NewPageFetchFailedError(rawURL, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := f.client.ReadBody(resp)
	if err != nil {
		return nil, errors.NewPageFetchFailedError(rawURL, err)
	}

	var text string
	switch mediaType(resp.Header.Get("Content-Type")) {
	case "text/html", "application/xhtml+xml", "":
		text, err = htmlToText(body)
		if err != nil {
			return nil, errors.NewPageFetchFailedError(rawURL, err)
		}
	case "text/plain", "text/markdown":
		text = collapseSpace(string(body))
	default:
		return nil, errors.NewPageFetchFailedError(rawURL, fmt.Errorf("unsupported content type %q", resp.Header.Get("Content-Type")))
	}

	text = truncateRunes(text, f.maxChars)
	if text == "" {
		return nil, errors.NewPageFetchFailedError(rawURL, fmt.Errorf("no readable content"))
	}

	return &models.OpenedPage{URL: rawURL, Content: text}, nil
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}

// htmlToText drops page chrome and returns the title followed by the body text.
func htmlToText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer, header, aside, iframe, form, svg").Remove()

	var parts []string
	if title := collapseSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}

	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if text := collapseSpace(root.Text()); text != "" {
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}
