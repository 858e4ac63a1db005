package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html"
)

const userAgent = "Mozilla/5.0 (AskbaseBot) AppleWebKit/537.36 (KHTML, like Gecko)"

// PageRecord is one successfully fetched page. Depth 1 is the seed URL.
type PageRecord struct {
	URL   string
	Title string
	Text  string
	Depth int
}

type task struct {
	url   string
	depth int
}

// Crawler performs a breadth-first, depth-bounded, same-host crawl.
// All traversal state (frontier, visited set) is owned by a single Crawl call,
// so concurrent crawls never share state.
type Crawler struct {
	client *http.Client
	delay  time.Duration
}

func New(delay time.Duration) *Crawler {
	return &Crawler{
		client: &http.Client{Timeout: 10 * time.Second},
		delay:  delay,
	}
}

// Crawl walks the host of startURL up to maxDepth link-hops, enqueuing at most
// maxLinksPerPage fresh links per page. Fetch errors skip the page and the
// crawl continues; the visited set guarantees termination.
func (c *Crawler) Crawl(ctx context.Context, startURL string, maxDepth, maxLinksPerPage int) []PageRecord {
	seed, err := url.Parse(startURL)
	if err != nil {
		slog.WarnContext(ctx, "invalid start url", "url", startURL, "error", err)
		return nil
	}
	host := seed.Host

	frontier := []task{{url: strip(seed), depth: 1}}
	enqueued := map[string]bool{frontier[0].url: true}
	visited := map[string]bool{}

	var pages []PageRecord
	for len(frontier) > 0 {
		if ctx.Err() != nil {
			slog.WarnContext(ctx, "crawl cancelled", "fetched", len(pages))
			return pages
		}

		t := frontier[0]
		frontier = frontier[1:]
		if visited[t.url] || t.depth > maxDepth {
			continue
		}

		slog.InfoContext(ctx, "fetching page", "url", t.url, "depth", t.depth, "max_depth", maxDepth)
		doc, err := c.fetch(ctx, t.url)
		if err != nil {
			slog.WarnContext(ctx, "fetch failed, skipping page", "url", t.url, "error", err)
			continue
		}
		visited[t.url] = true

		title, text := ExtractContent(doc)
		if text != "" {
			pages = append(pages, PageRecord{URL: t.url, Title: title, Text: text, Depth: t.depth})
		}

		if t.depth < maxDepth {
			fresh := 0
			for _, link := range ExtractLinks(doc, t.url) {
				if fresh >= maxLinksPerPage {
					break
				}
				u, err := url.Parse(link)
				if err != nil || u.Host != host {
					continue
				}
				normalized := strip(u)
				if visited[normalized] || enqueued[normalized] {
					continue
				}
				enqueued[normalized] = true
				frontier = append(frontier, task{url: normalized, depth: t.depth + 1})
				fresh++
			}
		}

		c.wait(ctx)
	}

	return pages
}

func (c *Crawler) fetch(ctx context.Context, pageURL string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return html.Parse(resp.Body)
}

func (c *Crawler) wait(ctx context.Context) {
	if c.delay <= 0 {
		return
	}
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
	}
}

// strip drops the fragment so #anchor variants collapse to one URL.
func strip(u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	return clean.String()
}
