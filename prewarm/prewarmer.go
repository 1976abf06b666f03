// Package prewarm fetches freshly generated derivatives through the image
// proxy so that the first viewer hits a warm cache.
package prewarm

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/go-querystring/query"
	"golang.org/x/time/rate"
)

const requestTimeout = 30 * time.Second

// Options configures the prewarmer. It is disabled unless Production is set
// and ProxyURL is non-empty.
type Options struct {
	Production          bool
	ProxyURL            string
	ThumbnailDimension  int
	LargeThumbDimension int
	RatePerSecond       int
	Client              *http.Client
}

// PhotoURLs are the public URLs of one processed photo.
type PhotoURLs struct {
	Public    string
	Thumbnail string
}

type proxyQuery struct {
	URL    string `url:"url"`
	Width  int    `url:"w,omitempty"`
	Height int    `url:"h,omitempty"`
}

type Prewarmer struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	wg      sync.WaitGroup
}

func New(opts Options) *Prewarmer {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	perSecond := opts.RatePerSecond
	if perSecond <= 0 {
		perSecond = 10
	}
	opts.ProxyURL = strings.TrimRight(opts.ProxyURL, "?")
	return &Prewarmer{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

// Enabled reports whether Warm sends anything.
func (p *Prewarmer) Enabled() bool {
	return p.opts.Production && p.opts.ProxyURL != ""
}

// Warm requests the public, thumbnail and large thumbnail variants from the
// proxy in the background and returns immediately. Responses are discarded.
func (p *Prewarmer) Warm(urls PhotoURLs) {
	if !p.Enabled() || urls.Public == "" {
		return
	}

	targets := []proxyQuery{
		{URL: urls.Public},
		{URL: urls.Public, Width: p.opts.LargeThumbDimension, Height: p.opts.LargeThumbDimension},
	}
	if urls.Thumbnail != "" {
		targets = append(targets, proxyQuery{URL: urls.Thumbnail, Width: p.opts.ThumbnailDimension, Height: p.opts.ThumbnailDimension})
	}

	for _, target := range targets {
		values, err := query.Values(target)
		if err != nil {
			log.Printf("prewarm: failed to encode query for %s: %v", target.URL, err)
			continue
		}
		p.wg.Add(1)
		go p.fetch(p.opts.ProxyURL + "?" + values.Encode())
	}
}

func (p *Prewarmer) fetch(requestURL string) {
	defer p.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		log.Printf("prewarm: skipped %s: %v", requestURL, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		log.Printf("prewarm: bad request url %s: %v", requestURL, err)
		return
	}
	resp, err := p.client.Do(req)
	if err != nil {
		log.Printf("prewarm: request failed for %s: %v", requestURL, err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
}

// Wait blocks until all in-flight requests finished.
func (p *Prewarmer) Wait() {
	p.wg.Wait()
}
