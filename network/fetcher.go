package network

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/SirZenith/gimme/gallery"
	"github.com/charmbracelet/log"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"
)

// Fetcher loads and parses pages with a synchronous collector.
type Fetcher struct {
	collector *colly.Collector
	headers   *HeaderSet
	retry     int
}

// NewFetcher makes a fetcher, `retry` is the number of retries made after a
// failed request.
func NewFetcher(options CollectorOptions, headers *HeaderSet, retry int) (*Fetcher, error) {
	options.Async = false

	c, err := NewCollector(options)
	if err != nil {
		return nil, err
	}

	return &Fetcher{
		collector: c,
		headers:   headers,
		retry:     retry,
	}, nil
}

type fetchResult struct {
	body        []byte
	contentType string
	err         error
}

// Fetch downloads page at given URI and parses it. Failures are reported
// with gallery.ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	header, err := f.headers.HeadersFor(uri)
	if err != nil {
		log.Warnf("request header for %s unavailable: %s", uri, err)
		header = http.Header{}
	}

	// first result wins, collector may report one failure more than once
	done := make(chan fetchResult, 1)
	report := func(result fetchResult) {
		select {
		case done <- result:
		default:
		}
	}

	reqCtx := colly.NewContext()
	reqCtx.Put("maxRetryCnt", f.retry)
	reqCtx.Put("onResponse", colly.ResponseCallback(func(r *colly.Response) {
		report(fetchResult{
			body:        r.Body,
			contentType: decodedContentType(r.Headers.Get("content-type")),
		})
	}))
	reqCtx.Put("onError", colly.ErrorCallback(func(r *colly.Response, err error) {
		if ctx.Err() == nil {
			if retryCnt, retryErr := RetryRequest(r.Request); retryErr == nil {
				log.Debugf("retry %d for %s: %s", retryCnt, uri, err)
				return
			}
		}

		report(fetchResult{err: fmt.Errorf("status %d: %s", r.StatusCode, err)})
	}))

	go func() {
		if err := f.collector.Request("GET", uri, nil, reqCtx, header); err != nil {
			report(fetchResult{err: err})
		}
	}()

	var result fetchResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result = <-done:
	}

	if result.err != nil {
		return nil, fmt.Errorf("%w: %s: %s", gallery.ErrFetchFailed, uri, result.err)
	}

	return ParseDocument(result.body, result.contentType)
}

// decodedContentType returns content type of response body seen by callbacks.
// Collector has already converted bodies with declared charset into UTF-8.
func decodedContentType(contentType string) string {
	if strings.Contains(strings.ToLower(contentType), "charset") {
		return "text/html; charset=utf-8"
	}
	return contentType
}

// ParseDocument parses HTML body, decoding it into UTF-8 according to
// content type and meta tags first.
func ParseDocument(body []byte, contentType string) (*goquery.Document, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode page: %s", gallery.ErrFetchFailed, err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse page: %s", gallery.ErrFetchFailed, err)
	}

	return doc, nil
}
