// Package network holds HTTP side of harvesting: collectors, page fetching,
// page context providers and request headers.
package network

import (
	"errors"
	"fmt"
	"time"

	"github.com/SirZenith/gimme/common"
	"github.com/charmbracelet/log"
	"github.com/gocolly/colly/v2"
)

var ErrMaxRetry = errors.New("max retry")

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:131.0) Gecko/20100101 Firefox/131.0"
)

// CollectorOptions configures collectors made by NewCollector.
type CollectorOptions struct {
	Async       bool
	Parallelism int           // max parallel requests per domain, values less than 2 mean one at a time
	Delay       time.Duration // delay between requests to the same domain, negative means none
	Timeout     time.Duration // request timeout, negative means default
	Proxy       string
	UserAgent   string
	MaxBodySize int // zero keeps collector default, negative means unlimited
}

// NewCollector returns collector with response decompression and per request
// callbacks. Requests can carry "onResponse" and "onError" callbacks in their
// context, those are used in place of collector wide handling.
func NewCollector(options CollectorOptions) (*colly.Collector, error) {
	c := colly.NewCollector(
		colly.Async(options.Async),
		colly.AllowURLRevisit(),
		colly.UserAgent(common.GetStrOr(options.UserAgent, DefaultUserAgent)),
	)

	c.SetRequestTimeout(common.GetDurationOr(options.Timeout, DefaultTimeout))

	if options.MaxBodySize != 0 {
		c.MaxBodySize = max(options.MaxBodySize, 0)
	}

	if options.Proxy != "" {
		if err := c.SetProxy(options.Proxy); err != nil {
			return nil, fmt.Errorf("failed to set proxy %s: %s", options.Proxy, err)
		}
	}

	rule := &colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: options.Parallelism,
	}
	if options.Delay > 0 {
		rule.Delay = options.Delay
	}
	if err := c.Limit(rule); err != nil {
		return nil, fmt.Errorf("failed to set collector limit: %s", err)
	}

	c.OnResponse(func(r *colly.Response) {
		if data, err := DecompressResponseBody(r); err == nil {
			r.Body = data
		} else {
			log.Error(err)
		}

		if onResponse, ok := r.Ctx.GetAny("onResponse").(colly.ResponseCallback); ok {
			onResponse(r)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if onError, ok := r.Ctx.GetAny("onError").(colly.ErrorCallback); ok {
			onError(r, err)
		} else {
			log.Errorf("error requesting %s: %s", r.Request.URL, err)
		}
	})

	return c, nil
}

// RetryRequest reads `retryCnt` and `maxRetryCnt` from request context. If
// current retry count is less than max retry count, given request is retried,
// else ErrMaxRetry is returned.
// Returns retry count after operation, and error happened during operation.
func RetryRequest(req *colly.Request) (int, error) {
	ctx := req.Ctx

	maxRetryCnt, _ := ctx.GetAny("maxRetryCnt").(int)

	retryCnt, _ := ctx.GetAny("retryCnt").(int)
	if retryCnt >= maxRetryCnt {
		return retryCnt, ErrMaxRetry
	}

	retryCnt++
	ctx.Put("retryCnt", retryCnt)

	return retryCnt, req.Retry()
}
