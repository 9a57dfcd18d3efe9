// Package download saves harvested media to disk.
package download

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/SirZenith/gimme/common"
	"github.com/SirZenith/gimme/database"
	"github.com/SirZenith/gimme/harvest"
	"github.com/SirZenith/gimme/network"
	"github.com/charmbracelet/log"
	"github.com/gocolly/colly/v2"
	"gorm.io/gorm"
)

type Options struct {
	Collector network.CollectorOptions
	Retry     int
	BatchSize int // number of entries requested before waiting for them

	ImageFormat  string // re-encode images into this format, empty keeps them as is
	Zip          bool   // bundle downloads directory into a zip archive after batch
	ShowProgress bool
}

// Downloader implements harvest.DownloadSink with colly collectors. When a
// database is given, successful downloads are recorded there and entries
// already saved by previous runs are skipped.
type Downloader struct {
	options Options
	headers *network.HeaderSet
	db      *gorm.DB
}

func NewDownloader(options Options, headers *network.HeaderSet, db *gorm.DB) *Downloader {
	return &Downloader{
		options: options,
		headers: headers,
		db:      db,
	}
}

func (d *Downloader) newCollector(ctx context.Context, async bool) (*colly.Collector, error) {
	options := d.options.Collector
	options.Async = async
	options.MaxBodySize = -1

	c, err := network.NewCollector(options)
	if err != nil {
		return nil, err
	}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	return c, nil
}

// DownloadBatch downloads entries into their destination paths. Failure of
// single entries does not stop the batch, they are counted and reported in
// returned error.
func (d *Downloader) DownloadBatch(ctx context.Context, dir string, entries []harvest.DownloadEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create downloads directory %s: %s", dir, err)
	}

	collector, err := d.newCollector(ctx, true)
	if err != nil {
		return err
	}

	progress := &batchProgress{bar: newProgressBar(d.options.ShowProgress)}

	batchSize := d.options.BatchSize
	if batchSize <= 0 {
		batchSize = len(entries)
	}

	for st := 0; st < len(entries) && ctx.Err() == nil; st += batchSize {
		ed := min(st+batchSize, len(entries))

		for _, entry := range entries[st:ed] {
			progress.add()
			d.request(collector, entry, func(err error) {
				progress.done(entry.SourceURI, err)
			})
		}

		collector.Wait()
	}

	progress.bar.Finish()
	if d.options.ShowProgress {
		fmt.Fprint(os.Stderr, "\n")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if d.options.Zip {
		outputName := strings.TrimRight(dir, `/\`) + ".zip"
		cnt, err := BundleZip(dir, outputName)
		if err != nil {
			return err
		}
		log.Infof("%d file(s) bundled into %s", cnt, outputName)
	}

	if len(progress.failed) > 0 {
		return fmt.Errorf("%d of %d downloads failed", len(progress.failed), len(entries))
	}

	return nil
}

// DownloadOne downloads a single file, blocking until it is saved.
func (d *Downloader) DownloadOne(ctx context.Context, uri string, destPath string) error {
	collector, err := d.newCollector(ctx, false)
	if err != nil {
		return err
	}

	result := fmt.Errorf("download of %s aborted", uri)
	d.request(collector, harvest.DownloadEntry{SourceURI: uri, DestPath: destPath}, func(err error) {
		result = err
	})

	if err := ctx.Err(); err != nil {
		return err
	}

	return result
}

// request sends download request of an entry, `onFinished` gets called exactly
// once unless request is aborted.
func (d *Downloader) request(collector *colly.Collector, entry harvest.DownloadEntry, onFinished func(err error)) {
	if d.db != nil && database.IsDownloaded(d.db, entry.SourceURI) {
		log.Debugf("skip downloaded file: %s", entry.SourceURI)
		onFinished(nil)
		return
	}

	reqCtx := colly.NewContext()
	reqCtx.Put("maxRetryCnt", d.options.Retry)

	reqCtx.Put("onResponse", colly.ResponseCallback(func(r *colly.Response) {
		destPath, err := d.save(r, entry.DestPath)
		d.record(entry, destPath, err != nil)
		onFinished(err)
	}))

	reqCtx.Put("onError", colly.ErrorCallback(func(r *colly.Response, err error) {
		if retryCnt, retryErr := network.RetryRequest(r.Request); retryErr == nil {
			log.Debugf("retry %d for %s: %s", retryCnt, entry.SourceURI, err)
			return
		}

		d.record(entry, entry.DestPath, true)
		onFinished(fmt.Errorf("error requesting %s: %s", entry.SourceURI, err))
	}))

	header, err := d.headers.HeadersFor(entry.SourceURI)
	if err != nil {
		log.Warnf("request header for %s unavailable: %s", entry.SourceURI, err)
		header = http.Header{}
	}

	if err := collector.Request("GET", entry.SourceURI, nil, reqCtx, header); err != nil {
		onFinished(fmt.Errorf("failed to request %s: %s", entry.SourceURI, err))
	}
}

// save writes response body to destination, returns path actually written.
func (d *Downloader) save(r *colly.Response, destPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return destPath, fmt.Errorf("failed to create directory for %s: %s", destPath, err)
	}

	format := d.options.ImageFormat
	if format != "" && isConvertibleImage(r.Headers.Get("Content-Type")) {
		outputName := common.ReplaceFileExt(destPath, "."+format)

		err := convertImage(r.Body, outputName, format)
		if err == nil {
			return outputName, nil
		}

		log.Warnf("keeping original format of %s: %s", destPath, err)
		os.Remove(outputName)
	}

	if err := r.Save(destPath); err != nil {
		return destPath, fmt.Errorf("failed to save %s: %s", destPath, err)
	}

	return destPath, nil
}

func (d *Downloader) record(entry harvest.DownloadEntry, destPath string, failed bool) {
	if d.db == nil {
		return
	}

	if err := database.SaveRecord(d.db, entry.SourceURI, entry.ThumbURI, destPath, failed); err != nil {
		log.Warnf("failed to record download of %s: %s", entry.SourceURI, err)
	}
}

// animated formats are kept as they are
func isConvertibleImage(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "image/gif")
}
