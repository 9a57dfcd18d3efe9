package gallery

import "errors"

var (
	// target page can not be determined
	ErrContextUnavailable = errors.New("page context unavailable")
	// a single page or resource load failed
	ErrFetchFailed = errors.New("fetch failed")
	// scrape or dig strategy failed
	ErrExtractionFailed = errors.New("extraction failed")
	// source value can not be turned into a download destination
	ErrBadSource = errors.New("bad source uri")
	// entry operation invoked while another run is active
	ErrRunActive = errors.New("harvest already running")
	// run was stopped before finishing all stages
	ErrStopped = errors.New("harvest stopped")
)
