package web

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"

	"modm/pkg/blobcache"
	"modm/pkg/provider"
)

// archive extensions we accept as directly fetchable mod artifacts.
var archiveExts = map[string]bool{
	".zip": true,
	".pak": true,
}

// IsArchiveURL reports whether the URL path names an artifact directly.
func IsArchiveURL(rawURL string) bool {
	trimmed := rawURL
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return archiveExts[strings.ToLower(path.Ext(trimmed))]
}

// Transfer streams the artifact at res.URL into the blob cache, emitting
// progress events along the way. Transport and content failures are
// tagged with the taxonomy kind for their cause. The terminal
// FetchComplete event is the caller's to emit once its own bookkeeping
// is durable.
//
// Shared by the web provider and the script back-ends, which resolve to
// plain HTTP artifacts.
func Transfer(ctx context.Context, hc *http.Client, res provider.ModResolution, blobs *blobcache.Cache, sink provider.Sink) (hash, blobPath string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.URL, nil)
	if err != nil {
		return "", "", provider.ErrRequest(res.URL, err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", "", provider.ErrRequest(res.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", provider.ErrResponse(res.URL, &statusError{resp.Status})
	}
	mediaType, err := contentMediaType(resp)
	if err != nil {
		return "", "", provider.ErrInvalidMime(res.URL, err)
	}
	if strings.HasPrefix(mediaType, "text/") {
		return "", "", provider.ErrUnexpectedContentType(res.URL, mediaType)
	}

	var size uint64
	if resp.ContentLength > 0 {
		size = uint64(resp.ContentLength)
	}
	cw := provider.NewCountingWriter(sink, res, size)
	hash, blobPath, err = blobs.Store(io.TeeReader(resp.Body, cw))
	if err != nil {
		return "", "", provider.ErrFetch(res.URL, err)
	}

	if err := validateArchive(res.URL, mediaType, blobPath); err != nil {
		return "", "", err
	}
	return hash, blobPath, nil
}

// validateArchive rejects artifacts that claim to be zips but are not
// readable as one. A truncated or HTML-masquerading download fails here
// instead of at install time.
func validateArchive(url, mediaType, blobPath string) error {
	claimsZip := mediaType == "application/zip" || strings.HasSuffix(strings.ToLower(url), ".zip")
	if !claimsZip {
		return nil
	}
	r, err := zip.OpenReader(blobPath)
	if err != nil {
		return provider.ErrUnexpectedContentType(url, "corrupt zip archive")
	}
	r.Close()
	return nil
}

// contentMediaType extracts the media type of a response. A header with
// non-ASCII bytes is rejected outright; a missing header is allowed and
// returns "".
func contentMediaType(resp *http.Response) (string, error) {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		return "", nil
	}
	for i := 0; i < len(ct); i++ {
		if ct[i] >= utf8.RuneSelf {
			return "", errors.New("non-ascii content type header")
		}
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", err
	}
	return mediaType, nil
}

type statusError struct {
	status string
}

func (e *statusError) Error() string {
	return "bad status: " + e.status
}
