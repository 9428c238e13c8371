package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the closed set of failure causes a provider operation can
// surface. Every error leaving the contract operations is a *Error
// carrying exactly one Kind plus the contextual identifiers (URL,
// mod id, name id) that kind declares.
type Kind int

const (
	// KindInitProvider: a factory constructor rejected its parameters.
	KindInitProvider Kind = iota
	// KindCache: the provider cache failed to load or persist.
	KindCache
	// KindBlobCache: the blob store failed.
	KindBlobCache
	// KindHostedAPI: the hosted API rejected or failed a request for a
	// specific mod.
	KindHostedAPI
	// KindIO: a local read/write failed while working on a specific mod.
	KindIO
	// KindProviderNotFound: no registered factory matches the address.
	KindProviderNotFound
	// KindNoProvider: a factory matched the address but could not
	// produce a provider for it.
	KindNoProvider
	// KindInvalidURL: the address fails provider-specific parsing.
	KindInvalidURL
	// KindRequest: the transport request could not be made.
	KindRequest
	// KindResponse: the transport answered with a failure status.
	KindResponse
	// KindInvalidMime: the response MIME type contains non-ASCII bytes.
	KindInvalidMime
	// KindUnexpectedContentType: the response contract was violated.
	KindUnexpectedContentType
	// KindFetch: the transfer failed mid-stream.
	KindFetch
	// KindBufferIO: writing the transferred bytes locally failed.
	KindBufferIO
	// KindPreviewLink: the address is a preview page, not a direct link.
	KindPreviewLink
	// KindNoAssociatedModfile: the resolution has no downloadable
	// artifact.
	KindNoAssociatedModfile
	// KindAmbiguousName: a name lookup matched more than one mod.
	KindAmbiguousName
	// KindNoModsForName: a name lookup matched nothing.
	KindNoModsForName
)

// Error is the single error type produced by the provider layer. Fields
// beyond Kind are populated per kind; URL and mod id are guaranteed
// present for the kinds that declare them.
type Error struct {
	Kind        Kind
	URL         string
	NameID      string
	FactoryID   string
	Params      map[string]string
	ContentType string
	ModID       uint32
	HasModID    bool
	Err         error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInitProvider:
		return fmt.Sprintf("failed to initialize provider %s with parameters %s", e.FactoryID, formatParams(e.Params))
	case KindCache:
		return fmt.Sprintf("provider cache error: %v", e.Err)
	case KindBlobCache:
		return fmt.Sprintf("blob cache error: %v", e.Err)
	case KindHostedAPI:
		if e.HasModID {
			return fmt.Sprintf("hosted API error encountered while working on mod %d: %v", e.ModID, e.Err)
		}
		return fmt.Sprintf("hosted API error: %v", e.Err)
	case KindIO:
		if e.HasModID {
			return fmt.Sprintf("I/O error encountered while working on mod %d: %v", e.ModID, e.Err)
		}
		return fmt.Sprintf("I/O error: %v", e.Err)
	case KindProviderNotFound:
		return fmt.Sprintf("could not find mod provider for <%s>", e.URL)
	case KindNoProvider:
		return fmt.Sprintf("no provider found given <%s> and factory %s", e.URL, e.FactoryID)
	case KindInvalidURL:
		return fmt.Sprintf("invalid url <%s>", e.URL)
	case KindRequest:
		return fmt.Sprintf("request for <%s> failed: %v", e.URL, e.Err)
	case KindResponse:
		return fmt.Sprintf("response from <%s> failed: %v", e.URL, e.Err)
	case KindInvalidMime:
		return fmt.Sprintf("mime from <%s> contains non-ascii characters", e.URL)
	case KindUnexpectedContentType:
		return fmt.Sprintf("unexpected content type from <%s>: %s", e.URL, e.ContentType)
	case KindFetch:
		return fmt.Sprintf("error while fetching mod <%s>: %v", e.URL, e.Err)
	case KindBufferIO:
		return fmt.Sprintf("error processing <%s> while writing to local buffer: %v", e.URL, e.Err)
	case KindPreviewLink:
		return fmt.Sprintf("preview mod links cannot be added directly, subscribe to the mod and use the non-preview link: <%s>", e.URL)
	case KindNoAssociatedModfile:
		return fmt.Sprintf("mod <%s> does not have an associated modfile", e.URL)
	case KindAmbiguousName:
		return fmt.Sprintf("multiple mods returned for name %q", e.NameID)
	case KindNoModsForName:
		return fmt.Sprintf("no mods returned for name %q", e.NameID)
	}
	return fmt.Sprintf("provider error (kind %d): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match on Kind so callers can branch on a cause
// without inspecting fields: errors.Is(err, &Error{Kind: KindPreviewLink}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// OptModID returns the mod id this error concerns, if it carries one,
// walking into the wrapped cause otherwise.
func (e *Error) OptModID() (uint32, bool) {
	if e.HasModID {
		return e.ModID, true
	}
	if e.Err != nil {
		return OptModID(e.Err)
	}
	return 0, false
}

// modIDCarrier is satisfied by error domains that can name the mod they
// concern, such as the hosted API client's errors.
type modIDCarrier interface {
	OptModID() (uint32, bool)
}

// OptModID extracts the mod id associated with any provider-layer error,
// uniformly across kinds. Callers batching many mods use this to
// correlate a failure with its mod without matching on every kind.
func OptModID(err error) (uint32, bool) {
	var c modIDCarrier
	if errors.As(err, &c) {
		return c.OptModID()
	}
	return 0, false
}

// Constructors. Each populates exactly the context its kind declares.

func ErrInitProvider(factoryID string, params map[string]string, err error) *Error {
	return &Error{Kind: KindInitProvider, FactoryID: factoryID, Params: params, Err: err}
}

func ErrCache(err error) *Error {
	return &Error{Kind: KindCache, Err: err}
}

func ErrBlobCache(err error) *Error {
	return &Error{Kind: KindBlobCache, Err: err}
}

func ErrHostedAPI(modID uint32, err error) *Error {
	return &Error{Kind: KindHostedAPI, ModID: modID, HasModID: true, Err: err}
}

func ErrIO(modID uint32, err error) *Error {
	return &Error{Kind: KindIO, ModID: modID, HasModID: true, Err: err}
}

func ErrProviderNotFound(url string) *Error {
	return &Error{Kind: KindProviderNotFound, URL: url}
}

func ErrNoProvider(url, factoryID string) *Error {
	return &Error{Kind: KindNoProvider, URL: url, FactoryID: factoryID}
}

func ErrInvalidURL(url string) *Error {
	return &Error{Kind: KindInvalidURL, URL: url}
}

func ErrRequest(url string, err error) *Error {
	return &Error{Kind: KindRequest, URL: url, Err: err}
}

func ErrResponse(url string, err error) *Error {
	return &Error{Kind: KindResponse, URL: url, Err: err}
}

func ErrInvalidMime(url string, err error) *Error {
	return &Error{Kind: KindInvalidMime, URL: url, Err: err}
}

func ErrUnexpectedContentType(url, contentType string) *Error {
	return &Error{Kind: KindUnexpectedContentType, URL: url, ContentType: contentType}
}

func ErrFetch(url string, err error) *Error {
	return &Error{Kind: KindFetch, URL: url, Err: err}
}

func ErrBufferIO(url string, err error) *Error {
	return &Error{Kind: KindBufferIO, URL: url, Err: err}
}

func ErrPreviewLink(url string) *Error {
	return &Error{Kind: KindPreviewLink, URL: url}
}

func ErrNoAssociatedModfile(url string) *Error {
	return &Error{Kind: KindNoAssociatedModfile, URL: url}
}

func ErrAmbiguousName(nameID string) *Error {
	return &Error{Kind: KindAmbiguousName, NameID: nameID}
}

func ErrNoModsForName(nameID string) *Error {
	return &Error{Kind: KindNoModsForName, NameID: nameID}
}

func formatParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%q", k, params[k])
	}
	sb.WriteString("}")
	return sb.String()
}
