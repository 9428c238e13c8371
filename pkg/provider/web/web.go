// Package web provides mods addressed by generic HTTP(S) URLs. A URL
// naming an archive directly is pinned; an HTML landing page is scanned
// for the one archive link it carries and re-resolves on each update.
package web

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"modm/pkg/blobcache"
	"modm/pkg/cache"
	"modm/pkg/provider"
)

// FactoryID identifies this back-end in the registry and names its
// cache section.
const FactoryID = "http"

const updateConcurrency = 4

// entry is what the web provider remembers about one resolved artifact,
// keyed by artifact URL.
type entry struct {
	Name string `json:"name"`
	Size int64  `json:"size,omitempty"`
	// Hash is the blob key once the artifact has been fetched.
	Hash string `json:"hash,omitempty"`
	// Direct is true when the spec itself named the artifact.
	Direct bool `json:"direct"`
}

// section maps spec URLs to the artifact they resolved to, and artifact
// URLs to their metadata.
type section struct {
	Specs map[string]string `json:"specs"`
	Mods  map[string]entry  `json:"mods"`
}

type webProvider struct {
	hc *http.Client
}

// Register adds the http factory to the given registry.
func Register(reg *provider.Registry) {
	reg.Register(Factory())
}

// Factory returns the registry entry for the generic HTTP back-end.
func Factory() provider.Factory {
	return provider.Factory{
		ID: FactoryID,
		New: func(map[string]string) (provider.Provider, error) {
			return &webProvider{hc: &http.Client{}}, nil
		},
		CanProvide: CanProvide,
	}
}

// CanProvide accepts plain http(s) URLs. Hosted mod.io addresses belong
// to the modio back-end and are excluded here so the registry scan is
// unambiguous.
func CanProvide(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host != "mod.io" && !strings.HasSuffix(host, ".mod.io")
}

func (p *webProvider) Resolve(ctx context.Context, spec provider.ModSpecification, update bool, c *cache.Cache) (*provider.ModResponse, error) {
	u, err := url.Parse(spec.ID)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, provider.ErrInvalidURL(spec.ID)
	}

	if !update {
		sec, err := cache.Get[section](c, FactoryID)
		if err != nil {
			return nil, provider.ErrCache(err)
		}
		if resolved, ok := sec.Specs[spec.ID]; ok {
			if e, ok := sec.Mods[resolved]; ok {
				return response(spec, resolved, e), nil
			}
		}
	}

	resolved := spec.ID
	direct := IsArchiveURL(spec.ID)
	if !direct {
		resolved, err = p.resolveLandingPage(ctx, spec.ID)
		if err != nil {
			return nil, err
		}
	}

	e := entry{Name: artifactName(resolved), Direct: direct}
	if err := cache.Update(c, FactoryID, func(sec *section) error {
		if sec.Specs == nil {
			sec.Specs = make(map[string]string)
			sec.Mods = make(map[string]entry)
		}
		// Keep the blob key of a previous fetch if the link is stable.
		if prev, ok := sec.Mods[resolved]; ok {
			e.Hash, e.Size = prev.Hash, prev.Size
		}
		sec.Specs[spec.ID] = resolved
		sec.Mods[resolved] = e
		return nil
	}); err != nil {
		return nil, provider.ErrCache(err)
	}
	return response(spec, resolved, e), nil
}

// resolveLandingPage fetches an HTML page and extracts the single
// archive link it carries. Zero links means the page cannot provide a
// mod; several means the spec is ambiguous and the caller must point at
// one of them directly.
func (p *webProvider) resolveLandingPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", provider.ErrRequest(pageURL, err)
	}
	resp, err := p.hc.Do(req)
	if err != nil {
		return "", provider.ErrRequest(pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", provider.ErrResponse(pageURL, &statusError{resp.Status})
	}
	mediaType, err := contentMediaType(resp)
	if err != nil {
		return "", provider.ErrInvalidMime(pageURL, err)
	}
	if mediaType != "text/html" {
		return "", provider.ErrUnexpectedContentType(pageURL, mediaType)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", provider.ErrResponse(pageURL, err)
	}
	base, _ := url.Parse(pageURL)
	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !IsArchiveURL(href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})

	switch len(links) {
	case 0:
		return "", provider.ErrUnexpectedContentType(pageURL, "text/html without artifact links")
	case 1:
		return links[0], nil
	default:
		return "", provider.ErrAmbiguousName(pageURL)
	}
}

func (p *webProvider) Fetch(ctx context.Context, res provider.ModResolution, update bool, c *cache.Cache, blobs *blobcache.Cache, sink provider.Sink) (string, error) {
	sec, err := cache.Get[section](c, FactoryID)
	if err != nil {
		return "", provider.ErrCache(err)
	}
	if e, ok := sec.Mods[res.URL]; ok && !update {
		if blobPath, ok := blobs.Has(e.Hash); ok {
			provider.Emit(sink, provider.FetchComplete{Res: res})
			return blobPath, nil
		}
	}

	hash, blobPath, err := Transfer(ctx, p.hc, res, blobs, sink)
	if err != nil {
		return "", err
	}
	if err := cache.Update(c, FactoryID, func(sec *section) error {
		if sec.Mods == nil {
			sec.Mods = make(map[string]entry)
		}
		e := sec.Mods[res.URL]
		e.Name = artifactName(res.URL)
		e.Hash = hash
		sec.Mods[res.URL] = e
		return nil
	}); err != nil {
		return "", provider.ErrCache(err)
	}
	provider.Emit(sink, provider.FetchComplete{Res: res})
	return blobPath, nil
}

func (p *webProvider) UpdateCache(ctx context.Context, c *cache.Cache) error {
	sec, err := cache.Get[section](c, FactoryID)
	if err != nil {
		return provider.ErrCache(err)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(updateConcurrency)
	for specURL := range sec.Specs {
		g.Go(func() error {
			_, err := p.Resolve(ctx, provider.NewSpec(specURL), true, c)
			return err
		})
	}
	return g.Wait()
}

func (p *webProvider) Check(ctx context.Context) error {
	return nil
}

func (p *webProvider) ModInfo(spec provider.ModSpecification, c *cache.Cache) (provider.ModInfo, bool) {
	sec, err := cache.Get[section](c, FactoryID)
	if err != nil {
		return provider.ModInfo{}, false
	}
	resolved, ok := sec.Specs[spec.ID]
	if !ok {
		return provider.ModInfo{}, false
	}
	e, ok := sec.Mods[resolved]
	if !ok {
		return provider.ModInfo{}, false
	}
	return provider.ModInfo{
		Spec:       spec,
		ProviderID: FactoryID,
		Name:       e.Name,
		Version:    shortHash(e.Hash),
	}, true
}

// IsPinned is a syntactic judgement: a direct archive URL always yields
// the same artifact, a landing page may point somewhere new tomorrow.
func (p *webProvider) IsPinned(spec provider.ModSpecification, c *cache.Cache) bool {
	return IsArchiveURL(spec.ID)
}

func (p *webProvider) VersionName(spec provider.ModSpecification, c *cache.Cache) (string, bool) {
	info, ok := p.ModInfo(spec, c)
	if !ok || info.Version == "" {
		return "", false
	}
	return info.Version, true
}

func response(spec provider.ModSpecification, resolved string, e entry) *provider.ModResponse {
	return &provider.ModResponse{
		Resolution: provider.ModResolution{URL: resolved, Pinned: e.Direct, ProviderID: FactoryID},
		Info: provider.ModInfo{
			Spec:       spec,
			ProviderID: FactoryID,
			Name:       e.Name,
			Version:    shortHash(e.Hash),
		},
	}
}

func artifactName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return path.Base(u.Path)
}

func shortHash(hash string) string {
	if len(hash) > 10 {
		return hash[:10]
	}
	return hash
}
