// Package modio provides mods hosted on a mod.io-style API. Specs are
// profile URLs of the form
//
//	https://mod.io/g/<game>/m/<name-id>              floating, latest modfile
//	https://mod.io/g/<game>/m/<name-id>#<mod>        floating, fixed mod
//	https://mod.io/g/<game>/m/<name-id>#<mod>,<file> pinned modfile
//
// Preview links cannot be resolved; the user must subscribe on the
// hosted side and use the real profile link.
package modio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"modm/pkg/blobcache"
	"modm/pkg/cache"
	"modm/pkg/modio"
	"modm/pkg/provider"
)

// FactoryID identifies this back-end in the registry and names its
// cache section.
const FactoryID = "modio"

const updateBatch = 100

var specRe = regexp.MustCompile(`^https?://mod\.io/g/([^/#?]+)/m/([^/#?]+)(?:\?[^#]*)?(?:#(\d+)(?:,(\d+))?)?$`)

// spec is a parsed mod.io address.
type spec struct {
	game      string
	nameID    string
	modID     uint32
	modfileID uint32
	hasMod    bool
	hasFile   bool
}

func parseSpec(raw string) (spec, error) {
	if u, err := url.Parse(raw); err == nil && u.Query().Has("preview") {
		return spec{}, provider.ErrPreviewLink(raw)
	}
	m := specRe.FindStringSubmatch(raw)
	if m == nil {
		return spec{}, provider.ErrInvalidURL(raw)
	}
	s := spec{game: m[1], nameID: m[2]}
	if m[3] != "" {
		id, err := strconv.ParseUint(m[3], 10, 32)
		if err != nil {
			return spec{}, provider.ErrInvalidURL(raw)
		}
		s.modID, s.hasMod = uint32(id), true
	}
	if m[4] != "" {
		id, err := strconv.ParseUint(m[4], 10, 32)
		if err != nil {
			return spec{}, provider.ErrInvalidURL(raw)
		}
		s.modfileID, s.hasFile = uint32(id), true
	}
	return s, nil
}

// canonical renders the fully-resolved address: name-id plus both ids.
func (s spec) canonical(modID, fileID uint32) string {
	return fmt.Sprintf("https://mod.io/g/%s/m/%s#%d,%d", s.game, s.nameID, modID, fileID)
}

// entry is the cached state of one hosted mod, keyed by name-id.
type entry struct {
	ModID     uint32 `json:"mod_id"`
	NameID    string `json:"name_id"`
	Name      string `json:"name"`
	Author    string `json:"author,omitempty"`
	Version   string `json:"version,omitempty"`
	ModfileID uint32 `json:"modfile_id"`
	Filesize  int64  `json:"filesize,omitempty"`
	BinaryURL string `json:"binary_url,omitempty"`
}

// section is the provider's cache layout: mod metadata by name-id plus
// blob hashes by "<mod>,<file>" so pinned fetches of older modfiles can
// be served from the blob store without a round trip.
type section struct {
	Mods  map[string]entry  `json:"mods"`
	Blobs map[string]string `json:"blobs"`
}

type modioProvider struct {
	client *modio.Client
	game   string
}

// Register adds the modio factory to the given registry.
func Register(reg *provider.Registry) {
	reg.Register(Factory())
}

// Factory returns the registry entry for the hosted back-end.
func Factory() provider.Factory {
	return provider.Factory{
		ID:         FactoryID,
		New:        construct,
		CanProvide: CanProvide,
		Parameters: []provider.Parameter{
			{
				ID:          "game",
				Name:        "Game",
				Description: "Name-id of the game whose mod listing is searched",
			},
			{
				ID:          "api-key",
				Name:        "API key",
				Description: "Read-access key for the hosted API",
				Link:        "https://mod.io/me/access",
			},
			{
				ID:          "oauth-token",
				Name:        "OAuth token",
				Description: "Bearer token; required for subscriber-only downloads and the configuration check",
				Link:        "https://mod.io/me/access",
			},
			{
				ID:          "base-url",
				Name:        "API base URL",
				Description: "Override the API root, mainly for testing",
			},
		},
	}
}

func construct(params map[string]string) (provider.Provider, error) {
	game := params["game"]
	if game == "" {
		return nil, provider.ErrInitProvider(FactoryID, params, fmt.Errorf("missing required parameter %q", "game"))
	}
	client := modio.NewClient(params["base-url"], game, params["api-key"], params["oauth-token"])
	return &modioProvider{client: client, game: game}, nil
}

// CanProvide accepts hosted profile URLs.
func CanProvide(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "mod.io" || strings.HasSuffix(host, ".mod.io")
}

func (p *modioProvider) Resolve(ctx context.Context, rawSpec provider.ModSpecification, update bool, c *cache.Cache) (*provider.ModResponse, error) {
	s, err := parseSpec(rawSpec.ID)
	if err != nil {
		return nil, err
	}

	if !update {
		sec, err := cache.Get[section](c, FactoryID)
		if err != nil {
			return nil, provider.ErrCache(err)
		}
		if e, ok := sec.Mods[s.nameID]; ok && consistent(s, e) {
			return p.response(rawSpec, s, e), nil
		}
	}

	e, err := p.refresh(ctx, rawSpec.ID, s, c)
	if err != nil {
		return nil, err
	}
	return p.response(rawSpec, s, *e), nil
}

// consistent reports whether a cached entry can answer the spec without
// consulting the source, honoring the spec's pinning semantics.
func consistent(s spec, e entry) bool {
	if s.hasMod && e.ModID != s.modID {
		return false
	}
	if s.hasFile && e.ModfileID != s.modfileID {
		// A pinned older modfile is not what the entry describes;
		// refresh to pick up its version and download location.
		return false
	}
	return e.ModfileID != 0
}

// refresh consults the authoritative source for the spec and rewrites
// the cache entry before returning it.
func (p *modioProvider) refresh(ctx context.Context, rawURL string, s spec, c *cache.Cache) (*entry, error) {
	var mod *modio.Mod
	if s.hasMod {
		m, err := p.client.Mod(ctx, s.modID)
		if err != nil {
			return nil, provider.ErrHostedAPI(s.modID, err)
		}
		mod = m
	} else {
		mods, err := p.client.ModsByNameID(ctx, s.nameID)
		if err != nil {
			return nil, &provider.Error{Kind: provider.KindHostedAPI, Err: err}
		}
		switch len(mods) {
		case 0:
			return nil, provider.ErrNoModsForName(s.nameID)
		case 1:
			mod = &mods[0]
		default:
			return nil, provider.ErrAmbiguousName(s.nameID)
		}
	}

	var mf *modio.Modfile
	switch {
	case s.hasFile && (mod.Modfile == nil || mod.Modfile.ID != s.modfileID):
		f, err := p.client.Modfile(ctx, mod.ID, s.modfileID)
		if err != nil {
			return nil, provider.ErrHostedAPI(mod.ID, err)
		}
		mf = f
	case mod.Modfile != nil:
		mf = mod.Modfile
	default:
		return nil, provider.ErrNoAssociatedModfile(rawURL)
	}

	e := entry{
		ModID:     mod.ID,
		NameID:    mod.NameID,
		Name:      mod.Name,
		Author:    mod.SubmittedBy.Username,
		Version:   mf.Version,
		ModfileID: mf.ID,
		Filesize:  mf.Filesize,
		BinaryURL: mf.Download.BinaryURL,
	}
	if err := cache.Update(c, FactoryID, func(sec *section) error {
		if sec.Mods == nil {
			sec.Mods = make(map[string]entry)
		}
		sec.Mods[s.nameID] = e
		return nil
	}); err != nil {
		return nil, provider.ErrCache(err)
	}
	return &e, nil
}

func (p *modioProvider) response(rawSpec provider.ModSpecification, s spec, e entry) *provider.ModResponse {
	fileID := e.ModfileID
	if s.hasFile {
		fileID = s.modfileID
	}
	return &provider.ModResponse{
		Resolution: provider.ModResolution{
			URL:        s.canonical(e.ModID, fileID),
			Pinned:     s.hasFile,
			ProviderID: FactoryID,
		},
		Info: provider.ModInfo{
			Spec:       rawSpec,
			ProviderID: FactoryID,
			Name:       e.Name,
			Version:    e.Version,
			Author:     e.Author,
			ModID:      e.ModID,
		},
	}
}

func (p *modioProvider) Fetch(ctx context.Context, res provider.ModResolution, update bool, c *cache.Cache, blobs *blobcache.Cache, sink provider.Sink) (string, error) {
	s, err := parseSpec(res.URL)
	if err != nil {
		return "", err
	}
	if !s.hasMod || !s.hasFile {
		return "", provider.ErrInvalidURL(res.URL)
	}
	blobKey := fmt.Sprintf("%d,%d", s.modID, s.modfileID)

	sec, err := cache.Get[section](c, FactoryID)
	if err != nil {
		return "", provider.ErrCache(err)
	}
	if !update {
		if blobPath, ok := blobs.Has(sec.Blobs[blobKey]); ok {
			provider.Emit(sink, provider.FetchComplete{Res: res})
			return blobPath, nil
		}
	}

	binaryURL, size := "", int64(0)
	if e, ok := sec.Mods[s.nameID]; ok && e.ModfileID == s.modfileID && e.BinaryURL != "" {
		binaryURL, size = e.BinaryURL, e.Filesize
	} else {
		mf, err := p.client.Modfile(ctx, s.modID, s.modfileID)
		if err != nil {
			return "", provider.ErrHostedAPI(s.modID, err)
		}
		binaryURL, size = mf.Download.BinaryURL, mf.Filesize
	}
	if binaryURL == "" {
		return "", provider.ErrNoAssociatedModfile(res.URL)
	}

	body, length, err := p.client.Download(ctx, binaryURL, s.modID)
	if err != nil {
		return "", provider.ErrHostedAPI(s.modID, err)
	}
	defer body.Close()
	if length > 0 {
		size = length
	}

	cw := provider.NewCountingWriter(sink, res, uint64(size))
	hash, blobPath, err := blobs.Store(io.TeeReader(body, cw))
	if err != nil {
		return "", provider.ErrIO(s.modID, err)
	}
	if err := cache.Update(c, FactoryID, func(sec *section) error {
		if sec.Blobs == nil {
			sec.Blobs = make(map[string]string)
		}
		sec.Blobs[blobKey] = hash
		return nil
	}); err != nil {
		return "", provider.ErrCache(err)
	}
	provider.Emit(sink, provider.FetchComplete{Res: res})
	return blobPath, nil
}

// UpdateCache refreshes every cached mod from the hosted listing in
// batched requests.
func (p *modioProvider) UpdateCache(ctx context.Context, c *cache.Cache) error {
	sec, err := cache.Get[section](c, FactoryID)
	if err != nil {
		return provider.ErrCache(err)
	}
	var ids []uint32
	for _, e := range sec.Mods {
		ids = append(ids, e.ModID)
	}

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(ids); start += updateBatch {
		chunk := ids[start:min(start+updateBatch, len(ids))]
		g.Go(func() error {
			mods, err := p.client.Mods(ctx, chunk)
			if err != nil {
				return &provider.Error{Kind: provider.KindHostedAPI, Err: err}
			}
			return cache.Update(c, FactoryID, func(sec *section) error {
				for _, mod := range mods {
					if mod.Modfile == nil {
						continue
					}
					sec.Mods[mod.NameID] = entry{
						ModID:     mod.ID,
						NameID:    mod.NameID,
						Name:      mod.Name,
						Author:    mod.SubmittedBy.Username,
						Version:   mod.Modfile.Version,
						ModfileID: mod.Modfile.ID,
						Filesize:  mod.Modfile.Filesize,
						BinaryURL: mod.Modfile.Download.BinaryURL,
					}
				}
				return nil
			})
		})
	}
	return g.Wait()
}

// Check validates the configured credentials without mutating anything.
func (p *modioProvider) Check(ctx context.Context) error {
	if err := p.client.Me(ctx); err != nil {
		return &provider.Error{Kind: provider.KindHostedAPI, Err: err}
	}
	return nil
}

func (p *modioProvider) ModInfo(rawSpec provider.ModSpecification, c *cache.Cache) (provider.ModInfo, bool) {
	s, err := parseSpec(rawSpec.ID)
	if err != nil {
		return provider.ModInfo{}, false
	}
	sec, err := cache.Get[section](c, FactoryID)
	if err != nil {
		return provider.ModInfo{}, false
	}
	e, ok := sec.Mods[s.nameID]
	if !ok {
		return provider.ModInfo{}, false
	}
	return provider.ModInfo{
		Spec:       rawSpec,
		ProviderID: FactoryID,
		Name:       e.Name,
		Version:    e.Version,
		Author:     e.Author,
		ModID:      e.ModID,
	}, true
}

// IsPinned is decided by the spec shape alone: only an explicit modfile
// id pins the artifact.
func (p *modioProvider) IsPinned(rawSpec provider.ModSpecification, c *cache.Cache) bool {
	s, err := parseSpec(rawSpec.ID)
	return err == nil && s.hasFile
}

func (p *modioProvider) VersionName(rawSpec provider.ModSpecification, c *cache.Cache) (string, bool) {
	info, ok := p.ModInfo(rawSpec, c)
	if !ok || info.Version == "" {
		return "", false
	}
	return info.Version, true
}
