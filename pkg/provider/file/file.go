// Package file provides mods from the local filesystem. A spec is a
// file:// URL or a bare path; an exact path is inherently pinned.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modm/pkg/blobcache"
	"modm/pkg/cache"
	"modm/pkg/provider"
)

// FactoryID identifies this back-end in the registry and names its
// cache section.
const FactoryID = "file"

const shortHashLen = 10

// entry is what the file provider remembers about one resolved path.
type entry struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	// Hash is the sha256 of the file content, which doubles as the
	// blob key once fetched.
	Hash string `json:"hash"`
}

type index map[string]entry

type fileProvider struct{}

// Register adds the file factory to the given registry.
func Register(reg *provider.Registry) {
	reg.Register(Factory())
}

// Factory returns the registry entry for the file back-end. It takes no
// configuration parameters.
func Factory() provider.Factory {
	return provider.Factory{
		ID: FactoryID,
		New: func(map[string]string) (provider.Provider, error) {
			return &fileProvider{}, nil
		},
		CanProvide: CanProvide,
	}
}

// CanProvide accepts file:// URLs and scheme-less paths.
func CanProvide(url string) bool {
	return strings.HasPrefix(url, "file://") || !strings.Contains(url, "://")
}

// canonical turns a spec or resolution address into file://<abspath>,
// the form used as cache key and resolution URL.
func canonical(addr string) (url string, path string, err error) {
	path = strings.TrimPrefix(addr, "file://")
	path, err = filepath.Abs(path)
	if err != nil {
		return "", "", err
	}
	return "file://" + path, path, nil
}

func (p *fileProvider) Resolve(ctx context.Context, spec provider.ModSpecification, update bool, c *cache.Cache) (*provider.ModResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, provider.ErrRequest(spec.ID, err)
	}
	url, path, err := canonical(spec.ID)
	if err != nil {
		return nil, provider.ErrInvalidURL(spec.ID)
	}

	if !update {
		idx, err := cache.Get[index](c, FactoryID)
		if err != nil {
			return nil, provider.ErrCache(err)
		}
		if e, ok := idx[url]; ok {
			return response(url, e), nil
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, provider.ErrBufferIO(url, err)
	}
	hash, err := hashFile(path)
	if err != nil {
		return nil, provider.ErrBufferIO(url, err)
	}
	e := entry{Path: path, Size: info.Size(), ModTime: info.ModTime(), Hash: hash}
	if err := cache.Update(c, FactoryID, func(idx *index) error {
		if *idx == nil {
			*idx = make(index)
		}
		(*idx)[url] = e
		return nil
	}); err != nil {
		return nil, provider.ErrCache(err)
	}
	return response(url, e), nil
}

func (p *fileProvider) Fetch(ctx context.Context, res provider.ModResolution, update bool, c *cache.Cache, blobs *blobcache.Cache, sink provider.Sink) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", provider.ErrRequest(res.URL, err)
	}
	url, path, err := canonical(res.URL)
	if err != nil {
		return "", provider.ErrInvalidURL(res.URL)
	}

	idx, err := cache.Get[index](c, FactoryID)
	if err != nil {
		return "", provider.ErrCache(err)
	}
	if e, ok := idx[url]; ok && !update {
		if blobPath, ok := blobs.Has(e.Hash); ok {
			provider.Emit(sink, provider.FetchComplete{Res: res})
			return blobPath, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", provider.ErrBufferIO(url, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", provider.ErrBufferIO(url, err)
	}

	cw := provider.NewCountingWriter(sink, res, uint64(info.Size()))
	hash, blobPath, err := blobs.Store(io.TeeReader(f, cw))
	if err != nil {
		return "", provider.ErrBlobCache(err)
	}
	if err := cache.Update(c, FactoryID, func(idx *index) error {
		if *idx == nil {
			*idx = make(index)
		}
		(*idx)[url] = entry{Path: path, Size: info.Size(), ModTime: info.ModTime(), Hash: hash}
		return nil
	}); err != nil {
		return "", provider.ErrCache(err)
	}
	cw.Done()
	return blobPath, nil
}

func (p *fileProvider) UpdateCache(ctx context.Context, c *cache.Cache) error {
	idx, err := cache.Get[index](c, FactoryID)
	if err != nil {
		return provider.ErrCache(err)
	}
	for url, e := range idx {
		if err := ctx.Err(); err != nil {
			return provider.ErrRequest(url, err)
		}
		info, err := os.Stat(e.Path)
		if err != nil {
			return provider.ErrBufferIO(url, err)
		}
		if info.Size() == e.Size && info.ModTime().Equal(e.ModTime) {
			continue
		}
		hash, err := hashFile(e.Path)
		if err != nil {
			return provider.ErrBufferIO(url, err)
		}
		if err := cache.Update(c, FactoryID, func(idx *index) error {
			(*idx)[url] = entry{Path: e.Path, Size: info.Size(), ModTime: info.ModTime(), Hash: hash}
			return nil
		}); err != nil {
			return provider.ErrCache(err)
		}
	}
	return nil
}

func (p *fileProvider) Check(ctx context.Context) error {
	return nil
}

func (p *fileProvider) ModInfo(spec provider.ModSpecification, c *cache.Cache) (provider.ModInfo, bool) {
	url, _, err := canonical(spec.ID)
	if err != nil {
		return provider.ModInfo{}, false
	}
	idx, err := cache.Get[index](c, FactoryID)
	if err != nil {
		return provider.ModInfo{}, false
	}
	e, ok := idx[url]
	if !ok {
		return provider.ModInfo{}, false
	}
	return modInfo(spec, e), true
}

func (p *fileProvider) IsPinned(spec provider.ModSpecification, c *cache.Cache) bool {
	// An exact path always denotes exactly one artifact.
	return true
}

func (p *fileProvider) VersionName(spec provider.ModSpecification, c *cache.Cache) (string, bool) {
	info, ok := p.ModInfo(spec, c)
	if !ok {
		return "", false
	}
	return info.Version, true
}

func response(url string, e entry) *provider.ModResponse {
	res := provider.ModResolution{URL: url, Pinned: true, ProviderID: FactoryID}
	return &provider.ModResponse{
		Resolution: res,
		Info: provider.ModInfo{
			Spec:       provider.NewSpec(url),
			ProviderID: FactoryID,
			Name:       filepath.Base(e.Path),
			Version:    shortHash(e.Hash),
		},
	}
}

func modInfo(spec provider.ModSpecification, e entry) provider.ModInfo {
	return provider.ModInfo{
		Spec:       spec,
		ProviderID: FactoryID,
		Name:       filepath.Base(e.Path),
		Version:    shortHash(e.Hash),
	}
}

func shortHash(hash string) string {
	if len(hash) > shortHashLen {
		return hash[:shortHashLen]
	}
	return hash
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
