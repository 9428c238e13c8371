// Package script lets users plug new back-ends into the factory
// registry without writing Go. A Starlark file declares an id, its
// configuration parameters, an address predicate and a resolve
// function; fetching the resolved artifact is delegated to the generic
// HTTP transfer. Scripts get the same builtins the hosted recipes of
// this codebase's ancestry had: http.get, json, jq.query and
// html.parse.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"modm/pkg/blobcache"
	"modm/pkg/cache"
	"modm/pkg/provider"
	"modm/pkg/provider/web"
)

// Script is one parsed provider definition. Starlark threads are not
// safe for concurrent use, so every call into script space is
// serialized on mu.
// Mutable
type Script struct {
	mu         sync.Mutex
	name       string
	id         string
	thread     *starlark.Thread
	canProvide starlark.Value
	resolve    starlark.Value
	params     []provider.Parameter
	hc         *http.Client
}

// Load parses every *.star file under dir and registers the factory
// each one declares. A missing directory is not an error; an invalid
// script is.
func Load(dir string, reg *provider.Registry) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading script directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".star") {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("reading script %s: %w", e.Name(), err)
		}
		f, err := Parse(strings.TrimSuffix(e.Name(), ".star"), string(src))
		if err != nil {
			return fmt.Errorf("parsing script %s: %w", e.Name(), err)
		}
		reg.Register(f)
		slog.Debug("registered scripted provider", "factory", f.ID, "script", e.Name())
	}
	return nil
}

// Parse evaluates a provider script and returns its factory. The script
// must define a string `id`, a `can_provide(url)` function and a
// `resolve(url, update, ctx)` function; `parameters`, a list of
// {id, name, description, link} dicts, is optional.
func Parse(name, source string) (provider.Factory, error) {
	s := &Script{
		name: name,
		hc:   &http.Client{},
		thread: &starlark.Thread{
			Name: name,
			Print: func(thread *starlark.Thread, msg string) {
				slog.Info("script output", "script", thread.Name, "message", msg)
			},
		},
	}

	builtins := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"http":   starlarkstruct.FromStringDict(starlark.String("http"), httpBuiltins(s.hc)),
		"json":   starlarkstruct.FromStringDict(starlark.String("json"), jsonBuiltins()),
		"jq":     starlarkstruct.FromStringDict(starlark.String("jq"), jqBuiltins()),
		"html":   starlarkstruct.FromStringDict(starlark.String("html"), htmlBuiltins()),
	}
	globals, err := starlark.ExecFile(s.thread, name+".star", source, builtins)
	if err != nil {
		return provider.Factory{}, err
	}

	id, ok := globals["id"].(starlark.String)
	if !ok || id == "" {
		return provider.Factory{}, fmt.Errorf("script %s: missing string global %q", name, "id")
	}
	s.id = string(id)
	if s.canProvide, ok = globals["can_provide"]; !ok {
		return provider.Factory{}, fmt.Errorf("script %s: missing function %q", name, "can_provide")
	}
	if s.resolve, ok = globals["resolve"]; !ok {
		return provider.Factory{}, fmt.Errorf("script %s: missing function %q", name, "resolve")
	}
	if list, ok := globals["parameters"].(*starlark.List); ok {
		for i := 0; i < list.Len(); i++ {
			d, ok := list.Index(i).(*starlark.Dict)
			if !ok {
				continue
			}
			s.params = append(s.params, provider.Parameter{
				ID:          dictString(d, "id"),
				Name:        dictString(d, "name"),
				Description: dictString(d, "description"),
				Link:        dictString(d, "link"),
			})
		}
	}

	return provider.Factory{
		ID: s.id,
		New: func(params map[string]string) (provider.Provider, error) {
			return &scriptProvider{script: s, config: params}, nil
		},
		CanProvide: s.CanProvide,
		Parameters: s.params,
	}, nil
}

// CanProvide asks the script whether it handles url. Script failures
// count as "no".
func (s *Script) CanProvide(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := starlark.Call(s.thread, s.canProvide, starlark.Tuple{starlark.String(url)}, nil)
	if err != nil {
		slog.Warn("script can_provide failed", "script", s.name, "url", url, "error", err)
		return false
	}
	return bool(res.Truth())
}

func (s *Script) callResolve(ctx context.Context, url string, update bool, config map[string]string) (*starlark.Dict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thread.SetLocal(ctxLocal, ctx)
	defer s.thread.SetLocal(ctxLocal, nil)

	scriptCtx := starlarkstruct.FromStringDict(starlark.String("context"), starlark.StringDict{
		"params": starValue(config),
	})
	res, err := starlark.Call(s.thread, s.resolve, starlark.Tuple{
		starlark.String(url), starlark.Bool(update), scriptCtx,
	}, nil)
	if err != nil {
		return nil, err
	}
	dict, ok := res.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("resolve must return a dict, got %s", res.Type())
	}
	return dict, nil
}

// entry is the cached state of one script-resolved artifact, keyed by
// artifact URL.
type entry struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Author  string `json:"author,omitempty"`
	Pinned  bool   `json:"pinned"`
	Hash    string `json:"hash,omitempty"`
}

type section struct {
	Specs map[string]string `json:"specs"`
	Mods  map[string]entry  `json:"mods"`
}

type scriptProvider struct {
	script *Script
	config map[string]string
}

func (p *scriptProvider) Resolve(ctx context.Context, spec provider.ModSpecification, update bool, c *cache.Cache) (*provider.ModResponse, error) {
	id := p.script.id
	if !update {
		sec, err := cache.Get[section](c, id)
		if err != nil {
			return nil, provider.ErrCache(err)
		}
		if resolved, ok := sec.Specs[spec.ID]; ok {
			if e, ok := sec.Mods[resolved]; ok {
				return p.response(spec, resolved, e), nil
			}
		}
	}

	dict, err := p.script.callResolve(ctx, spec.ID, update, p.config)
	if err != nil {
		return nil, &provider.Error{Kind: provider.KindNoProvider, URL: spec.ID, FactoryID: id, Err: err}
	}
	resolved := dictString(dict, "url")
	if resolved == "" {
		return nil, provider.ErrInvalidURL(spec.ID)
	}
	e := entry{
		Name:    dictString(dict, "name"),
		Version: dictString(dict, "version"),
		Author:  dictString(dict, "author"),
		Pinned:  dictBool(dict, "pinned"),
	}
	if e.Name == "" {
		e.Name = spec.ID
	}
	if err := cache.Update(c, id, func(sec *section) error {
		if sec.Specs == nil {
			sec.Specs = make(map[string]string)
			sec.Mods = make(map[string]entry)
		}
		if prev, ok := sec.Mods[resolved]; ok {
			e.Hash = prev.Hash
		}
		sec.Specs[spec.ID] = resolved
		sec.Mods[resolved] = e
		return nil
	}); err != nil {
		return nil, provider.ErrCache(err)
	}
	return p.response(spec, resolved, e), nil
}

func (p *scriptProvider) Fetch(ctx context.Context, res provider.ModResolution, update bool, c *cache.Cache, blobs *blobcache.Cache, sink provider.Sink) (string, error) {
	id := p.script.id
	sec, err := cache.Get[section](c, id)
	if err != nil {
		return "", provider.ErrCache(err)
	}
	if e, ok := sec.Mods[res.URL]; ok && !update {
		if blobPath, ok := blobs.Has(e.Hash); ok {
			provider.Emit(sink, provider.FetchComplete{Res: res})
			return blobPath, nil
		}
	}

	hash, blobPath, err := web.Transfer(ctx, p.script.hc, res, blobs, sink)
	if err != nil {
		return "", err
	}
	if err := cache.Update(c, id, func(sec *section) error {
		if sec.Mods == nil {
			sec.Mods = make(map[string]entry)
		}
		e := sec.Mods[res.URL]
		e.Hash = hash
		sec.Mods[res.URL] = e
		return nil
	}); err != nil {
		return "", provider.ErrCache(err)
	}
	provider.Emit(sink, provider.FetchComplete{Res: res})
	return blobPath, nil
}

// UpdateCache re-resolves every known spec. Script calls are serialized
// by the script mutex, so this runs entries one at a time.
func (p *scriptProvider) UpdateCache(ctx context.Context, c *cache.Cache) error {
	sec, err := cache.Get[section](c, p.script.id)
	if err != nil {
		return provider.ErrCache(err)
	}
	for specURL := range sec.Specs {
		if _, err := p.Resolve(ctx, provider.NewSpec(specURL), true, c); err != nil {
			return err
		}
	}
	return nil
}

// Check verifies the script parsed into the required shape; that
// already happened at load time, so a constructed provider is usable.
func (p *scriptProvider) Check(ctx context.Context) error {
	return nil
}

func (p *scriptProvider) ModInfo(spec provider.ModSpecification, c *cache.Cache) (provider.ModInfo, bool) {
	sec, err := cache.Get[section](c, p.script.id)
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
		ProviderID: p.script.id,
		Name:       e.Name,
		Version:    e.Version,
		Author:     e.Author,
	}, true
}

// IsPinned reports what the script declared at resolution time; an
// unresolved spec is treated as floating.
func (p *scriptProvider) IsPinned(spec provider.ModSpecification, c *cache.Cache) bool {
	sec, err := cache.Get[section](c, p.script.id)
	if err != nil {
		return false
	}
	resolved, ok := sec.Specs[spec.ID]
	if !ok {
		return false
	}
	return sec.Mods[resolved].Pinned
}

func (p *scriptProvider) VersionName(spec provider.ModSpecification, c *cache.Cache) (string, bool) {
	info, ok := p.ModInfo(spec, c)
	if !ok || info.Version == "" {
		return "", false
	}
	return info.Version, true
}

func (p *scriptProvider) response(spec provider.ModSpecification, resolved string, e entry) *provider.ModResponse {
	return &provider.ModResponse{
		Resolution: provider.ModResolution{URL: resolved, Pinned: e.Pinned, ProviderID: p.script.id},
		Info: provider.ModInfo{
			Spec:       spec,
			ProviderID: p.script.id,
			Name:       e.Name,
			Version:    e.Version,
			Author:     e.Author,
		},
	}
}
