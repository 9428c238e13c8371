package script

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/itchyny/gojq"
	"go.starlark.net/starlark"
)

// ctxLocal is the starlark thread-local under which the Go context of
// the current call is stowed, so I/O builtins honor cancellation.
const ctxLocal = "modm.ctx"

// maxBodySize caps what http.get will buffer into script space.
const maxBodySize = 8 << 20

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(ctxLocal).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

func httpBuiltins(hc *http.Client) starlark.StringDict {
	return starlark.StringDict{
		"get": starlark.NewBuiltin("get", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var rawURL string
			var headers *starlark.Dict
			if err := starlark.UnpackArgs("get", args, kwargs, "url", &rawURL, "headers?", &headers); err != nil {
				return nil, err
			}

			req, err := http.NewRequestWithContext(threadContext(thread), http.MethodGet, rawURL, nil)
			if err != nil {
				return nil, err
			}
			if headers != nil {
				for _, key := range headers.Keys() {
					val, _, _ := headers.Get(key)
					if ks, ok := key.(starlark.String); ok {
						if vs, ok := val.(starlark.String); ok {
							req.Header.Set(string(ks), string(vs))
						}
					}
				}
			}

			resp, err := hc.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if err != nil {
				return nil, err
			}

			hdrs := starlark.NewDict(len(resp.Header))
			for k := range resp.Header {
				hdrs.SetKey(starlark.String(strings.ToLower(k)), starlark.String(resp.Header.Get(k)))
			}
			out := starlark.NewDict(3)
			out.SetKey(starlark.String("status"), starlark.MakeInt(resp.StatusCode))
			out.SetKey(starlark.String("body"), starlark.String(body))
			out.SetKey(starlark.String("headers"), hdrs)
			return out, nil
		}),
	}
}

func jsonBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"decode": starlark.NewBuiltin("decode", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var s string
			if err := starlark.UnpackArgs("decode", args, kwargs, "data", &s); err != nil {
				return nil, err
			}
			var data any
			if err := json.Unmarshal([]byte(s), &data); err != nil {
				return nil, err
			}
			return starValue(data), nil
		}),
		"encode": starlark.NewBuiltin("encode", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var v starlark.Value
			if err := starlark.UnpackArgs("encode", args, kwargs, "value", &v); err != nil {
				return nil, err
			}
			data, err := goValue(v)
			if err != nil {
				return nil, err
			}
			enc, err := json.Marshal(data)
			if err != nil {
				return nil, err
			}
			return starlark.String(enc), nil
		}),
	}
}

func jqBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"query": starlark.NewBuiltin("query", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var query string
			var v starlark.Value
			if err := starlark.UnpackArgs("query", args, kwargs, "query", &query, "value", &v); err != nil {
				return nil, err
			}
			data, err := goValue(v)
			if err != nil {
				return nil, err
			}
			q, err := gojq.Parse(query)
			if err != nil {
				return nil, err
			}
			iter := q.Run(data)
			var results []starlark.Value
			for {
				res, ok := iter.Next()
				if !ok {
					break
				}
				if err, ok := res.(error); ok {
					return nil, err
				}
				results = append(results, starValue(res))
			}
			if len(results) == 1 {
				return results[0], nil
			}
			return starlark.NewList(results), nil
		}),
	}
}

func htmlBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"parse": starlark.NewBuiltin("parse", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var s string
			if err := starlark.UnpackArgs("parse", args, kwargs, "data", &s); err != nil {
				return nil, err
			}
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
			if err != nil {
				return nil, err
			}
			return &selection{sel: doc.Selection}, nil
		}),
	}
}

// selection wraps a goquery selection for script space.
type selection struct {
	sel *goquery.Selection
}

func (s *selection) String() string        { return "html.selection" }
func (s *selection) Type() string          { return "html.selection" }
func (s *selection) Freeze()               {}
func (s *selection) Truth() starlark.Bool  { return s.sel.Length() > 0 }
func (s *selection) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", s.Type()) }

func (s *selection) Attr(name string) (starlark.Value, error) {
	switch name {
	case "text":
		return starlark.NewBuiltin("text", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return starlark.String(s.sel.Text()), nil
		}), nil
	case "attr":
		return starlark.NewBuiltin("attr", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name string
			if err := starlark.UnpackArgs("attr", args, kwargs, "name", &name); err != nil {
				return nil, err
			}
			val, _ := s.sel.Attr(name)
			return starlark.String(val), nil
		}), nil
	case "find":
		return starlark.NewBuiltin("find", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var selector string
			if err := starlark.UnpackArgs("find", args, kwargs, "selector", &selector); err != nil {
				return nil, err
			}
			return &selection{sel: s.sel.Find(selector)}, nil
		}), nil
	case "each":
		return starlark.NewBuiltin("each", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var list []starlark.Value
			s.sel.Each(func(_ int, gs *goquery.Selection) {
				list = append(list, &selection{sel: gs})
			})
			return starlark.NewList(list), nil
		}), nil
	}
	return nil, nil
}

func (s *selection) AttrNames() []string {
	return []string{"text", "attr", "find", "each"}
}
