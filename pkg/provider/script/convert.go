package script

import (
	"fmt"

	"go.starlark.net/starlark"
)

// starValue converts a plain Go value into its Starlark counterpart.
func starValue(v any) starlark.Value {
	switch x := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(x)
	case string:
		return starlark.String(x)
	case int:
		return starlark.MakeInt(x)
	case int64:
		return starlark.MakeInt64(x)
	case float64:
		return starlark.Float(x)
	case []any:
		var list []starlark.Value
		for _, item := range x {
			list = append(list, starValue(item))
		}
		return starlark.NewList(list)
	case map[string]any:
		dict := starlark.NewDict(len(x))
		for k, v := range x {
			dict.SetKey(starlark.String(k), starValue(v))
		}
		return dict
	case map[string]string:
		dict := starlark.NewDict(len(x))
		for k, v := range x {
			dict.SetKey(starlark.String(k), starlark.String(v))
		}
		return dict
	default:
		return starlark.None
	}
}

// goValue converts a Starlark value into a plain Go value.
func goValue(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.String:
		return string(x), nil
	case starlark.Int:
		i, _ := x.Int64()
		return i, nil
	case starlark.Float:
		return float64(x), nil
	case *starlark.List:
		var list []any
		for i := 0; i < x.Len(); i++ {
			item, err := goValue(x.Index(i))
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	case *starlark.Dict:
		m := make(map[string]any)
		for _, key := range x.Keys() {
			k, ok := key.(starlark.String)
			if !ok {
				continue
			}
			val, _, _ := x.Get(key)
			gv, err := goValue(val)
			if err != nil {
				return nil, err
			}
			m[string(k)] = gv
		}
		return m, nil
	default:
		return nil, fmt.Errorf("cannot convert %s to a go value", v.Type())
	}
}

func dictString(dict *starlark.Dict, key string) string {
	val, ok, _ := dict.Get(starlark.String(key))
	if !ok {
		return ""
	}
	if s, ok := val.(starlark.String); ok {
		return s.GoString()
	}
	return ""
}

func dictBool(dict *starlark.Dict, key string) bool {
	val, ok, _ := dict.Get(starlark.String(key))
	if !ok {
		return false
	}
	return bool(val.Truth())
}
