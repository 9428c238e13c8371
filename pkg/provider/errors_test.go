package provider

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrProviderNotFound("nowhere://x"), "could not find mod provider for <nowhere://x>"},
		{ErrNoProvider("http://a/b", "http"), "no provider found given <http://a/b> and factory http"},
		{ErrInvalidURL("::bad::"), "invalid url <::bad::>"},
		{ErrPreviewLink("https://mod.io/g/game/m/mod?preview=1"), "preview mod links cannot be added directly"},
		{ErrNoAssociatedModfile("https://mod.io/g/game/m/mod"), "does not have an associated modfile"},
		{ErrAmbiguousName("cool-mod"), `multiple mods returned for name "cool-mod"`},
		{ErrNoModsForName("cool-mod"), `no mods returned for name "cool-mod"`},
		{ErrUnexpectedContentType("http://a/b", "text/html"), "unexpected content type from <http://a/b>: text/html"},
		{ErrHostedAPI(7, errors.New("boom")), "while working on mod 7"},
		{ErrIO(9, errors.New("disk full")), "while working on mod 9"},
	}
	for _, c := range cases {
		if !strings.Contains(c.err.Error(), c.want) {
			t.Errorf("error %q does not contain %q", c.err.Error(), c.want)
		}
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := ErrPreviewLink("https://mod.io/g/g/m/m?preview=1")
	if !errors.Is(err, &Error{Kind: KindPreviewLink}) {
		t.Error("expected Is to match on kind")
	}
	if errors.Is(err, &Error{Kind: KindInvalidURL}) {
		t.Error("expected Is to reject a different kind")
	}

	wrapped := fmt.Errorf("while adding mod: %w", err)
	if !errors.Is(wrapped, &Error{Kind: KindPreviewLink}) {
		t.Error("expected Is to match through wrapping")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := ErrRequest("http://a/b", cause)
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable")
	}
}

func TestOptModID(t *testing.T) {
	if id, ok := OptModID(ErrHostedAPI(42, errors.New("x"))); !ok || id != 42 {
		t.Errorf("expected (42, true), got (%d, %t)", id, ok)
	}
	if id, ok := OptModID(ErrIO(7, errors.New("x"))); !ok || id != 7 {
		t.Errorf("expected (7, true), got (%d, %t)", id, ok)
	}
	if _, ok := OptModID(ErrInvalidURL("x")); ok {
		t.Error("expected no mod id on an invalid-url error")
	}
	if _, ok := OptModID(errors.New("plain")); ok {
		t.Error("expected no mod id on a plain error")
	}
}

func TestOptModIDThroughWrapping(t *testing.T) {
	inner := ErrHostedAPI(13, errors.New("rate limited"))
	outer := ErrFetch("https://mod.io/g/g/m/m", inner)
	if id, ok := OptModID(outer); !ok || id != 13 {
		t.Errorf("expected mod id 13 through the fetch wrapper, got (%d, %t)", id, ok)
	}

	plain := fmt.Errorf("batch item failed: %w", inner)
	if id, ok := OptModID(plain); !ok || id != 13 {
		t.Errorf("expected mod id 13 through fmt wrapping, got (%d, %t)", id, ok)
	}
}

func TestInitProviderParamsSorted(t *testing.T) {
	err := ErrInitProvider("modio", map[string]string{"game": "drg", "api-key": "k"}, errors.New("missing token"))
	msg := err.Error()
	if !strings.Contains(msg, `api-key="k", game="drg"`) {
		t.Errorf("expected sorted parameter rendering, got %q", msg)
	}
}
