package provider

import (
	"errors"
	"strings"
	"testing"
)

func stubFactory(id string, accepts string) Factory {
	return Factory{
		ID: id,
		New: func(map[string]string) (Provider, error) {
			return nil, nil
		},
		CanProvide: func(url string) bool {
			return strings.HasPrefix(url, accepts)
		},
	}
}

func TestRegistryFactoryFor(t *testing.T) {
	reg := NewRegistry()
	reg.Register(stubFactory("file", "file://"))
	reg.Register(stubFactory("http", "http"))

	f, err := reg.FactoryFor("file:///tmp/mod.pak")
	if err != nil {
		t.Fatalf("expected a match, got %v", err)
	}
	if f.ID != "file" {
		t.Errorf("expected factory 'file', got %s", f.ID)
	}
}

func TestRegistryFactoryForNoMatch(t *testing.T) {
	reg := NewRegistry()
	reg.Register(stubFactory("file", "file://"))

	_, err := reg.FactoryFor("gopher://unknown")
	if err == nil {
		t.Fatal("expected an error for an unmatched address")
	}
	if !errors.Is(err, &Error{Kind: KindProviderNotFound}) {
		t.Errorf("expected provider-not-found, got %v", err)
	}
}

func TestRegistryFirstRegisteredWins(t *testing.T) {
	reg := NewRegistry()
	reg.Register(stubFactory("a", "http"))
	reg.Register(stubFactory("b", "http"))

	f, err := reg.FactoryFor("http://example.com/mod.zip")
	if err != nil {
		t.Fatalf("expected a match, got %v", err)
	}
	if f.ID != "a" {
		t.Errorf("expected first registered factory, got %s", f.ID)
	}

	all := reg.FactoriesFor("http://example.com/mod.zip")
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Errorf("expected [a b] in registration order, got %v", all)
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register(stubFactory("file", "file://"))

	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	reg.Register(stubFactory("file", "file://"))
}

func TestRegistryIncompletePanics(t *testing.T) {
	reg := NewRegistry()
	defer func() {
		if recover() == nil {
			t.Error("expected incomplete registration to panic")
		}
	}()
	reg.Register(Factory{ID: "broken"})
}

func TestRegistryGet(t *testing.T) {
	reg := NewRegistry()
	reg.Register(stubFactory("file", "file://"))

	if _, ok := reg.Get("file"); !ok {
		t.Error("expected to find registered factory by id")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("expected miss for unknown id")
	}
}
