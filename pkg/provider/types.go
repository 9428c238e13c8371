// Package provider defines the contract shared by every mod back-end:
// resolving a mod specification to a concrete downloadable artifact,
// streaming that artifact into the local blob store with progress
// reporting, and keeping the shared provider cache current. Concrete
// back-ends live in the subpackages (file, web, modio, script) and plug
// into the factory registry defined here.
package provider

// ModSpecification identifies a mod independently of any back-end.
// It is created once from user or config input and never mutated;
// equality is structural.
// Immutable
type ModSpecification struct {
	ID string `json:"id"`
}

// NewSpec wraps a raw identifier (usually a URL-like string) in a
// specification.
func NewSpec(id string) ModSpecification {
	return ModSpecification{ID: id}
}

func (s ModSpecification) String() string {
	return s.ID
}

// ModResolution is a concrete, provider-addressable pointer to a
// fetchable artifact. Resolving the same specification twice against an
// unchanged cache generation yields equal resolutions.
// Immutable
type ModResolution struct {
	// URL addresses the artifact in the owning provider's scheme.
	URL string `json:"url"`
	// Pinned reports whether the resolution denotes an exact version
	// rather than a floating "latest" pointer.
	Pinned bool `json:"pinned"`
	// ProviderID names the factory whose provider produced this
	// resolution and must fetch it.
	ProviderID string `json:"provider_id"`
}

func (r ModResolution) String() string {
	return r.URL
}

// ModInfo is descriptive metadata about a mod/version. It is always
// served from the provider cache, never from the network.
type ModInfo struct {
	Spec       ModSpecification `json:"spec"`
	ProviderID string           `json:"provider_id"`
	Name       string           `json:"name"`
	Version    string           `json:"version"`
	Author     string           `json:"author,omitempty"`
	ModID      uint32           `json:"mod_id,omitempty"`
}

// ModResponse is what a resolve call hands back to the caller: the
// resolution to fetch plus the metadata known at resolution time.
type ModResponse struct {
	Resolution ModResolution `json:"resolution"`
	Info       ModInfo       `json:"info"`
}
