// Package modio is a small client for a mod.io-style hosted mod API.
// It covers the slice of the v1 surface the modio provider needs: mod
// lookup by id and by name-id, modfile metadata, the authenticated-user
// probe, and artifact download. All failures surface as *Error so
// callers can extract the mod id and classify transient conditions.
package modio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.mod.io/v1"

// Client talks to one game's mod listing. It is safe for concurrent use.
// Immutable
type Client struct {
	hc      *http.Client
	baseURL string
	game    string
	apiKey  string
	token   string
}

// NewClient builds a client for the given game (its name-id or numeric
// id). apiKey authenticates read endpoints; token, when set, is sent as
// a bearer credential and is required for Me and for subscriber-only
// downloads.
func NewClient(baseURL, game, apiKey, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		hc:      &http.Client{Timeout: 0}, // deadlines come from ctx
		baseURL: strings.TrimSuffix(baseURL, "/"),
		game:    game,
		apiKey:  apiKey,
		token:   token,
	}
}

// Mod is the subset of mod metadata the provider layer consumes.
type Mod struct {
	ID          uint32   `json:"id"`
	NameID      string   `json:"name_id"`
	Name        string   `json:"name"`
	Summary     string   `json:"summary"`
	ProfileURL  string   `json:"profile_url"`
	DateUpdated int64    `json:"date_updated"`
	SubmittedBy User     `json:"submitted_by"`
	Modfile     *Modfile `json:"modfile"`
}

type User struct {
	Username string `json:"username"`
}

// Modfile describes one released file of a mod.
type Modfile struct {
	ID       uint32   `json:"id"`
	ModID    uint32   `json:"mod_id"`
	Version  string   `json:"version"`
	Filesize int64    `json:"filesize"`
	Filehash Filehash `json:"filehash"`
	Download Download `json:"download"`
}

type Filehash struct {
	MD5 string `json:"md5"`
}

type Download struct {
	BinaryURL string `json:"binary_url"`
}

type listResponse struct {
	Data        []Mod `json:"data"`
	ResultCount int   `json:"result_count"`
	ResultTotal int   `json:"result_total"`
}

// Mod fetches a single mod by numeric id.
func (c *Client) Mod(ctx context.Context, id uint32) (*Mod, error) {
	var m Mod
	path := fmt.Sprintf("/games/%s/mods/%d", c.game, id)
	if err := c.get(ctx, path, nil, id, true, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ModsByNameID returns every visible mod whose name-id matches exactly.
// The hosted side treats name-ids as unique per game but the API shape
// is a filtered list, so ambiguity is the caller's to resolve.
func (c *Client) ModsByNameID(ctx context.Context, nameID string) ([]Mod, error) {
	q := url.Values{"name_id": {nameID}}
	var list listResponse
	if err := c.get(ctx, "/games/"+c.game+"/mods", q, 0, false, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// Mods fetches many mods in one filtered request.
func (c *Client) Mods(ctx context.Context, ids []uint32) ([]Mod, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	q := url.Values{"id-in": {strings.Join(parts, ",")}}
	var list listResponse
	if err := c.get(ctx, "/games/"+c.game+"/mods", q, 0, false, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// Modfile fetches one released file of a mod.
func (c *Client) Modfile(ctx context.Context, modID, fileID uint32) (*Modfile, error) {
	var mf Modfile
	path := fmt.Sprintf("/games/%s/mods/%d/files/%d", c.game, modID, fileID)
	if err := c.get(ctx, path, nil, modID, true, &mf); err != nil {
		return nil, err
	}
	return &mf, nil
}

// Me validates the configured credentials against the authenticated-user
// endpoint. It performs no mutation.
func (c *Client) Me(ctx context.Context) error {
	if c.token == "" {
		return &Error{Status: http.StatusUnauthorized, Message: "no OAuth token configured"}
	}
	var ignored struct{}
	return c.get(ctx, "/me", nil, 0, false, &ignored)
}

// Download opens the artifact at the given binary URL. The caller owns
// the returned body. Size is -1 when the server does not announce one.
func (c *Client) Download(ctx context.Context, binaryURL string, modID uint32) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, binaryURL, nil)
	if err != nil {
		return nil, 0, &Error{ModID: modID, HasModID: true, Message: err.Error()}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, &Error{ModID: modID, HasModID: true, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, 0, newError(resp, modID, true)
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, modID uint32, hasMod bool, out any) error {
	if q == nil {
		q = url.Values{}
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	u := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &Error{ModID: modID, HasModID: hasMod, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &Error{ModID: modID, HasModID: hasMod, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newError(resp, modID, hasMod)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{ModID: modID, HasModID: hasMod, Message: "decoding response: " + err.Error()}
	}
	return nil
}

func newError(resp *http.Response, modID uint32, hasMod bool) *Error {
	e := &Error{Status: resp.StatusCode, ModID: modID, HasModID: hasMod}

	var body struct {
		Error struct {
			Code     int    `json:"code"`
			ErrorRef int    `json:"error_ref"`
			Message  string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		e.Ref = body.Error.ErrorRef
		e.Message = body.Error.Message
	}
	if e.Message == "" {
		e.Message = resp.Status
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return e
}
