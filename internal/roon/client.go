// Package roon is a client for a Roon-style library bridge: a stateful,
// cursor-based browse API over HTTP. Navigation is hierarchical: browse
// calls move a server-side cursor and load calls page through the current
// level. Callers must reset to the albums root before drilling into an
// item, or subsequent navigation is corrupted.
package roon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/pieterkdevilliers/music-db/internal/constants"
	"github.com/pieterkdevilliers/music-db/internal/logger"
)

var trackTitleRe = regexp.MustCompile(`^\d+\.\s+(.+)$`)

// AppInfo identifies this extension to the core during registration.
var AppInfo = map[string]string{
	"extension_id":    "music_db_importer",
	"display_name":    "Music DB Importer",
	"display_version": "1.0.0",
	"publisher":       "music-db",
}

var ErrNotConnected = errors.New("not connected to core")

// Status reports connection and authorization state separately. A stale
// cached token must not be reported as authorized while the core is
// unreachable, so authorized implies connected.
type Status struct {
	Connected  bool    `json:"connected"`
	Authorized bool    `json:"authorized"`
	CoreName   *string `json:"core_name"`
}

// Item is one entry of a browse level. Non-album action entries (e.g.
// "Play Album") carry no item key.
type Item struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	ItemKey  string `json:"item_key"`
	ImageKey string `json:"image_key"`
}

type Client struct {
	httpClient *http.Client
	tokenPath  string
	log        *logger.Logger

	mu       sync.Mutex
	baseURL  string
	token    string
	coreName string
}

func NewClient(tokenPath string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: constants.DefaultHTTPTimeout},
		tokenPath:  tokenPath,
		log:        log.WithComponent("roon"),
	}
}

// Connect points the client at a core. The call itself is cheap; pairing
// completes asynchronously once the user approves the extension on the
// core, observed by polling GetStatus until authorized.
func (c *Client) Connect(host string, port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = fmt.Sprintf("http://%s:%d", host, port)
	c.coreName = ""
	c.token = c.loadToken()
}

// GetStatus polls the core. Connected means the core answered; authorized
// additionally requires a registration token, which is requested on each
// poll until granted and then persisted for future runs.
func (c *Client) GetStatus(ctx context.Context) Status {
	c.mu.Lock()
	baseURL := c.baseURL
	token := c.token
	c.mu.Unlock()

	if baseURL == "" {
		return Status{}
	}

	var info struct {
		CoreName string `json:"core_name"`
	}
	if err := c.getJSON(ctx, baseURL+"/status", &info); err != nil || info.CoreName == "" {
		return Status{}
	}

	if token == "" {
		token = c.register(ctx, baseURL)
	}

	c.mu.Lock()
	c.coreName = info.CoreName
	if token != "" {
		c.token = token
		c.saveToken(token)
	}
	c.mu.Unlock()

	name := info.CoreName
	return Status{
		Connected:  true,
		Authorized: token != "",
		CoreName:   &name,
	}
}

// Authorized reports whether the client holds a registration token for a
// reachable core, without a network round trip.
func (c *Client) Authorized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseURL != "" && c.token != "" && c.coreName != ""
}

// ResetBrowse pops the browse cursor back to the albums root and returns
// the service-reported album count. The count can disagree with the number
// of items actually enumerated, so callers should not trust it as a final
// denominator.
func (c *Client) ResetBrowse(ctx context.Context) (int, error) {
	var resp struct {
		List struct {
			Count int `json:"count"`
		} `json:"list"`
	}
	err := c.postJSON(ctx, "/browse", map[string]interface{}{
		"hierarchy": "albums",
		"pop_all":   true,
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.List.Count, nil
}

// BrowseItem drills the cursor into one item of the current level.
func (c *Client) BrowseItem(ctx context.Context, itemKey string) error {
	return c.postJSON(ctx, "/browse", map[string]interface{}{
		"hierarchy": "albums",
		"item_key":  itemKey,
	}, nil)
}

// LoadPage loads one page of the current browse level.
func (c *Client) LoadPage(ctx context.Context, offset, count int) ([]Item, error) {
	var resp struct {
		Items []Item `json:"items"`
	}
	err := c.postJSON(ctx, "/load", map[string]interface{}{
		"hierarchy": "albums",
		"offset":    offset,
		"count":     count,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// FetchAlbumDetail drills into an album and collects its track titles and
// artwork. The cursor is reset to the albums root first so sequential
// calls always start from a known position.
func (c *Client) FetchAlbumDetail(ctx context.Context, itemKey, imageKey string) ([]string, []byte, error) {
	if _, err := c.ResetBrowse(ctx); err != nil {
		return nil, nil, err
	}
	if err := c.BrowseItem(ctx, itemKey); err != nil {
		return nil, nil, err
	}

	var tracks []string
	offset := 0
	for {
		items, err := c.LoadPage(ctx, offset, constants.TrackPageSize)
		if err != nil {
			return nil, nil, err
		}
		tracks = append(tracks, parseTracks(items)...)
		if len(items) < constants.TrackPageSize {
			break
		}
		offset += constants.TrackPageSize
	}

	// Artwork is best-effort: a missing or empty image is "no art".
	var image []byte
	if imageKey != "" {
		image = c.GetImage(ctx, imageKey)
	}
	return tracks, image, nil
}

// GetImage fetches an image by key through the core's image endpoint.
// Returns nil on any failure; each failure is logged before the caller
// treats it as "no art".
func (c *Client) GetImage(ctx context.Context, imageKey string) []byte {
	c.mu.Lock()
	baseURL := c.baseURL
	token := c.token
	c.mu.Unlock()
	if baseURL == "" {
		c.log.Debug("image fetch skipped, not connected", "image_key", imageKey)
		return nil
	}

	u := fmt.Sprintf("%s/image/%s?scale=fit&width=600&height=600", baseURL, imageKey)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		c.log.Debug("image request build failed", "image_key", imageKey, "error", err)
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("image fetch failed", "image_key", imageKey, "error", err)
		return nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		c.log.Debug("image fetch rejected", "image_key", imageKey, "status", resp.StatusCode)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Debug("image read failed", "image_key", imageKey, "error", err)
		return nil
	}
	if len(data) == 0 {
		c.log.Debug("image response empty", "image_key", imageKey)
		return nil
	}
	return data
}

// Probe fetches raw browse data for the first count albums, for reviewing
// the available fields before a full import.
func (c *Client) Probe(ctx context.Context, count int) (map[string]interface{}, error) {
	if !c.Authorized() {
		return nil, ErrNotConnected
	}

	total, err := c.ResetBrowse(ctx)
	if err != nil {
		return nil, err
	}
	albums, err := c.LoadPage(ctx, 0, count)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"reported_total": total,
		"albums":         albums,
	}

	if len(albums) > 0 && albums[0].ItemKey != "" {
		tracks, _, err := c.FetchAlbumDetail(ctx, albums[0].ItemKey, "")
		if err == nil {
			result["first_album_tracks"] = tracks
		}
	}
	return result, nil
}

func parseTracks(items []Item) []string {
	var tracks []string
	for _, item := range items {
		if m := trackTitleRe.FindStringSubmatch(item.Title); m != nil {
			tracks = append(tracks, m[1])
		}
	}
	return tracks
}

func (c *Client) register(ctx context.Context, baseURL string) string {
	body, err := json.Marshal(AppInfo)
	if err != nil {
		return ""
	}
	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/register", bytes.NewReader(body))
	if err != nil {
		return ""
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ""
	}
	return out.Token
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("core returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, path string, body map[string]interface{}, out interface{}) error {
	c.mu.Lock()
	baseURL := c.baseURL
	token := c.token
	c.mu.Unlock()
	if baseURL == "" || token == "" {
		return ErrNotConnected
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("core returned status %d", resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) loadToken() string {
	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		return ""
	}
	var stored struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		return ""
	}
	return stored.Token
}

func (c *Client) saveToken(token string) {
	data, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.tokenPath), constants.DirPermissions); err != nil {
		return
	}
	_ = os.WriteFile(c.tokenPath, data, constants.FilePermissions)
}
