package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pieterkdevilliers/music-db/internal/constants"
)

const (
	DefaultUserAgent   = "music-db/1.0 (personal music library)"
	searchLimit        = 10
	minRequestInterval = 1100 * time.Millisecond
)

// Client talks to the MusicBrainz web service and the Cover Art Archive.
// All requests share one last-request timestamp: MusicBrainz allows roughly
// one request per second, so concurrent callers serialize through the same
// minimum-interval check.
type Client struct {
	httpClient  *http.Client
	artClient   *http.Client
	baseURL     string
	coverArtURL string
	userAgent   string
	lastRequest time.Time
	mu          sync.Mutex
}

func NewClient(baseURL, coverArtURL string) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		coverArtURL: strings.TrimSuffix(coverArtURL, "/"),
		userAgent:   DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
		artClient: &http.Client{
			Timeout: constants.ImageHTTPTimeout,
		},
	}
}

// ReleaseCandidate is one search hit, simplified for display and for the
// art resolver's top-candidate pick.
type ReleaseCandidate struct {
	MBID       string `json:"mbid"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Year       *int   `json:"year"`
	Label      string `json:"label,omitempty"`
	Country    string `json:"country,omitempty"`
	TrackCount int    `json:"track_count"`
}

// Release is a full release fetch, used to pre-populate a manual album form.
type Release struct {
	MBID   string   `json:"mbid"`
	Title  string   `json:"title"`
	Artist string   `json:"artist"`
	Year   *int     `json:"year"`
	Label  string   `json:"label,omitempty"`
	Tracks []string `json:"tracks"`
}

// SearchReleases queries MusicBrainz for releases matching title and artist.
func (c *Client) SearchReleases(ctx context.Context, title, artist string) ([]ReleaseCandidate, error) {
	query := fmt.Sprintf(`release:%q AND artist:%q`, title, artist)
	u := fmt.Sprintf("%s/release?query=%s&fmt=json&limit=%d",
		c.baseURL, url.QueryEscape(query), searchLimit)

	var result struct {
		Releases []release `json:"releases"`
	}
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}

	candidates := make([]ReleaseCandidate, 0, len(result.Releases))
	for _, r := range result.Releases {
		candidates = append(candidates, ReleaseCandidate{
			MBID:       r.ID,
			Title:      r.Title,
			Artist:     joinArtistCredits(r.ArtistCredit),
			Year:       yearFromDate(r.Date),
			Label:      firstLabel(r.LabelInfo),
			Country:    r.Country,
			TrackCount: r.TrackCount,
		})
	}
	return candidates, nil
}

// GetRelease fetches full release details including the flattened track list.
func (c *Client) GetRelease(ctx context.Context, mbid string) (*Release, error) {
	u := fmt.Sprintf("%s/release/%s?inc=recordings+artist-credits+labels&fmt=json",
		c.baseURL, url.PathEscape(mbid))

	var data release
	if err := c.getJSON(ctx, u, &data); err != nil {
		return nil, err
	}

	rel := &Release{
		MBID:   mbid,
		Title:  data.Title,
		Artist: joinArtistCredits(data.ArtistCredit),
		Year:   yearFromDate(data.Date),
		Label:  firstLabel(data.LabelInfo),
	}
	for _, m := range data.Media {
		for _, t := range m.Tracks {
			title := t.Title
			if title == "" {
				title = t.Recording.Title
			}
			if title != "" {
				rel.Tracks = append(rel.Tracks, title)
			}
		}
	}
	return rel, nil
}

// DownloadCoverArt fetches the front cover image for a release from the
// Cover Art Archive. A 404 means the archive has no art: (nil, nil), not an
// error. Transport errors are soft as well; the caller treats them as "no art".
func (c *Client) DownloadCoverArt(ctx context.Context, mbid string) ([]byte, error) {
	u := fmt.Sprintf("%s/release/%s/front", c.coverArtURL, url.PathEscape(mbid))

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.waitTurn(ctx)

	resp, err := c.artClient.Do(req)
	if err != nil {
		return nil, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("musicbrainz returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// waitTurn sleeps just long enough that minRequestInterval has elapsed
// since the previous request issued by any caller.
func (c *Client) waitTurn(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elapsed := time.Since(c.lastRequest); elapsed < minRequestInterval {
		wait := minRequestInterval - elapsed
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	c.lastRequest = time.Now()
}

func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < constants.DefaultRetryCount; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		c.waitTurn(ctx)

		resp, err := c.httpClient.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		time.Sleep(time.Duration(attempt+1) * constants.DefaultRetryBase)
	}
	return nil, lastErr
}

func joinArtistCredits(credits []artistCredit) string {
	var b strings.Builder
	for _, ac := range credits {
		if ac.Name != "" {
			b.WriteString(ac.Name)
		} else {
			b.WriteString(ac.Artist.Name)
		}
		b.WriteString(ac.JoinPhrase)
	}
	return strings.TrimSpace(b.String())
}

func firstLabel(info []labelInfo) string {
	if len(info) == 0 {
		return ""
	}
	return info[0].Label.Name
}

func yearFromDate(date string) *int {
	if len(date) < 4 {
		return nil
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return nil
	}
	return &year
}

type release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Date         string         `json:"date"`
	Country      string         `json:"country"`
	TrackCount   int            `json:"track-count"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	LabelInfo    []labelInfo    `json:"label-info"`
	Media        []medium       `json:"media"`
}

type artistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     artist `json:"artist"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type labelInfo struct {
	Label label `json:"label"`
}

type label struct {
	Name string `json:"name"`
}

type medium struct {
	Tracks []mbTrack `json:"tracks"`
}

type mbTrack struct {
	Title     string `json:"title"`
	Recording struct {
		Title string `json:"title"`
	} `json:"recording"`
}
