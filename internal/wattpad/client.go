package wattpad

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storybind/pkg/models"
)

const storyFields = "id,title,cover,user(name,avatar),parts(id,title)"

// Client talks to the Wattpad content API. It is the fetch layer only:
// everything it returns is mapped into pkg/models before any other stage
// sees it.
type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Session carries the login cookies for authenticated fetches.
// A nil *Session means anonymous access.
type Session struct {
	Cookies []*http.Cookie
}

// storyJSON mirrors the provider's story payload. Story ids arrive as JSON
// strings, part ids as numbers.
type storyJSON struct {
	ID    json.Number `json:"id"`
	Title string      `json:"title"`
	Cover string      `json:"cover"`
	User  struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	} `json:"user"`
	Parts []struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	} `json:"parts"`
}

func (s storyJSON) toModel() (*models.StoryMetadata, error) {
	id, err := s.ID.Int64()
	if err != nil {
		return nil, fmt.Errorf("wattpad: parse story id %q: %w", s.ID, err)
	}

	meta := &models.StoryMetadata{
		ID:       id,
		Title:    s.Title,
		Author:   models.Author{Name: s.User.Name, AvatarURL: s.User.Avatar},
		CoverURL: s.Cover,
		Parts:    make([]models.ChapterRef, 0, len(s.Parts)),
	}
	for _, p := range s.Parts {
		meta.Parts = append(meta.Parts, models.ChapterRef{ID: p.ID, Title: p.Title})
	}
	return meta, nil
}

// Login authenticates with username and password and returns the session
// cookies. A rejected pair yields ErrBadCredentials.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/login?nextUrl=%2Fhome", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("wattpad: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// Cookies are handed back on the redirect response itself.
	client := *c.Client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wattpad: login request: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	cookies := resp.Cookies()
	for _, ck := range cookies {
		if ck.Name == "token" && ck.Value != "" {
			return &Session{Cookies: cookies}, nil
		}
	}
	return nil, ErrBadCredentials
}

// FetchStoryMetadata retrieves a story's metadata by story id.
func (c *Client) FetchStoryMetadata(ctx context.Context, storyID int64, session *Session) (*models.StoryMetadata, error) {
	u := fmt.Sprintf("%s/api/v3/stories/%d?fields=%s", c.BaseURL, storyID, url.QueryEscape(storyFields))

	body, err := c.get(ctx, u, session)
	if err != nil {
		return nil, err
	}

	var s storyJSON
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("wattpad: decode story %d: %w", storyID, err)
	}
	return s.toModel()
}

// FetchStoryFromPart resolves a part id to its parent story and returns the
// story id alongside the full metadata.
func (c *Client) FetchStoryFromPart(ctx context.Context, partID int64, session *Session) (int64, *models.StoryMetadata, error) {
	u := fmt.Sprintf("%s/api/v3/story_parts/%d?fields=%s", c.BaseURL, partID,
		url.QueryEscape("group("+storyFields+")"))

	body, err := c.get(ctx, u, session)
	if err != nil {
		return 0, nil, err
	}

	var wrapper struct {
		Group storyJSON `json:"group"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return 0, nil, fmt.Errorf("wattpad: decode part %d: %w", partID, err)
	}

	meta, err := wrapper.Group.toModel()
	if err != nil {
		return 0, nil, err
	}
	return meta.ID, meta, nil
}

// FetchContentArchive downloads the story-text ZIP and explodes it into a
// part-id keyed map of raw markup. Entries that are not named by a part id
// are skipped.
func (c *Client) FetchContentArchive(ctx context.Context, storyID int64, session *Session) (map[int64]string, error) {
	u := fmt.Sprintf("%s/apiv2/?m=storytext&group_id=%d&output=zip", c.BaseURL, storyID)

	body, err := c.get(ctx, u, session)
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("wattpad: open content archive for story %d: %w", storyID, err)
	}

	parts := make(map[int64]string, len(zr.File))
	for _, f := range zr.File {
		id, err := strconv.ParseInt(f.Name, 10, 64)
		if err != nil {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("wattpad: open archive entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("wattpad: read archive entry %s: %w", f.Name, err)
		}
		parts[id] = string(data)
	}
	return parts, nil
}

// FetchImage retrieves one image. A non-200 response is not an error here;
// it returns (nil, nil) and the caller decides whether absence is fatal.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("wattpad: build image request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wattpad: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("wattpad: read image body: %w", err)
	}
	return data, nil
}

// UpscaleImageURL rewrites the provider's 256px image variant to the 512px
// one. URLs without the size marker pass through unchanged.
func UpscaleImageURL(u string) string {
	return strings.Replace(u, "-256-", "-512-", 1)
}

// get performs an authenticated GET and maps provider status codes onto the
// client's sentinel errors.
func (c *Client) get(ctx context.Context, u string, session *Session) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("wattpad: build request: %w", err)
	}
	if session != nil {
		for _, ck := range session.Cookies {
			req.AddCookie(ck)
		}
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wattpad: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("wattpad: read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusBadRequest, http.StatusNotFound:
		return nil, ErrStoryNotFound
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("wattpad: status %d: %s", resp.StatusCode, string(body))
	}
}
