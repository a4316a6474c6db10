package publish

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"golang.org/x/time/rate"

	"github.com/Sean-McConnachie/delayedgram/internal/queue"
	"github.com/Sean-McConnachie/delayedgram/pkg/logx"
)

const defaultBaseURL = "https://i.instagram.com/api/v1/"

// ClientConfig tunes the Instagram client.
type ClientConfig struct {
	Credentials    Credentials
	RequestTimeout time.Duration
	RatePerMinute  int
	// BaseURL overrides the API endpoint (tests).
	BaseURL string
}

// Client publishes posts through the Instagram web API.
//
// It logs in per publish attempt (sessions are not persisted between
// cycles) and paces API calls with a shared limiter so a burst of album
// uploads doesn't trip the platform's rate limits.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func NewClient(cfg ClientConfig, log logx.Logger) (*Client, error) {
	if cfg.Credentials.Username == "" || cfg.Credentials.Password == "" {
		return nil, fmt.Errorf("instagram: credentials are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	rpm := cfg.RatePerMinute
	if rpm <= 0 {
		rpm = 30
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout, Jar: jar},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		log:     log,
	}, nil
}

type location struct {
	PK         int64   `json:"pk"`
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	ExternalID int64   `json:"external_id,omitempty"`
}

// Publish implements Publisher.
func (c *Client) Publish(ctx context.Context, post queue.Post, imagePaths []string) error {
	if len(imagePaths) == 0 {
		return fmt.Errorf("instagram: post %d has no images", post.ID)
	}

	if err := c.login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var loc *location
	if post.Meta.LocLat != nil && post.Meta.LocLong != nil {
		l, err := c.resolveLocation(ctx, *post.Meta.LocLat, *post.Meta.LocLong)
		if err != nil {
			return fmt.Errorf("resolve location: %w", err)
		}
		loc = l
	}

	uploadIDs := make([]string, 0, len(imagePaths))
	for _, p := range imagePaths {
		id, err := c.uploadPhoto(ctx, p)
		if err != nil {
			return fmt.Errorf("upload %s: %w", p, err)
		}
		uploadIDs = append(uploadIDs, id)
	}

	if len(uploadIDs) == 1 {
		if err := c.configurePhoto(ctx, uploadIDs[0], post.Meta.Caption, loc); err != nil {
			return fmt.Errorf("configure photo: %w", err)
		}
		return nil
	}
	if err := c.configureAlbum(ctx, uploadIDs, post.Meta.Caption, loc); err != nil {
		return fmt.Errorf("configure album: %w", err)
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// login establishes a session. The CSRF token is seeded by a plain GET
// (cookie lands in the jar) and echoed back as a header on the login POST.
func (c *Client) login(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if err := requests.
		URL(c.cfg.BaseURL + "si/fetch_headers/").
		Client(c.http).
		Fetch(ctx); err != nil {
		return err
	}

	if err := c.wait(ctx); err != nil {
		return err
	}
	var resp struct {
		Status string `json:"status"`
	}
	err := requests.
		URL(c.cfg.BaseURL+"accounts/login/").
		Client(c.http).
		Header("X-CSRFToken", c.csrfToken()).
		BodyForm(url.Values{
			"username": {c.cfg.Credentials.Username},
			"password": {c.cfg.Credentials.Password},
		}).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("unexpected login status %q", resp.Status)
	}
	return nil
}

func (c *Client) csrfToken() string {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return ""
	}
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == "csrftoken" {
			return ck.Value
		}
	}
	return ""
}

// resolveLocation searches near the coordinates and completes the first hit,
// mirroring the platform's own "search then complete" flow.
func (c *Client) resolveLocation(ctx context.Context, lat, lng float64) (*location, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var search struct {
		Venues []location `json:"venues"`
	}
	err := requests.
		URL(c.cfg.BaseURL+"location_search/").
		Client(c.http).
		Param("latitude", formatCoord(lat)).
		Param("longitude", formatCoord(lng)).
		ToJSON(&search).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(search.Venues) == 0 {
		return nil, fmt.Errorf("no location found near (%s, %s)", formatCoord(lat), formatCoord(lng))
	}

	loc := search.Venues[0]
	if loc.Lat == 0 && loc.Lng == 0 {
		loc.Lat, loc.Lng = lat, lng
	}
	return &loc, nil
}

func (c *Client) uploadPhoto(ctx context.Context, path string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	uploadID := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ruploadParams := fmt.Sprintf(`{"upload_id":%q,"media_type":"1"}`, uploadID)

	var resp struct {
		UploadID string `json:"upload_id"`
		Status   string `json:"status"`
	}
	err := requests.
		URL(c.cfg.BaseURL+"rupload_igphoto/"+uploadID).
		Client(c.http).
		Header("X-Instagram-Rupload-Params", ruploadParams).
		Header("X-CSRFToken", c.csrfToken()).
		ContentType("application/octet-stream").
		BodyFile(path).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return "", err
	}
	if resp.Status != "ok" {
		return "", fmt.Errorf("unexpected upload status %q", resp.Status)
	}
	if resp.UploadID != "" {
		return resp.UploadID, nil
	}
	return uploadID, nil
}

func (c *Client) configurePhoto(ctx context.Context, uploadID, caption string, loc *location) error {
	form := url.Values{
		"upload_id": {uploadID},
		"caption":   {caption},
	}
	addLocationForm(form, loc)
	return c.configure(ctx, "media/configure/", form)
}

func (c *Client) configureAlbum(ctx context.Context, uploadIDs []string, caption string, loc *location) error {
	children := make([]string, 0, len(uploadIDs))
	for _, id := range uploadIDs {
		children = append(children, fmt.Sprintf(`{"upload_id":%q}`, id))
	}
	form := url.Values{
		"caption":           {caption},
		"children_metadata": {"[" + strings.Join(children, ",") + "]"},
	}
	addLocationForm(form, loc)
	return c.configure(ctx, "media/configure_sidecar/", form)
}

func (c *Client) configure(ctx context.Context, endpoint string, form url.Values) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	var resp struct {
		Status string `json:"status"`
	}
	err := requests.
		URL(c.cfg.BaseURL+endpoint).
		Client(c.http).
		Header("X-CSRFToken", c.csrfToken()).
		BodyForm(form).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("unexpected configure status %q", resp.Status)
	}
	return nil
}

func addLocationForm(form url.Values, loc *location) {
	if loc == nil {
		return
	}
	form.Set("location", fmt.Sprintf(`{"pk":%d,"name":%q,"lat":%s,"lng":%s}`,
		loc.PK, loc.Name, formatCoord(loc.Lat), formatCoord(loc.Lng)))
	form.Set("geotag_enabled", "1")
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
