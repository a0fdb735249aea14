package roboflow

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
)

var log = logging.Logger("rfup/roboflow")

const DefaultBaseURL = "https://api.roboflow.com"

// Client talks to the Roboflow REST API. Authentication is the api_key
// query parameter on every call.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		c.httpc = httpc
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Workspace struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type rootResponse struct {
	Welcome   string `json:"welcome"`
	Workspace string `json:"workspace"`
}

type workspaceResponse struct {
	Workspace Workspace `json:"workspace"`
}

type projectResponse struct {
	Project Project `json:"project"`
}

type uploadResponse struct {
	Success   bool   `json:"success"`
	Duplicate bool   `json:"duplicate"`
	ID        string `json:"id"`
	Message   string `json:"message"`
	Error     string `json:"error"`
}

func (c *Client) endpoint(p string, query url.Values) string {
	query.Set("api_key", c.apiKey)
	return c.baseURL + p + "?" + query.Encode()
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return xerrors.Errorf("roboflow api: %s: %s", resp.Status, string(body))
	}
	return json.Unmarshal(body, out)
}

// Root probes the API with the configured key and returns the default
// workspace id. Used as the authentication check before uploading.
func (c *Client) Root(ctx context.Context) (string, error) {
	var res rootResponse
	if err := c.getJSON(ctx, c.endpoint("/", url.Values{}), &res); err != nil {
		return "", xerrors.Errorf("authentication check failed: %w", err)
	}
	if res.Workspace == "" {
		return "", xerrors.Errorf("authentication check failed: no workspace for key")
	}
	return res.Workspace, nil
}

func (c *Client) Workspace(ctx context.Context, workspace string) (*Workspace, error) {
	var res workspaceResponse
	if err := c.getJSON(ctx, c.endpoint("/"+workspace, url.Values{}), &res); err != nil {
		return nil, err
	}
	return &res.Workspace, nil
}

func (c *Client) Project(ctx context.Context, workspace, project string) (*Project, error) {
	var res projectResponse
	if err := c.getJSON(ctx, c.endpoint("/"+workspace+"/"+project, url.Values{}), &res); err != nil {
		return nil, err
	}
	return &res.Project, nil
}

// Upload posts one image to the project, assigned to split and tagged
// with tags. Returns the uploaded image id.
func (c *Client) Upload(ctx context.Context, project, imagePath, split string, tags []string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", path.Base(imagePath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	query := url.Values{}
	query.Set("name", path.Base(imagePath))
	query.Set("split", split)
	for _, tag := range tags {
		query.Add("tag", tag)
	}
	endpoint := c.endpoint("/dataset/"+project+"/upload", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", xerrors.Errorf("upload %s: %s: %s", path.Base(imagePath), resp.Status, string(body))
	}
	var res uploadResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", xerrors.Errorf("upload %s: unexpected response: %s", path.Base(imagePath), string(body))
	}
	if !res.Success && !res.Duplicate {
		msg := res.Error
		if msg == "" {
			msg = res.Message
		}
		return "", xerrors.Errorf("upload %s: %s", path.Base(imagePath), msg)
	}
	if res.Duplicate {
		log.Debugf("duplicate image accepted: %s", path.Base(imagePath))
	}
	return res.ID, nil
}
