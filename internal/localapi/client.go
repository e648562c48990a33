package localapi

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Client issues authenticated requests against the local endpoint.
type Client struct {
	base     string
	password string
	http     *http.Client
}

// NewClient builds a Client from lockfile credentials. The local listener
// presents a self-signed certificate bound to no real hostname, so
// verification is disabled; the connection never leaves the loopback
// interface.
func NewClient(creds Credentials) *Client {
	return &Client{
		base:     fmt.Sprintf("%s://127.0.0.1:%d", scheme(creds.Protocol), creds.Port),
		password: creds.Password,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

func scheme(protocol string) string {
	if protocol == "http" {
		return "http"
	}
	return "https"
}

// Base returns the base URL requests are issued against.
func (c *Client) Base() string { return c.base }

// RawGet issues a GET against path and returns the response body. A
// non-2xx status is an error.
func (c *Client) RawGet(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return "", fmt.Errorf("localapi: build request: %w", err)
	}
	req.SetBasicAuth("riot", c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("localapi: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("localapi: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("localapi: %s returned status %d", path, resp.StatusCode)
	}
	return string(body), nil
}

// ResolveSelfIdentity fetches the chat session and returns the local
// player token. An empty token in an otherwise valid response is an
// error; narration must never run on a guessed identity.
func (c *Client) ResolveSelfIdentity(ctx context.Context) (string, error) {
	body, err := c.RawGet(ctx, "/chat/v1/session")
	if err != nil {
		return "", err
	}
	puuid := gjson.Get(body, "puuid").String()
	if puuid == "" {
		return "", fmt.Errorf("localapi: session response carries no puuid")
	}
	return puuid, nil
}
