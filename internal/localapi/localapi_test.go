package localapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/MrWong99/echochat/internal/localapi"
)

func TestParseLockfile(t *testing.T) {
	t.Parallel()
	creds, err := localapi.ParseLockfile("Riot Client:4242:52312:s3cr3t:https\n")
	if err != nil {
		t.Fatalf("ParseLockfile: %v", err)
	}
	if creds.Name != "Riot Client" || creds.PID != 4242 || creds.Port != 52312 ||
		creds.Password != "s3cr3t" || creds.Protocol != "https" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestParseLockfile_Invalid(t *testing.T) {
	t.Parallel()
	cases := []string{
		"",
		"name:1:2:pw",
		"name:notanumber:2:pw:https",
		"name:1:notaport:pw:https",
		"name:1:99999:pw:https",
		"name:1:2::https",
	}
	for _, in := range cases {
		if _, err := localapi.ParseLockfile(in); err == nil {
			t.Errorf("ParseLockfile(%q) succeeded, want error", in)
		}
	}
}

// testClient spins up a local TLS server and a Client pointed at its port.
func testClient(t *testing.T, handler http.HandlerFunc) *localapi.Client {
	t.Helper()
	ts := httptest.NewTLSServer(handler)
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return localapi.NewClient(localapi.Credentials{
		Port:     port,
		Password: "s3cr3t",
		Protocol: "https",
	})
}

func TestClient_BasicAuthAndTLS(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "riot" || pass != "s3cr3t" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})

	body, err := c.RawGet(context.Background(), "/chat/v1/session")
	if err != nil {
		t.Fatalf("RawGet: %v", err)
	}
	if body != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
}

func TestClient_NonSuccessStatusIsError(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	if _, err := c.RawGet(context.Background(), "/chat/v6/messages"); err == nil {
		t.Error("404 should surface as an error")
	}
}

func TestClient_ResolveSelfIdentity(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"federated":false,"puuid":"puuid-self","region":"na1"}`))
	})
	token, err := c.ResolveSelfIdentity(context.Background())
	if err != nil {
		t.Fatalf("ResolveSelfIdentity: %v", err)
	}
	if token != "puuid-self" {
		t.Errorf("token = %q", token)
	}
}

func TestClient_ResolveSelfIdentityEmptyPuuid(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"region":"na1"}`))
	})
	if _, err := c.ResolveSelfIdentity(context.Background()); err == nil {
		t.Error("missing puuid must be an error, never a guessed identity")
	}
}
