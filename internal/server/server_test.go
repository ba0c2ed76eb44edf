package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ehrlich-b/mudcore/internal/accountauth"
	"github.com/ehrlich-b/mudcore/internal/config"
	"github.com/ehrlich-b/mudcore/internal/store"
	"github.com/ehrlich-b/mudcore/internal/world"
	"github.com/ehrlich-b/mudcore/internal/world/load"
)

const contentRoot = "../../content"

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	st, err := store.Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	w := world.New()
	world.RegisterBuiltins(w)
	l := load.New(w)
	if err := l.LoadManifest(contentRoot, "MODULES"); err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	signer, err := accountauth.NewSigner()
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	srv := New(Config{}, st, w, nil, nil, signer)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func basicAuthRequest(t *testing.T, method, url, username, password string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.SetBasicAuth(username, password)
	return req
}

func TestCreateAccountThenAuth(t *testing.T) {
	_, ts := testServer(t)

	req := basicAuthRequest(t, "POST", ts.URL+"/game/create", "tam", "correct horse battery staple")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /game/create: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d, want 200", resp.StatusCode)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected an auth cookie to be set on account creation")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if body["username"] != "tam" {
		t.Errorf("create response = %v, want username tam", body)
	}

	authReq, _ := http.NewRequest("GET", ts.URL+"/game/auth", nil)
	authReq.AddCookie(cookie)
	authResp, err := http.DefaultClient.Do(authReq)
	if err != nil {
		t.Fatalf("GET /game/auth: %v", err)
	}
	defer authResp.Body.Close()
	if authResp.StatusCode != http.StatusOK {
		t.Fatalf("auth status = %d, want 200", authResp.StatusCode)
	}
}

func TestCreateAccountDuplicateUsernameConflicts(t *testing.T) {
	_, ts := testServer(t)

	req := basicAuthRequest(t, "POST", ts.URL+"/game/create", "tam", "correct horse battery staple")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /game/create: %v", err)
	}
	resp.Body.Close()

	req2 := basicAuthRequest(t, "POST", ts.URL+"/game/create", "tam", "another password entirely")
	resp2, err := http.DefaultClient.Do(req2)
	if err != nil {
		t.Fatalf("POST /game/create (dup): %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusConflict {
		t.Fatalf("dup create status = %d, want 409", resp2.StatusCode)
	}
}

func TestCreateAccountRejectsInvalidCredentials(t *testing.T) {
	_, ts := testServer(t)

	// Username too short per §6's 3-20 char rule.
	req := basicAuthRequest(t, "POST", ts.URL+"/game/create", "ab", "correct horse battery staple")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /game/create: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for an invalid username", resp.StatusCode)
	}
}

func TestLoginThenLogoutInvalidatesAuth(t *testing.T) {
	_, ts := testServer(t)

	createReq := basicAuthRequest(t, "POST", ts.URL+"/game/create", "tam", "correct horse battery staple")
	createResp, err := http.DefaultClient.Do(createReq)
	if err != nil {
		t.Fatalf("POST /game/create: %v", err)
	}
	createResp.Body.Close()

	loginReq := basicAuthRequest(t, "POST", ts.URL+"/game/login", "tam", "correct horse battery staple")
	loginResp, err := http.DefaultClient.Do(loginReq)
	if err != nil {
		t.Fatalf("POST /game/login: %v", err)
	}
	defer loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", loginResp.StatusCode)
	}
	var loginCookie *http.Cookie
	for _, c := range loginResp.Cookies() {
		if c.Name == cookieName {
			loginCookie = c
		}
	}
	if loginCookie == nil {
		t.Fatal("expected an auth cookie on login")
	}

	badLoginReq := basicAuthRequest(t, "POST", ts.URL+"/game/login", "tam", "wrong password")
	badLoginResp, err := http.DefaultClient.Do(badLoginReq)
	if err != nil {
		t.Fatalf("POST /game/login (bad): %v", err)
	}
	defer badLoginResp.Body.Close()
	if badLoginResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", badLoginResp.StatusCode)
	}

	logoutReq, _ := http.NewRequest("POST", ts.URL+"/game/logout", nil)
	logoutReq.AddCookie(loginCookie)
	logoutResp, err := http.DefaultClient.Do(logoutReq)
	if err != nil {
		t.Fatalf("POST /game/logout: %v", err)
	}
	defer logoutResp.Body.Close()

	var clearedCookie *http.Cookie
	for _, c := range logoutResp.Cookies() {
		if c.Name == cookieName {
			clearedCookie = c
		}
	}
	if clearedCookie == nil || clearedCookie.MaxAge >= 0 {
		t.Fatalf("expected logout to clear the auth cookie with a negative MaxAge, got %+v", clearedCookie)
	}

	authReq, _ := http.NewRequest("GET", ts.URL+"/game/auth", nil)
	authReq.AddCookie(clearedCookie)
	authResp, err := http.DefaultClient.Do(authReq)
	if err != nil {
		t.Fatalf("GET /game/auth: %v", err)
	}
	defer authResp.Body.Close()
	if authResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("auth with the logout-cleared cookie value status = %d, want 401", authResp.StatusCode)
	}
}

func TestAuthRejectsMissingOrGarbageCookie(t *testing.T) {
	_, ts := testServer(t)

	req, _ := http.NewRequest("GET", ts.URL+"/game/auth", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /game/auth (no cookie): %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 with no cookie", resp.StatusCode)
	}

	req2, _ := http.NewRequest("GET", ts.URL+"/game/auth", nil)
	req2.AddCookie(&http.Cookie{Name: cookieName, Value: base64.StdEncoding.EncodeToString([]byte("garbage"))})
	resp2, err := http.DefaultClient.Do(req2)
	if err != nil {
		t.Fatalf("GET /game/auth (garbage cookie): %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 with a garbage cookie", resp2.StatusCode)
	}
}

func TestCreateAccountRequiresBasicAuth(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Post(ts.URL+"/game/create", "application/json", strings.NewReader(""))
	if err != nil {
		t.Fatalf("POST /game/create without basic auth: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without basic auth credentials", resp.StatusCode)
	}
}

// TestLoadWorldReportsContentLocations exercises the same path
// "mudctl check" runs: LoadWorld should load the reference content pack
// cleanly and report at least its two named locations.
func TestLoadWorldReportsContentLocations(t *testing.T) {
	cfg := config.Config{ContentRoot: contentRoot, ManifestName: "MODULES"}
	w, loader, err := LoadWorld(cfg)
	if err != nil {
		t.Fatalf("LoadWorld: %v", err)
	}
	if w == nil {
		t.Fatal("LoadWorld returned a nil world")
	}
	if len(loader.Locations) < 2 {
		t.Fatalf("loader.Locations has %d entries, want at least town.square and town.hall", len(loader.Locations))
	}
}

// TestLoadWorldReportsAuthoringErrors confirms a missing manifest surfaces
// as an error rather than a silently empty world, the failure mode
// "mudctl check" exists to catch.
func TestLoadWorldReportsAuthoringErrors(t *testing.T) {
	cfg := config.Config{ContentRoot: t.TempDir(), ManifestName: "MODULES"}
	if _, _, err := LoadWorld(cfg); err == nil {
		t.Fatal("expected LoadWorld to fail against a directory with no manifest")
	}
}
