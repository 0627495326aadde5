package credential

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnere/Migrator-Tools/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestResolveStaticAndEnv(t *testing.T) {
	ctx := context.Background()

	tok, err := Resolve(ctx, Config{Token: "static", TokenEnv: "IGNORED"}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, "static", tok)

	t.Setenv("MIGRATOR_TEST_TOKEN", " from-env \n")
	tok, err = Resolve(ctx, Config{TokenEnv: "MIGRATOR_TEST_TOKEN"}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, "from-env", tok)

	_, err = Resolve(ctx, Config{TokenEnv: "MIGRATOR_TEST_UNSET_TOKEN"}, logger.Discard())
	assert.ErrorContains(t, err, "MIGRATOR_TEST_UNSET_TOKEN")

	_, err = Resolve(ctx, Config{}, logger.Discard())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.NoError(t, Config{TokenEnv: "X"}.Validate())
	assert.Error(t, Config{OAuth: &OAuthConfig{ClientID: "id"}}.Validate())
	assert.NoError(t, Config{OAuth: &OAuthConfig{ClientID: "id", ClientSecretEnv: "S"}}.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("MIGRATOR_DOTENV_TOKEN=abc123\n"), 0o600))
	t.Setenv("MIGRATOR_DOTENV_TOKEN", "")
	require.NoError(t, os.Unsetenv("MIGRATOR_DOTENV_TOKEN"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "abc123", os.Getenv("MIGRATOR_DOTENV_TOKEN"))
}

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseForm()) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("client_secret") != "shh" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"hub-token","token_type":"bearer","refresh_token":"r","expires_in":1800}`)
	}))
}

func testFlow(t *testing.T, tokenURL string) *Flow {
	t.Helper()
	flow, err := NewFlow(OAuthConfig{
		ClientID:     "client-1",
		ClientSecret: "shh",
		TokenURL:     tokenURL,
		Scopes:       []string{"forms"},
	}, logger.Discard())
	require.NoError(t, err)
	return flow
}

func TestRouterRedirectsToConsentPage(t *testing.T) {
	flow := testFlow(t, "http://unused")
	router := flow.router(make(chan tokenResult, 1))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.hubspot.com", loc.Host)
	assert.Equal(t, "client-1", loc.Query().Get("client_id"))
	assert.Equal(t, flow.state, loc.Query().Get("state"))
	assert.Equal(t, "http://"+DefaultListenAddr+CallbackPath, loc.Query().Get("redirect_uri"))
}

func TestCallbackExchangesCode(t *testing.T) {
	srv := tokenServer(t)
	defer srv.Close()

	flow := testFlow(t, srv.URL)
	results := make(chan tokenResult, 1)
	router := flow.router(results)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, CallbackPath+"?state=wrong&code=good-code", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, results, 0)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, CallbackPath+"?state="+flow.state+"&code=good-code", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	res := <-results
	require.NoError(t, res.err)
	assert.Equal(t, "hub-token", res.token.AccessToken)
}

func TestCallbackExchangeFailure(t *testing.T) {
	srv := tokenServer(t)
	defer srv.Close()

	flow := testFlow(t, srv.URL)
	results := make(chan tokenResult, 1)

	w := httptest.NewRecorder()
	flow.router(results).ServeHTTP(w, httptest.NewRequest(http.MethodGet, CallbackPath+"?state="+flow.state+"&code=bad", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	res := <-results
	assert.Error(t, res.err)
}

func TestServeDeliversToken(t *testing.T) {
	srv := tokenServer(t)
	defer srv.Close()

	flow := testFlow(t, srv.URL)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		resp, err := http.Get("http://" + ln.Addr().String() + CallbackPath + "?state=" + flow.state + "&code=good-code")
		if err == nil {
			resp.Body.Close()
		}
	}()

	tok, err := flow.serve(context.Background(), ln)
	require.NoError(t, err)
	assert.Equal(t, "hub-token", tok.AccessToken)
}

func TestServeStopsOnCancel(t *testing.T) {
	flow := testFlow(t, "http://unused")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = flow.serve(ctx, ln)
	assert.ErrorIs(t, err, context.Canceled)
}
