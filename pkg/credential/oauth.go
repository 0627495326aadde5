package credential

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/turnere/Migrator-Tools/pkg/logger"
)

const (
	HubSpotAuthURL  = "https://app.hubspot.com/oauth/authorize"
	HubSpotTokenURL = "https://api.hubapi.com/oauth/v1/token"

	DefaultListenAddr = "localhost:3000"
	CallbackPath      = "/oauth/callback"
)

// DefaultScopes are requested when the config lists none
var DefaultScopes = []string{"content", "forms", "automation", "crm.objects.contacts.read"}

// OAuthConfig configures the authorization-code flow used when no static
// token is available
type OAuthConfig struct {
	ClientID        string   `json:"clientId" yaml:"clientId"`
	ClientSecret    string   `json:"clientSecret,omitempty" yaml:"clientSecret,omitempty"`
	ClientSecretEnv string   `json:"clientSecretEnv,omitempty" yaml:"clientSecretEnv,omitempty"`
	Scopes          []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	ListenAddr      string   `json:"listenAddr,omitempty" yaml:"listenAddr,omitempty"`
	RedirectURL     string   `json:"redirectUrl,omitempty" yaml:"redirectUrl,omitempty"`
	AuthURL         string   `json:"authUrl,omitempty" yaml:"authUrl,omitempty"`
	TokenURL        string   `json:"tokenUrl,omitempty" yaml:"tokenUrl,omitempty"`
	TimeoutSeconds  int      `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
}

// Validate checks the required fields
func (c *OAuthConfig) Validate() error {
	if c.ClientID == "" {
		return errors.New("oauth clientId is required")
	}
	if c.ClientSecret == "" && c.ClientSecretEnv == "" {
		return errors.New("oauth clientSecret or clientSecretEnv is required")
	}
	return nil
}

type tokenResult struct {
	token *oauth2.Token
	err   error
}

// Flow runs a local callback server and exchanges the returned code
type Flow struct {
	conf    oauth2.Config
	addr    string
	state   string
	timeout time.Duration
	log     *logger.Logger
}

// NewFlow applies defaults and resolves the client secret
func NewFlow(cfg OAuthConfig, log *logger.Logger) (*Flow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}

	secret := cfg.ClientSecret
	if secret == "" {
		secret = os.Getenv(cfg.ClientSecretEnv)
		if secret == "" {
			return nil, fmt.Errorf("environment variable %s is empty or not set", cfg.ClientSecretEnv)
		}
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = "http://" + cfg.ListenAddr + CallbackPath
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = HubSpotAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = HubSpotTokenURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300
	}

	return &Flow{
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: secret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		addr:    cfg.ListenAddr,
		state:   uuid.NewString(),
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		log:     log,
	}, nil
}

// AuthCodeURL is the page the user opens to grant access
func (f *Flow) AuthCodeURL() string {
	return f.conf.AuthCodeURL(f.state)
}

// router serves "/" as a redirect to the consent page and the callback that
// delivers the exchanged token to results
func (f *Flow) router(results chan<- tokenResult) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, f.AuthCodeURL())
	})

	r.GET(CallbackPath, func(c *gin.Context) {
		if c.Query("state") != f.state {
			f.log.Warn("OAuth callback with unexpected state")
			c.String(http.StatusBadRequest, "invalid state")
			return
		}
		if e := c.Query("error"); e != "" {
			deliver(results, tokenResult{err: fmt.Errorf("authorization denied: %s", e)})
			c.String(http.StatusBadRequest, "authorization denied: %s", e)
			return
		}
		code := c.Query("code")
		if code == "" {
			c.String(http.StatusBadRequest, "missing code")
			return
		}

		tok, err := f.conf.Exchange(c.Request.Context(), code)
		if err != nil {
			f.log.WithError(err).Error("Failed to exchange authorization code")
			deliver(results, tokenResult{err: fmt.Errorf("failed to exchange authorization code: %w", err)})
			c.String(http.StatusBadGateway, "token exchange failed")
			return
		}
		deliver(results, tokenResult{token: tok})
		c.String(http.StatusOK, "Authorization complete. You can close this window.")
	})

	return r
}

func deliver(results chan<- tokenResult, res tokenResult) {
	select {
	case results <- res:
	default:
	}
}

// Run serves the callback on the configured address until a token arrives,
// the timeout passes or ctx is cancelled
func (f *Flow) Run(ctx context.Context) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", f.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", f.addr, err)
	}
	return f.serve(ctx, ln)
}

func (f *Flow) serve(ctx context.Context, ln net.Listener) (*oauth2.Token, error) {
	results := make(chan tokenResult, 1)
	srv := &http.Server{
		Handler:           f.router(results),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(results, tokenResult{err: fmt.Errorf("callback server failed: %w", err)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	f.log.Infof("Open http://%s/ in a browser to authorize access", ln.Addr().String())

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		f.log.Info("OAuth authorization complete")
		return res.token, nil
	case <-timer.C:
		return nil, fmt.Errorf("timed out after %s waiting for OAuth callback", f.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
