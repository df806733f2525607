package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	config "github.com/Keoroanthony/orders-api/configs"
	"github.com/Keoroanthony/orders-api/internal/models"
)

var (
	// ErrAuthentication means a credential was presented but could not be
	// verified.
	ErrAuthentication = errors.New("authentication failed")
	// ErrConfiguration means the identity provider is not configured, so no
	// credential can be verified.
	ErrConfiguration = errors.New("identity provider not configured")
)

// Verifier checks a raw ID token. *oidc.IDTokenVerifier satisfies it.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

type PrincipalStore interface {
	GetOrCreatePrincipal(ctx context.Context, p *models.Principal) (*models.Principal, error)
	GetPrincipal(ctx context.Context, id uint) (*models.Principal, error)
}

type claims struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// discoveryBackoff is how long a failed provider discovery is remembered
// before the provider is contacted again.
const discoveryBackoff = 30 * time.Second

// Gate turns credentials into principals. The OIDC provider is discovered on
// first use, so a missing or unreachable provider does not stop the process
// from starting.
type Gate struct {
	cfg        config.OIDCConfig
	principals PrincipalStore

	mu           sync.Mutex
	verifier     Verifier
	oauth2Config *oauth2.Config
	discovering  chan struct{}
	lastErr      error
	retryAt      time.Time
}

func NewGate(cfg config.OIDCConfig, principals PrincipalStore) *Gate {
	return &Gate{cfg: cfg, principals: principals}
}

// NewGateWithVerifier skips provider discovery and uses v for every bearer
// token.
func NewGateWithVerifier(v Verifier, principals PrincipalStore) *Gate {
	return &Gate{verifier: v, principals: principals}
}

// Authorize resolves the principal for an Authorization header value. It
// returns nil, nil for anonymous callers: no header, or a scheme other than
// Bearer.
func (g *Gate) Authorize(ctx context.Context, header string) (*models.Principal, error) {
	token, ok := bearerToken(header)
	if !ok {
		return nil, nil
	}

	verifier, err := g.getVerifier(ctx)
	if err != nil {
		return nil, err
	}

	idToken, err := verifier.Verify(ctx, token)
	if err != nil {
		slog.DebugContext(ctx, "id token verification failed", "error", err)
		return nil, fmt.Errorf("%w: invalid id token", ErrAuthentication)
	}

	return g.principalFromToken(ctx, idToken)
}

// Principal loads a principal stored in a session by a previous login.
func (g *Gate) Principal(ctx context.Context, id uint) (*models.Principal, error) {
	p, err := g.principals.GetPrincipal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return p, nil
}

func (g *Gate) principalFromToken(ctx context.Context, idToken *oidc.IDToken) (*models.Principal, error) {
	var c claims
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("%w: claims parse error", ErrAuthentication)
	}
	if c.Email == "" {
		return nil, fmt.Errorf("%w: no email in token", ErrAuthentication)
	}

	p, err := g.principals.GetOrCreatePrincipal(ctx, &models.Principal{
		Email:      c.Email,
		Name:       c.Name,
		GivenName:  c.GivenName,
		FamilyName: c.FamilyName,
		Subject:    c.Sub,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve principal: %w", err)
	}
	return p, nil
}

func (g *Gate) getVerifier(ctx context.Context) (Verifier, error) {
	if err := g.discovered(ctx, func() bool { return g.verifier != nil }); err != nil {
		return nil, err
	}
	return g.verifier, nil
}

func (g *Gate) getOAuth2Config(ctx context.Context) (*oauth2.Config, error) {
	if err := g.discovered(ctx, func() bool { return g.oauth2Config != nil }); err != nil {
		return nil, err
	}
	return g.oauth2Config, nil
}

// discovered returns once ready reports true, running provider discovery if
// needed. ready is called with g.mu held. One discovery runs at a time and
// callers arriving meanwhile wait for its result. After a failure the error
// is returned without contacting the provider until discoveryBackoff passes.
func (g *Gate) discovered(ctx context.Context, ready func() bool) error {
	for {
		g.mu.Lock()
		if ready() {
			g.mu.Unlock()
			return nil
		}
		if g.lastErr != nil && time.Now().Before(g.retryAt) {
			err := g.lastErr
			g.mu.Unlock()
			return err
		}
		if running := g.discovering; running != nil {
			g.mu.Unlock()
			select {
			case <-running:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		running := make(chan struct{})
		g.discovering = running
		g.mu.Unlock()

		verifier, oauth2Config, err := g.discover(ctx)

		g.mu.Lock()
		g.discovering = nil
		if err != nil {
			g.lastErr = err
			g.retryAt = time.Now().Add(discoveryBackoff)
		} else {
			g.lastErr = nil
			if g.verifier == nil {
				g.verifier = verifier
			}
			g.oauth2Config = oauth2Config
		}
		g.mu.Unlock()
		close(running)

		if err != nil {
			return err
		}
	}
}

func (g *Gate) discover(ctx context.Context) (Verifier, *oauth2.Config, error) {
	if g.cfg.ClientID == "" {
		return nil, nil, fmt.Errorf("%w: OIDC client id not set", ErrConfiguration)
	}

	provider, err := oidc.NewProvider(context.WithoutCancel(ctx), g.cfg.Issuer)
	if err != nil {
		slog.WarnContext(ctx, "oidc provider discovery failed", "issuer", g.cfg.Issuer, "retry_in", discoveryBackoff, "error", err)
		return nil, nil, fmt.Errorf("%w: provider discovery for %s: %v", ErrConfiguration, g.cfg.Issuer, err)
	}

	return provider.Verifier(&oidc.Config{ClientID: g.cfg.ClientID}), &oauth2.Config{
		ClientID:     g.cfg.ClientID,
		ClientSecret: g.cfg.ClientSecret,
		RedirectURL:  g.cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
