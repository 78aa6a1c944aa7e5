package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"

	"github.com/tasksuite/addin-auth/internal/autherr"
	"github.com/tasksuite/addin-auth/internal/models"
)

// forceRefreshClaims is a minimal claims challenge. The identity
// library never serves a request carrying a claims challenge from its
// token cache, which is the documented way to force a refresh.
const forceRefreshClaims = `{"access_token":{}}`

// msalApp is the slice of public.Client this package uses, extracted so
// tests can substitute a fake. public.Client satisfies it.
type msalApp interface {
	Accounts(ctx context.Context) ([]public.Account, error)
	AcquireTokenSilent(ctx context.Context, scopes []string, opts ...public.AcquireSilentOption) (public.AuthResult, error)
	AcquireTokenInteractive(ctx context.Context, scopes []string, opts ...public.AcquireInteractiveOption) (public.AuthResult, error)
	RemoveAccount(ctx context.Context, account public.Account) error
}

// NAAClientConfig configures the nested-auth client.
type NAAClientConfig struct {
	ClientID    string
	Authority   string
	APIClientID string

	// NestedAppID is the broker callback identifier registered for the
	// nested flow. Carried for diagnostics; the identity library owns
	// the broker handshake.
	NestedAppID string
}

// NAAClient is the nested-auth path: the identity library brokers
// silent and popup-interactive acquisition with the host's session.
type NAAClient struct {
	app    msalApp
	scopes []string
	cfg    NAAClientConfig
	logger *slog.Logger
}

// NewNAAClient constructs the nested-auth client against a real
// identity library application.
func NewNAAClient(cfg NAAClientConfig, logger *slog.Logger) (*NAAClient, error) {
	app, err := public.New(cfg.ClientID, public.WithAuthority(cfg.Authority))
	if err != nil {
		return nil, fmt.Errorf("constructing identity client: %w", err)
	}

	return newNAAClient(app, cfg, logger), nil
}

func newNAAClient(app msalApp, cfg NAAClientConfig, logger *slog.Logger) *NAAClient {
	return &NAAClient{
		app:    app,
		scopes: []string{UserImpersonationScope(cfg.APIClientID)},
		cfg:    cfg,
		logger: logger,
	}
}

// Initialize is a no-op: the nested client is ready at construction.
func (c *NAAClient) Initialize(ctx context.Context) error { return nil }

func (c *NAAClient) AcquireSilent(ctx context.Context, account *models.Account, force bool) (models.TokenResult, models.Account, error) {
	msalAcct, err := c.resolveAccount(ctx, account)
	if err != nil {
		return models.TokenResult{}, models.Account{}, err
	}

	opts := []public.AcquireSilentOption{public.WithSilentAccount(msalAcct)}
	if force {
		opts = append(opts, public.WithClaims(forceRefreshClaims))
	}

	res, err := c.app.AcquireTokenSilent(ctx, c.scopes, opts...)
	if err != nil {
		return models.TokenResult{}, models.Account{}, classifySilent(err)
	}

	token := toTokenResult(res, !force)
	if err := validateTokenResult(token, time.Now()); err != nil {
		return models.TokenResult{}, models.Account{}, err
	}

	return token, toAccount(res.Account), nil
}

func (c *NAAClient) AcquireInteractive(ctx context.Context, loginHint string) (models.TokenResult, models.Account, error) {
	var opts []public.AcquireInteractiveOption
	if loginHint != "" {
		opts = append(opts, public.WithLoginHint(loginHint))
	}

	res, err := c.app.AcquireTokenInteractive(ctx, c.scopes, opts...)
	if err != nil {
		return models.TokenResult{}, models.Account{}, autherr.Map(fmt.Errorf("interactive acquisition: %w", err))
	}

	token := toTokenResult(res, false)
	if err := validateTokenResult(token, time.Now()); err != nil {
		return models.TokenResult{}, models.Account{}, err
	}

	return token, toAccount(res.Account), nil
}

func (c *NAAClient) CachedAccount(ctx context.Context) (*models.Account, error) {
	accounts, err := c.app.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading account cache: %w", err)
	}

	if len(accounts) == 0 {
		return nil, nil
	}

	acct := toAccount(accounts[0])

	return &acct, nil
}

func (c *NAAClient) SignOut(ctx context.Context, account models.Account) error {
	msalAcct, err := c.resolveAccount(ctx, &account)
	if err != nil {
		return err
	}

	if err := c.app.RemoveAccount(ctx, msalAcct); err != nil {
		return fmt.Errorf("removing account from identity cache: %w", err)
	}

	return nil
}

// resolveAccount finds the library-side account matching ours. nil
// selects the first cached account; no cached account at all means
// interaction is required.
func (c *NAAClient) resolveAccount(ctx context.Context, account *models.Account) (public.Account, error) {
	accounts, err := c.app.Accounts(ctx)
	if err != nil {
		return public.Account{}, fmt.Errorf("reading account cache: %w", err)
	}

	if len(accounts) == 0 {
		return public.Account{}, fmt.Errorf("no cached account: %w", autherr.ErrInteractionRequired)
	}

	if account == nil {
		return accounts[0], nil
	}

	for _, a := range accounts {
		if a.HomeAccountID == account.HomeAccountID {
			return a, nil
		}
	}

	return public.Account{}, fmt.Errorf("account %s not in cache: %w", account.Username, autherr.ErrInteractionRequired)
}

// classifySilent maps a silent-acquisition failure: interaction
// requirements stay control flow, network problems keep their code, and
// everything else is a silent failure.
func classifySilent(err error) error {
	if autherr.IsInteractionRequired(err) {
		return fmt.Errorf("silent acquisition: %w", autherr.ErrInteractionRequired)
	}

	mapped := autherr.Map(err)
	if mapped.Code == autherr.CodeUnknown {
		return autherr.New(autherr.CodeSilentFailed, err)
	}

	return mapped
}

func toTokenResult(res public.AuthResult, fromCache bool) models.TokenResult {
	return models.TokenResult{
		AccessToken: res.AccessToken,
		ExpiresOn:   res.ExpiresOn,
		Scopes:      res.GrantedScopes,
		FromCache:   fromCache,
	}
}

func toAccount(a public.Account) models.Account {
	return models.Account{
		HomeAccountID:  a.HomeAccountID,
		Environment:    a.Environment,
		TenantID:       a.Realm,
		Username:       a.PreferredUsername,
		LocalAccountID: a.LocalAccountID,
		Name:           a.Name,
	}
}
