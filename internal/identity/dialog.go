package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tasksuite/addin-auth/internal/autherr"
	"github.com/tasksuite/addin-auth/internal/dialogauth"
	"github.com/tasksuite/addin-auth/internal/models"
)

// promptSelectAccount asks the dialog page to show the account picker
// instead of silently reusing the provider session.
const promptSelectAccount = "select_account"

// DialogAuthenticator is the slice of dialogauth.Flow this client
// drives. *dialogauth.Flow satisfies it.
type DialogAuthenticator interface {
	Authenticate(ctx context.Context, opts dialogauth.Options) (dialogauth.Result, error)
	CancelAuthentication()
}

// DialogClient is the legacy-host path: interactive acquisition runs in
// a host modal dialog, and "silent" acquisition serves the token the
// last dialog round delivered for as long as it stays valid. The parent
// side holds no provider session of its own.
type DialogClient struct {
	flow   DialogAuthenticator
	logger *slog.Logger

	mu      sync.Mutex
	token   *models.TokenResult
	account *models.Account
}

// NewDialogClient constructs the dialog-path client.
func NewDialogClient(flow DialogAuthenticator, logger *slog.Logger) *DialogClient {
	return &DialogClient{
		flow:   flow,
		logger: logger,
	}
}

// Initialize is the standard client's explicit post-construction step.
// A redirect-based flow cannot survive a process restart here, so there
// is nothing to resume; the step stays observable for parity with the
// nested client's lifecycle.
func (c *DialogClient) Initialize(ctx context.Context) error {
	c.logger.Debug("dialog client initialized, no in-flight flow to resume")
	return nil
}

func (c *DialogClient) AcquireSilent(ctx context.Context, account *models.Account, force bool) (models.TokenResult, models.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if force || c.token == nil || c.account == nil {
		return models.TokenResult{}, models.Account{}, fmt.Errorf("no reusable dialog token: %w", autherr.ErrInteractionRequired)
	}

	if account != nil && account.HomeAccountID != c.account.HomeAccountID {
		return models.TokenResult{}, models.Account{}, fmt.Errorf("requested account not cached: %w", autherr.ErrInteractionRequired)
	}

	if !c.token.ExpiresOn.After(time.Now()) {
		return models.TokenResult{}, models.Account{}, fmt.Errorf("cached dialog token expired: %w", autherr.ErrInteractionRequired)
	}

	token := *c.token
	token.FromCache = true

	return token, *c.account, nil
}

func (c *DialogClient) AcquireInteractive(ctx context.Context, loginHint string) (models.TokenResult, models.Account, error) {
	opts := dialogauth.Options{}
	if loginHint == "" {
		opts.Prompt = promptSelectAccount
	}

	res, err := c.flow.Authenticate(ctx, opts)
	if err != nil {
		return models.TokenResult{}, models.Account{}, err
	}

	if err := validateTokenResult(res.Token, time.Now()); err != nil {
		return models.TokenResult{}, models.Account{}, err
	}

	c.mu.Lock()
	token := res.Token
	account := res.Account
	c.token = &token
	c.account = &account
	c.mu.Unlock()

	return res.Token, res.Account, nil
}

func (c *DialogClient) CachedAccount(ctx context.Context) (*models.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.account == nil {
		return nil, nil
	}

	acct := *c.account

	return &acct, nil
}

// SignOut clears the locally held token and account. There is no
// provider session on this side of the dialog to revoke.
func (c *DialogClient) SignOut(ctx context.Context, account models.Account) error {
	c.flow.CancelAuthentication()

	c.mu.Lock()
	c.token = nil
	c.account = nil
	c.mu.Unlock()

	return nil
}
