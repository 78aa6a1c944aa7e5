package identity

import (
	"context"
	"log/slog"

	"github.com/tasksuite/addin-auth/internal/autherr"
)

// Factory builds the two acquisition paths for the engine. Nested
// clients are constructed per request so the engine controls when the
// identity library application comes up; the dialog flow is shared
// since it owns the single-attempt invariant.
type Factory struct {
	naaCfg NAAClientConfig
	flow   DialogAuthenticator
	logger *slog.Logger
}

func NewFactory(naaCfg NAAClientConfig, flow DialogAuthenticator, logger *slog.Logger) *Factory {
	return &Factory{
		naaCfg: naaCfg,
		flow:   flow,
		logger: logger,
	}
}

func (f *Factory) NewNestedProvider(ctx context.Context) (TokenProvider, error) {
	client, err := NewNAAClient(f.naaCfg, f.logger.With(slog.String("provider", "nested")))
	if err != nil {
		// The host claimed nested-auth support but the broker client
		// could not come up.
		return nil, autherr.New(autherr.CodeNAANotSupported, err)
	}

	return client, nil
}

func (f *Factory) NewDialogProvider(ctx context.Context) (TokenProvider, error) {
	return NewDialogClient(f.flow, f.logger.With(slog.String("provider", "dialog"))), nil
}
