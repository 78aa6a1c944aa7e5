package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasksuite/addin-auth/internal/autherr"
)

func TestFactory_NewDialogProvider(t *testing.T) {
	factory := NewFactory(NAAClientConfig{}, &fakeFlow{}, discardLogger())

	provider, err := factory.NewDialogProvider(context.Background())
	require.NoError(t, err)

	assert.IsType(t, &DialogClient{}, provider)
}

func TestFactory_NewNestedProvider(t *testing.T) {
	factory := NewFactory(NAAClientConfig{
		ClientID:    "11111111-1111-1111-1111-111111111111",
		Authority:   "https://login.microsoftonline.com/tenant",
		APIClientID: "22222222-2222-2222-2222-222222222222",
	}, &fakeFlow{}, discardLogger())

	provider, err := factory.NewNestedProvider(context.Background())
	require.NoError(t, err)

	assert.IsType(t, &NAAClient{}, provider)
}

func TestFactory_NewNestedProvider_InvalidAuthority(t *testing.T) {
	factory := NewFactory(NAAClientConfig{
		ClientID:  "11111111-1111-1111-1111-111111111111",
		Authority: "not-an-authority",
	}, &fakeFlow{}, discardLogger())

	_, err := factory.NewNestedProvider(context.Background())

	require.Error(t, err)
	assert.True(t, autherr.Is(err, autherr.CodeNAANotSupported))
}
