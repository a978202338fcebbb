package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
)

func TestResolvePrecedence(t *testing.T) {
	injected := []model.AccountContext{{Token: "inj", Account: "1", Enabled: true}}
	provided := []model.AccountContext{{Token: "prov", Account: "2", Enabled: true}}

	r := Resolver{
		Injected: injected,
		Provider: func() []model.AccountContext { return provided },
	}
	got := r.Resolve()
	require.Len(t, got, 1)
	assert.Equal(t, "inj", got[0].Token)

	r.Injected = nil
	got = r.Resolve()
	require.Len(t, got, 1)
	assert.Equal(t, "prov", got[0].Token)
}

func TestResolveSkipsDisabled(t *testing.T) {
	r := Resolver{Injected: []model.AccountContext{
		{Token: "a", Account: "1", Enabled: true},
		{Token: "b", Account: "2"},
	}}
	got := r.Resolve()
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Token)
}

func TestResolveEnvList(t *testing.T) {
	t.Setenv(envAccounts, "mine:8112:tok-a,spare:8113:tok-b")

	got := Resolver{}.Resolve()
	require.Len(t, got, 2)
	assert.Equal(t, "mine", got[0].Alias)
	assert.Equal(t, "8112", got[0].Account)
	assert.Equal(t, "tok-a", got[0].Token)
	assert.True(t, got[1].Enabled)
}

func TestResolveSingleTokenFallback(t *testing.T) {
	t.Setenv(envAccounts, "")
	t.Setenv(envToken, "")

	r := Resolver{Token: func() string { return "only-token" }}
	got := r.Resolve()
	require.Len(t, got, 1)
	assert.Equal(t, "only-token", got[0].Token)
	assert.Equal(t, "default", got[0].Account)

	assert.Empty(t, Resolver{}.Resolve())
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "abcdef**********wxyz", MaskToken("abcdefghijklmnopwxyz"))
	assert.Equal(t, "*****", MaskToken("short"))
	assert.Equal(t, "", MaskToken(""))
	assert.Equal(t, "**********", MaskToken("exactly10!"))
}
