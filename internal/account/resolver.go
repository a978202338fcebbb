// Package account resolves which brokerage accounts an order targets and
// owns the ports for token/account injection.
package account

import (
	"os"
	"strings"

	"main/internal/model"
)

// TokenProvider returns a current bearer token. Implementations may refresh
// the token on every call.
type TokenProvider func() string

// AccountProvider returns the full account list from an external source.
type AccountProvider func() []model.AccountContext

const (
	envAccounts = "AUTOTRADER_ACCOUNTS"
	envToken    = "AUTOTRADER_TOKEN"
)

// Resolver yields the enabled account contexts for a submission.
//
// Precedence: injected list > provider list > environment list > single-token
// fallback. The first source that yields at least one entry wins.
type Resolver struct {
	Injected []model.AccountContext
	Provider AccountProvider
	Token    TokenProvider
}

// Resolve returns all enabled accounts from the highest-precedence source.
func (r Resolver) Resolve() []model.AccountContext {
	if list := enabled(r.Injected); len(list) != 0 {
		return list
	}
	if r.Provider != nil {
		if list := enabled(r.Provider()); len(list) != 0 {
			return list
		}
	}
	if list := enabled(fromEnv(os.Getenv(envAccounts))); len(list) != 0 {
		return list
	}
	var token string
	if r.Token != nil {
		token = r.Token()
	}
	if token == "" {
		token = os.Getenv(envToken)
	}
	if token == "" {
		return nil
	}
	return []model.AccountContext{{Token: token, Account: "default", Enabled: true, Alias: "default"}}
}

func enabled(in []model.AccountContext) []model.AccountContext {
	out := make([]model.AccountContext, 0, len(in))
	for _, acc := range in {
		if acc.Enabled {
			out = append(out, acc)
		}
	}
	return out
}

// fromEnv parses "alias:account:token[,alias:account:token...]".
func fromEnv(raw string) []model.AccountContext {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	entries := strings.Split(raw, ",")
	out := make([]model.AccountContext, 0, len(entries))
	for _, entry := range entries {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) != 3 {
			continue
		}
		out = append(out, model.AccountContext{
			Alias:   parts[0],
			Account: parts[1],
			Token:   parts[2],
			Enabled: true,
		})
	}
	return out
}

// MaskToken hides a bearer token for logging: first 6 + last 4 characters
// survive, anything shorter is fully masked.
func MaskToken(token string) string {
	if len(token) <= 10 {
		return strings.Repeat("*", len(token))
	}
	return token[:6] + strings.Repeat("*", len(token)-10) + token[len(token)-4:]
}
