package broker

import (
	"context"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/model"
)

var _ Adapter = (*Fanout)(nil)

// Fanout submits one logical order to every enabled account concurrently
// through a bounded worker pool and folds the results into one response.
type Fanout struct {
	inner    AccountAdapter
	resolver account.Resolver
	workers  int
}

// NewFanout wraps an account-aware adapter. workers caps concurrent
// submissions; values below 1 fall back to 4.
func NewFanout(inner AccountAdapter, resolver account.Resolver, workers int) *Fanout {
	if workers < 1 {
		workers = 4
	}
	return &Fanout{inner: inner, resolver: resolver, workers: workers}
}

// Name returns the wrapped adapter's name.
func (f *Fanout) Name() string {
	return f.inner.Name()
}

// PlaceOrder fans the order out to all resolved accounts. Accounts with an
// empty token fail locally with 599 and never reach the network. A panic or
// error in one worker becomes that account's failure result.
func (f *Fanout) PlaceOrder(ctx context.Context, order model.Order) (model.BrokerResponse, error) {
	accounts := f.resolver.Resolve()
	results := make([]model.AccountResult, len(accounts))

	sem := make(chan struct{}, f.workers)
	var wg sync.WaitGroup
	for i, acct := range accounts {
		name := acct.Alias
		if name == "" {
			name = acct.Account
		}
		results[i] = model.AccountResult{Account: name}

		if acct.Token == "" {
			results[i].Status = 599
			results[i].Error = ErrEmptyToken.Error()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, acct model.AccountContext) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					results[i].Status = 500
					results[i].Error = errors.Errorf("panic: %v", r).Error()
				}
			}()
			status, err := f.inner.PlaceForAccount(ctx, order, acct)
			results[i].Status = status
			if err != nil {
				results[i].Error = err.Error()
			}
		}(i, acct)
	}
	wg.Wait()

	status, summary := Aggregate(results)
	if summary.Failed > 0 {
		logs.Warnf("fanout: %d/%d accounts failed, symbol=%s", summary.Failed, summary.Total, order.Symbol)
	}
	return model.BrokerResponse{
		Status:  status,
		Results: results,
		Summary: summary,
	}, nil
}
