// Package broker abstracts order execution behind a small adapter interface
// with simulator and vendor-REST implementations, plus a multi-account
// fan-out wrapper.
package broker

import (
	"context"

	"github.com/yanun0323/errors"

	"main/internal/model"
)

var (
	ErrEmptyToken        = errors.New("broker: empty token")
	ErrUnsupportedVendor = errors.New("broker: unsupported vendor")
)

// Adapter places orders against one broker backend.
type Adapter interface {
	Name() string
	PlaceOrder(ctx context.Context, order model.Order) (model.BrokerResponse, error)
}

// AccountAdapter places an order for one specific account. Fan-out drives
// this per resolved account context.
type AccountAdapter interface {
	Adapter
	PlaceForAccount(ctx context.Context, order model.Order, acct model.AccountContext) (int, error)
}

// Aggregate folds per-account results into one overall status.
//
// 200 when every sub-status is 2xx, 207 when a nonempty proper subset
// succeeded, the first sub-status when nothing succeeded, 500 when the
// result list is empty.
func Aggregate(results []model.AccountResult) (status int, summary model.BrokerSummary) {
	summary.Total = len(results)
	if len(results) == 0 {
		return 500, summary
	}
	for _, r := range results {
		if r.Status >= 200 && r.Status < 300 {
			summary.Success++
		} else {
			summary.Failed++
		}
	}
	switch {
	case summary.Failed == 0:
		return 200, summary
	case summary.Success > 0:
		return 207, summary
	default:
		return results[0].Status, summary
	}
}
