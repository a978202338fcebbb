package broker

import (
	"net/http"

	"main/internal/account"
	"main/internal/model"
	"main/internal/model/enum"
)

// FactoryOption carries everything any adapter variant may need.
type FactoryOption struct {
	Vendor   enum.Vendor
	BaseURL  string
	FeeBps   float64
	Client   *http.Client
	Token    account.TokenProvider
	FillHook func(model.Fill)
}

// New builds the adapter for the configured vendor.
func New(opt FactoryOption) (AccountAdapter, error) {
	switch opt.Vendor {
	case enum.VendorSimulator:
		return NewSimulator(opt.FeeBps, opt.FillHook), nil
	case enum.VendorKiwoom:
		return NewRest(opt.Client, opt.BaseURL, opt.Token), nil
	default:
		return nil, ErrUnsupportedVendor
	}
}
