package bitstamp

import (
	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/exchanges"
)

var credentialKeys = []string{"api_key", "api_secret", "customer_id"}

func named(base exchanges.Base) exchanges.Base {
	if base.Name == "" {
		base.Name = Name
	}
	return base
}

// NewMarketClient returns a market data client for a Bitstamp market
func NewMarketClient(base exchanges.Base, market currency.Market, api API) (*exchanges.MarketClient, error) {
	return exchanges.NewMarketClient(named(base), market, NewMarketSvc(api, market))
}

// NewWalletClient returns a funding client for a Bitstamp wallet. Bitstamp
// cannot deduct withdrawal fees so no fee table applies.
func NewWalletClient(base exchanges.Base, code currency.Code, api API) (*exchanges.WalletClient, error) {
	base = named(base)
	if err := base.CheckCredentials(credentialKeys...); err != nil {
		return nil, err
	}
	return exchanges.NewWalletClient(base, code, NewWalletSvc(api, code), nil)
}

// NewTradingClient returns an order management client for a Bitstamp market
func NewTradingClient(base exchanges.Base, market currency.Market, api API) (*exchanges.TradingClient, error) {
	base = named(base)
	if err := base.CheckCredentials(credentialKeys...); err != nil {
		return nil, err
	}
	mc, err := exchanges.NewMarketClient(base, market, NewMarketSvc(api, market))
	if err != nil {
		return nil, err
	}
	baseWallet, err := NewWalletClient(base, market.Base, api)
	if err != nil {
		return nil, err
	}
	quoteWallet, err := NewWalletClient(base, market.Quote, api)
	if err != nil {
		return nil, err
	}
	wallets := exchanges.Wallets{Base: baseWallet, Quote: quoteWallet}
	return exchanges.NewTradingClient(mc, wallets, NewTradingSvc(api, market))
}
