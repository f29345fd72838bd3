package main

import (
	"github.com/pkg/errors"

	"github.com/rob-Hitchens/trading-bots/bots"
	"github.com/rob-Hitchens/trading-bots/bots/anytoany"
	"github.com/rob-Hitchens/trading-bots/bots/relativeorders"
	"github.com/rob-Hitchens/trading-bots/bots/technicalanalysis"
	"github.com/rob-Hitchens/trading-bots/exchanges/bitstamp"
	"github.com/rob-Hitchens/trading-bots/exchanges/buda"
)

var errNoTransport = errors.New("no exchange transport wired for bot")

// The native exchange transports the installed bots trade through. This
// repository ships the client layer only, assign implementations of the
// exchange API interfaces here.
var (
	budaAPI     buda.API
	bitstampAPI bitstamp.API
)

// installedBots returns the registry of bots shipped with this repository
func installedBots() (*bots.Registry, error) {
	reg := bots.NewRegistry()
	installed := map[string]bots.Factory{
		relativeorders.Label: requireTransports(relativeorders.Label,
			relativeorders.Factory(budaAPI), budaAPI),
		anytoany.Label: requireTransports(anytoany.Label,
			anytoany.Factory(budaAPI), budaAPI),
		technicalanalysis.Label: requireTransports(technicalanalysis.Label,
			technicalanalysis.Factory(budaAPI, bitstampAPI), budaAPI, bitstampAPI),
	}
	for label, f := range installed {
		if err := reg.Register(label, f); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// requireTransports fails bot construction early when a transport is missing
func requireTransports(label string, f bots.Factory, transports ...any) bots.Factory {
	return func(env *bots.Env) (bots.Bot, error) {
		for _, transport := range transports {
			if transport == nil {
				return nil, errors.Wrapf(errNoTransport, "%q", label)
			}
		}
		return f(env)
	}
}
