package broadcast

import (
	"github.com/jaeyoon-dev/stockfeed/internal/cache"
)

// Sink receives every successful quote refresh. The hub, the Redis mirror
// and the Kafka publisher all implement it; the registry loops and the bulk
// collector notify a Sink without knowing who is behind it.
type Sink interface {
	OnQuote(symbol string, e cache.Entry)
}

// Multi fans one update out to several sinks in order.
type Multi []Sink

func (m Multi) OnQuote(symbol string, e cache.Entry) {
	for _, s := range m {
		s.OnQuote(symbol, e)
	}
}
