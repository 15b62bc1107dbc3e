// Package orderbook implements a single-instrument limit order book with
// strict price-time priority.
//
// The Engine owns two BookSides (bids ordered high to low, asks low to high),
// each a red-black tree of PriceLevels holding a FIFO queue of resting
// orders, an OrderStore indexing live orders by id, and a TradeTape of
// executions. Every trade executes at the resting order's price. Prices are
// integer ticks; see package tick for decimal conversion.
//
// The package is single-writer and deterministic.
package orderbook
