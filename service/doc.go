// Package service is the concurrent entry point to the matching engine.
//
// OrderService admits submits and cancels through one writer goroutine in
// FIFO order, hands every new trade to the outbox for the downstream feed,
// and answers queries under a read lock so they only ever observe the book
// between two commands.
package service
