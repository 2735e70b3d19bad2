// Package corrgoji has Middleware to use with the Goji muxer.
//
// Summary
//
// corrgoji has Middleware to wrap individual handlers, and is best used in
// conjunction with the corrnethttp WrapHandler function. Using these two
// together will get you an event for every request that comes through your
// application while also decorating the most interesting paths (the handlers
// that you wrap) with additional fields from the Goji patterns.
//
// For a complete example showing this wrapper in use, please see the examples in
// https://github.com/rambhatt-msft/correlate-go/tree/main/examples
//
package corrgoji
