// Package correlate aids adding trace correlation to go apps.
//
// Summary
//
// This package and its subpackages contain bits of code to tie the work one
// service does to the requests that caused it, across service boundaries. It
// speaks both common correlation header formats: the modern four field
// dashed form and the older hierarchical pipe and dot form. Inbound headers
// never fail to parse; whatever arrives is repaired into usable identifiers
// and the original value is kept visible on the resulting events.
//
// The correlate package provides the entry point - initialization and the
// basic method to add fields to events. Inside the wrappers directory you
// find wrappers for specific HTTP, gRPC, and SQL packages. The standard way
// to use this library is to use an HTTP wrapper and then add additional
// fields as the code flows.
//
// The `trace` package offers more direct control over the generated events
// and how they connect together to form traces. The `propagation` package
// holds the parsing, repair, and serialization of the correlation headers
// themselves and has no opinions about events.
//
// Regardless of which subpackages are used, there is a small amount of
// global configuration to add to your application's startup process. At the
// bare minimum, you must pass in your write key and identify a dataset name
// to authorize your code to send events and tell it where to send them.
//
//   func main() {
//     correlate.Init(correlate.Config{
//       WriteKey: "abcabc123123defdef456456",
//       Dataset: "myapp",
//     })
//     ...
//
// Once configured, use one of the subpackages to wrap HTTP handlers and SQL
// db objects.
//
// Examples
//
// There are runnable examples in the examples directory and examples of
// each wrapper in the godoc.
package correlate
