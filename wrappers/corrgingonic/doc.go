// Package corrgingonic has Middleware to use with the gin-gonic muxer.
//
// Summary
//
// corrgingonic has Middleware for use in the gin.Use function call wrapping
// all requests that come into the gin muxer
//
package corrgingonic
