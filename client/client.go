// Package client owns the libhoney client used for all event sends, so the
// rest of the library never touches send lifecycle directly. Every function
// here is safe to call before Init; events built against an uninitialized
// client go nowhere without panicking.
package client

import (
	libhoney "github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"
)

var client = &libhoney.Client{}

// initialized flips once a real client is installed. The zero value client
// accepts events fine but its response channel is never closed, so
// TxResponses hands out a closed stand-in until then.
var initialized bool

// Init replaces the active client with one built from config. On error the
// previous client stays in place.
func Init(config libhoney.ClientConfig) error {
	c, err := libhoney.NewClient(config)
	if err != nil {
		return err
	}
	client = c
	initialized = true
	return nil
}

// Set replaces the active client with one the caller built. A nil client is
// ignored.
func Set(c *libhoney.Client) {
	if c != nil {
		client = c
		initialized = true
	}
}

// Close flushes any pending events and shuts the client down. Events must
// not be sent after Close.
func Close() {
	if client != nil {
		client.Close()
	}
}

// Flush sends any pending events immediately.
func Flush() {
	if client != nil {
		client.Flush()
	}
}

// AddField adds a field to every event the client sends from now on.
func AddField(name string, val interface{}) {
	if client != nil {
		client.AddField(name, val)
	}
}

// NewBuilder returns an event builder scoped to the active client.
func NewBuilder() *libhoney.Builder {
	if client != nil {
		return client.NewBuilder()
	}
	return &libhoney.Builder{}
}

// TxResponses returns the channel of send outcomes. Without an initialized
// client it returns a closed channel so readers fall through instead of
// blocking forever.
func TxResponses() chan transmission.Response {
	if initialized {
		return client.TxResponses()
	}
	c := make(chan transmission.Response)
	close(c)
	return c
}
