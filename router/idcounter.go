package router

import (
	"strconv"
	"sync/atomic"

	"github.com/mark3labs/acphost/wire"
)

// idCounter hands out strictly increasing request ids starting at 1. Ids
// are emitted as string ids, matching the `"id":"1"` wire shape agents
// expect.
type idCounter struct {
	next atomic.Int64
}

func (c *idCounter) Next() wire.ID {
	n := c.next.Add(1)
	return wire.NewStringID(strconv.FormatInt(n, 10))
}

func (c *idCounter) Reset() {
	c.next.Store(0)
}
