package transport

import "sync/atomic"

// Stats is a snapshot of a pair's traffic counters.
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	BytesSent        int64
	BytesReceived    int64
	Errors           int64
}

// Add returns the element-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		MessagesSent:     s.MessagesSent + o.MessagesSent,
		MessagesReceived: s.MessagesReceived + o.MessagesReceived,
		BytesSent:        s.BytesSent + o.BytesSent,
		BytesReceived:    s.BytesReceived + o.BytesReceived,
		Errors:           s.Errors + o.Errors,
	}
}

// counters tracks traffic for one pair. Safe for concurrent use.
type counters struct {
	messagesSent int64
	messagesRecv int64
	bytesSent    int64
	bytesRecv    int64
	errors       int64
}

func (c *counters) sent(n int) {
	atomic.AddInt64(&c.messagesSent, 1)
	atomic.AddInt64(&c.bytesSent, int64(n))
}

func (c *counters) received(n int) {
	atomic.AddInt64(&c.messagesRecv, 1)
	atomic.AddInt64(&c.bytesRecv, int64(n))
}

func (c *counters) failed() {
	atomic.AddInt64(&c.errors, 1)
}

func (c *counters) snapshot() Stats {
	return Stats{
		MessagesSent:     atomic.LoadInt64(&c.messagesSent),
		MessagesReceived: atomic.LoadInt64(&c.messagesRecv),
		BytesSent:        atomic.LoadInt64(&c.bytesSent),
		BytesReceived:    atomic.LoadInt64(&c.bytesRecv),
		Errors:           atomic.LoadInt64(&c.errors),
	}
}
