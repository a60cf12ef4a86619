// Package metrics provides lightweight, lock-free counters for
// communicators and acceptors.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a process.
// A nil Collector is safe to use — all methods become no-ops.
type Collector struct {
	communicatorsActive atomic.Int64
	communicatorsTotal  atomic.Int64
	bytesIn             atomic.Int64
	bytesOut            atomic.Int64
	payloads            atomic.Int64
	acceptErrors        atomic.Int64
	errorsTotal         atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Communicator metrics ─────────────────────────────────────────────

// CommunicatorOpened increments both the active and total counters.
func (c *Collector) CommunicatorOpened() {
	if c == nil {
		return
	}
	c.communicatorsActive.Add(1)
	c.communicatorsTotal.Add(1)
}

// CommunicatorClosed decrements the active counter.
func (c *Collector) CommunicatorClosed() {
	if c == nil {
		return
	}
	c.communicatorsActive.Add(-1)
}

// ActiveCommunicators returns the number of communicators not yet disposed.
func (c *Collector) ActiveCommunicators() int64 {
	if c == nil {
		return 0
	}
	return c.communicatorsActive.Load()
}

// TotalCommunicators returns the lifetime communicator count.
func (c *Collector) TotalCommunicators() int64 {
	if c == nil {
		return 0
	}
	return c.communicatorsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// PayloadReceived records one coalesced payload of n bytes.
func (c *Collector) PayloadReceived(n int64) {
	if c == nil {
		return
	}
	c.payloads.Add(1)
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// Payloads returns the number of data-received events produced.
func (c *Collector) Payloads() int64 {
	if c == nil {
		return 0
	}
	return c.payloads.Load()
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// AcceptFailed records a failed accept; it also counts as an error.
func (c *Collector) AcceptFailed(msg string) {
	if c == nil {
		return
	}
	c.acceptErrors.Add(1)
	c.RecordError(msg)
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// AcceptErrors returns the number of failed accepts.
func (c *Collector) AcceptErrors() int64 {
	if c == nil {
		return 0
	}
	return c.acceptErrors.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime              string `json:"uptime"`
	CommunicatorsActive int64  `json:"communicators_active"`
	CommunicatorsTotal  int64  `json:"communicators_total"`
	BytesIn             int64  `json:"bytes_in"`
	BytesOut            int64  `json:"bytes_out"`
	Payloads            int64  `json:"payloads"`
	AcceptErrors        int64  `json:"accept_errors"`
	ErrorsTotal         int64  `json:"errors_total"`
	LastError           string `json:"last_error,omitempty"`
	LastErrorMessage    string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:              time.Since(c.startTime).Truncate(time.Second).String(),
		CommunicatorsActive: c.communicatorsActive.Load(),
		CommunicatorsTotal:  c.communicatorsTotal.Load(),
		BytesIn:             c.bytesIn.Load(),
		BytesOut:            c.bytesOut.Load(),
		Payloads:            c.payloads.Load(),
		AcceptErrors:        c.acceptErrors.Load(),
		ErrorsTotal:         c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
