package metrics

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestCollector_Communicators(t *testing.T) {
	c := New()

	c.CommunicatorOpened()
	c.CommunicatorOpened()
	if c.ActiveCommunicators() != 2 {
		t.Errorf("active = %d, want 2", c.ActiveCommunicators())
	}
	if c.TotalCommunicators() != 2 {
		t.Errorf("total = %d, want 2", c.TotalCommunicators())
	}

	c.CommunicatorClosed()
	if c.ActiveCommunicators() != 1 {
		t.Errorf("active = %d, want 1", c.ActiveCommunicators())
	}
	if c.TotalCommunicators() != 2 {
		t.Errorf("total should remain 2, got %d", c.TotalCommunicators())
	}
}

func TestCollector_Bytes(t *testing.T) {
	c := New()

	c.PayloadReceived(1024)
	c.BytesSent(512)
	c.PayloadReceived(100)

	if c.TotalBytesIn() != 1124 {
		t.Errorf("bytes in = %d, want 1124", c.TotalBytesIn())
	}
	if c.Payloads() != 2 {
		t.Errorf("payloads = %d, want 2", c.Payloads())
	}
	if c.TotalBytesOut() != 512 {
		t.Errorf("bytes out = %d, want 512", c.TotalBytesOut())
	}
}

func TestCollector_Errors(t *testing.T) {
	c := New()

	c.RecordError("first error")
	c.AcceptFailed("accept error")

	if c.ErrorCount() != 2 {
		t.Errorf("errors = %d, want 2", c.ErrorCount())
	}
	if c.AcceptErrors() != 1 {
		t.Errorf("accept errors = %d, want 1", c.AcceptErrors())
	}
	if msg := c.Snapshot().LastErrorMessage; msg != "accept error" {
		t.Errorf("last error = %q", msg)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.CommunicatorOpened()
			c.PayloadReceived(10)
			c.CommunicatorClosed()
		}()
	}
	wg.Wait()

	if c.ActiveCommunicators() != 0 || c.TotalCommunicators() != 16 {
		t.Errorf("active=%d total=%d", c.ActiveCommunicators(), c.TotalCommunicators())
	}
	if c.TotalBytesIn() != 160 {
		t.Errorf("bytes in = %d, want 160", c.TotalBytesIn())
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.CommunicatorOpened()
	c.BytesSent(42)

	raw := c.JSON()
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if snap.CommunicatorsActive != 1 {
		t.Errorf("JSON active = %d", snap.CommunicatorsActive)
	}
	if snap.BytesOut != 42 {
		t.Errorf("JSON bytes out = %d", snap.BytesOut)
	}
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.CommunicatorOpened()
	c.CommunicatorClosed()
	c.PayloadReceived(100)
	c.BytesSent(100)
	c.RecordError("test")
	c.AcceptFailed("test")

	if c.ActiveCommunicators() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.TotalBytesIn() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.ErrorCount() != 0 {
		t.Error("nil collector should return 0")
	}

	if snap := c.Snapshot(); snap.CommunicatorsActive != 0 {
		t.Error("nil snapshot should be zero")
	}
	if c.JSON() == "" {
		t.Error("nil JSON should return valid JSON")
	}
}
