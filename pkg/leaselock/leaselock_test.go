package leaselock

import (
	"testing"
	"time"
)

func TestWithDefaults(t *testing.T) {
	opts := withDefaults(Options{})
	if opts.TTL != defaultTTL {
		t.Fatalf("expected default TTL, got %v", opts.TTL)
	}
	if opts.RenewEvery != defaultTTL/2 {
		t.Fatalf("expected renew at half TTL, got %v", opts.RenewEvery)
	}
	if opts.WaitInterval != 250*time.Millisecond {
		t.Fatalf("expected default wait interval, got %v", opts.WaitInterval)
	}
}

func TestWithDefaultsRenewCappedBelowTTL(t *testing.T) {
	opts := withDefaults(Options{TTL: 10 * time.Second, RenewEvery: 20 * time.Second})
	if opts.RenewEvery >= opts.TTL {
		t.Fatalf("renew interval %v must be below TTL %v", opts.RenewEvery, opts.TTL)
	}
}

func TestWithDefaultsShortTTLKeepsSecondFloor(t *testing.T) {
	opts := withDefaults(Options{TTL: 500 * time.Millisecond})
	if opts.RenewEvery != time.Second {
		t.Fatalf("expected one second floor, got %v", opts.RenewEvery)
	}
}
