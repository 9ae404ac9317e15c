package store

import (
	"testing"
	"time"
)

func TestDefaultPool(t *testing.T) {
	tests := []struct {
		maxOpen  int
		wantOpen int
		wantIdle int
	}{
		{maxOpen: 0, wantOpen: 20, wantIdle: 10},
		{maxOpen: 8, wantOpen: 8, wantIdle: 4},
		{maxOpen: 1, wantOpen: 1, wantIdle: 1},
	}
	for _, tt := range tests {
		pool := DefaultPool(tt.maxOpen)
		if pool.MaxOpen != tt.wantOpen || pool.MaxIdle != tt.wantIdle {
			t.Fatalf("DefaultPool(%d) = %+v, want open=%d idle=%d", tt.maxOpen, pool, tt.wantOpen, tt.wantIdle)
		}
		if pool.MaxLifetime != 30*time.Minute || pool.MaxIdleTime != 5*time.Minute {
			t.Fatalf("unexpected lifetimes %+v", pool)
		}
	}
}
