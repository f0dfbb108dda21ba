package redis

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_NilClientAllows(t *testing.T) {
	l := NewLimiter(nil, Config{Capacity: 5})
	for i := 0; i < 10; i++ {
		d, err := l.Allow(context.Background(), "203.0.113.7")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !d.Allowed || d.Limit != 5 {
			t.Fatalf("unexpected decision %+v", d)
		}
	}
}

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(nil, Config{})
	if l.cfg.Capacity != 60 || l.cfg.RefillTokens != 1 || l.cfg.RefillInterval != time.Second {
		t.Errorf("unexpected defaults %+v", l.cfg)
	}
	if l.cfg.Prefix == "" || l.cfg.TTL == 0 {
		t.Errorf("prefix and ttl should default, got %+v", l.cfg)
	}
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name        string
		vals        any
		wantAllowed bool
		wantRemain  int64
		wantRetry   time.Duration
		wantErr     bool
	}{
		{"allowed", []any{int64(1), int64(4), int64(0)}, true, 4, 0, false},
		{"blocked", []any{int64(0), int64(0), int64(750)}, false, 0, 750 * time.Millisecond, false},
		{"string values", []any{"1", "2", "0"}, true, 2, 0, false},
		{"short array", []any{int64(1)}, false, 0, 0, true},
		{"wrong type", "OK", false, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseResult(tt.vals)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseResult failed: %v", err)
			}
			if d.Allowed != tt.wantAllowed || d.Remaining != tt.wantRemain || d.RetryAfter != tt.wantRetry {
				t.Errorf("unexpected decision %+v", d)
			}
		})
	}
}
