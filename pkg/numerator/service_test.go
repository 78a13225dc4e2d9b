package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the sys_sequences UPSERT: every call bumps the
// counter by the increment argument (1 for strict, range size for cached).
type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	calls        int
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}

	m.currentValue += increment
	m.calls++

	return &mockRow{val: m.currentValue}
}

var testPeriod = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("TEST")

	num, err := svc.GetNextNumber(ctx, cfg, nil, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TEST-2026-00001" {
		t.Errorf("expected TEST-2026-00001, got %s", num)
	}

	num, err = svc.GetNextNumber(ctx, cfg, nil, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TEST-2026-00002" {
		t.Errorf("expected TEST-2026-00002, got %s", num)
	}
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("ORD")

	opts := &Options{
		Strategy:  StrategyCached,
		RangeSize: 10,
	}

	// First call allocates range 1..10, returns 1
	num, err := svc.GetNextNumber(ctx, cfg, opts, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ORD-2026-00001" {
		t.Errorf("expected ORD-2026-00001, got %s", num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value to be 10, got %d", q.currentValue)
	}

	// Second call served from memory, DB untouched
	num, err = svc.GetNextNumber(ctx, cfg, opts, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ORD-2026-00002" {
		t.Errorf("expected ORD-2026-00002, got %s", num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value to stay 10, got %d", q.currentValue)
	}

	// Exhaust the range, next call refills from DB
	for i := 0; i < 8; i++ {
		_, _ = svc.GetNextNumber(ctx, cfg, opts, testPeriod)
	}

	num, err = svc.GetNextNumber(ctx, cfg, opts, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ORD-2026-00011" {
		t.Errorf("expected ORD-2026-00011, got %s", num)
	}
	if q.currentValue != 20 {
		t.Errorf("expected DB value to be 20, got %d", q.currentValue)
	}
}

func TestGetNextNumber_NoYear(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	cfg := Config{Prefix: "RET", PadWidth: 4, ResetPeriod: "never"}

	num, err := svc.GetNextNumber(context.Background(), cfg, nil, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "RET-0001" {
		t.Errorf("expected RET-0001, got %s", num)
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"ORD-2026-00042", 42},
		{"RET-0007", 7},
		{"garbage", -1},
	}

	for _, tc := range cases {
		if got := ParseNumber(tc.in); got != tc.want {
			t.Errorf("ParseNumber(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
