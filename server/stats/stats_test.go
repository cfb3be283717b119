package stats

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hrygo/ordernotes/store"
	"github.com/hrygo/ordernotes/store/test"
)

func TestCollector_Collect(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)

	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	withNotes, err := ts.CreateOrder(ctx, &store.Order{Number: "1001"})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := ts.CreateOrder(ctx, &store.Order{Number: "1002"}); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	blankOnly, err := ts.CreateOrder(ctx, &store.Order{Number: "1003"})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := ts.CreateOrderNote(ctx, &store.OrderNote{OrderID: blankOnly.ID, Content: "   ", CreatedTs: now.AddDate(0, 0, -30).Unix()}); err != nil {
		t.Fatalf("CreateOrderNote: %v", err)
	}
	for _, n := range []*store.OrderNote{
		{Content: "Order status changed from Pending payment to Processing.", CreatedTs: now.AddDate(0, 0, -10).Unix()},
		{Content: "Please ring twice", IsCustomerNote: true, CreatedTs: now.AddDate(0, 0, -2).Unix()},
		{Content: "Payment received", CreatedTs: now.Add(-time.Hour).Unix()},
	} {
		n.OrderID = withNotes.ID
		if _, err := ts.CreateOrderNote(ctx, n); err != nil {
			t.Fatalf("CreateOrderNote: %v", err)
		}
	}

	collector := NewCollector(ts, nil)
	collector.now = func() time.Time { return now }
	if err := collector.Collect(ctx); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	stats := collector.GetStats()
	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"TotalOrders", stats.TotalOrders, 3},
		{"TotalNotes", stats.TotalNotes, 4},
		{"CustomerNotes", stats.CustomerNotes, 1},
		{"SystemNotes", stats.SystemNotes, 2},
		{"NotesLastWeek", stats.NotesLastWeek, 2},
		{"OrdersWithNone", stats.OrdersWithNone, 2},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
	if !stats.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", stats.LastUpdated, now)
	}
	if got := stats.GetSummary(); !strings.Contains(got, "Last note: 1 hour ago") {
		t.Errorf("GetSummary() = %q", got)
	}
}

func TestCollector_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ts := test.NewTestingStore(ctx, t)

	collector := NewCollector(ts, nil)
	collector.Start(ctx, time.Hour)
	collector.Stop()
	collector.Stop()

	if collector.GetStats().LastUpdated.IsZero() {
		t.Error("LastUpdated should be set after Start")
	}
}

func TestStats_GetSummaryEmpty(t *testing.T) {
	summary := Stats{LastUpdated: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}.GetSummary()
	for _, want := range []string{"2026-01-01 00:00", "Orders: 0", "Last note: none"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}
