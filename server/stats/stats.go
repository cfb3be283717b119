// Package stats keeps periodically refreshed counters about stored order notes.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hrygo/ordernotes/server/service/ordernote"
	"github.com/hrygo/ordernotes/store"
)

// DefaultInterval is how often Start refreshes the statistics.
const DefaultInterval = time.Hour

// Stats represents note statistics.
type Stats struct {
	TotalOrders    int64     `json:"total_orders"`
	TotalNotes     int64     `json:"total_notes"`
	CustomerNotes  int64     `json:"customer_notes"`
	SystemNotes    int64     `json:"system_notes"`
	NotesLastWeek  int64     `json:"notes_last_week"`
	OrdersWithNone int64     `json:"orders_without_human_notes"`
	LastNoteTime   time.Time `json:"last_note_time"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Collector collects and manages note statistics.
type Collector struct {
	store      *store.Store
	classifier *ordernote.Classifier
	now        func() time.Time

	mu       sync.Mutex
	stats    Stats
	tickStop chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a new statistics collector.
func NewCollector(st *store.Store, classifier *ordernote.Classifier) *Collector {
	if classifier == nil {
		classifier = ordernote.MustNewClassifier()
	}
	return &Collector{
		store:      st,
		classifier: classifier,
		now:        time.Now,
		tickStop:   make(chan struct{}),
	}
}

// Start collects once and then every interval until ctx is done or Stop is called.
func (c *Collector) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if err := c.Collect(ctx); err != nil {
		slog.Warn("failed to collect note stats", slog.String("error", err.Error()))
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.Collect(ctx); err != nil {
					slog.Warn("failed to collect note stats", slog.String("error", err.Error()))
				}
			case <-ctx.Done():
				return
			case <-c.tickStop:
				return
			}
		}
	}()
}

// Stop stops the statistics collector.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.tickStop) })
}

// GetStats returns a copy of current statistics.
func (c *Collector) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Collect recomputes the statistics from the store.
func (c *Collector) Collect(ctx context.Context) error {
	orders, err := c.store.ListOrders(ctx, &store.FindOrder{})
	if err != nil {
		return err
	}
	notes, err := c.store.ListOrderNotes(ctx, &store.FindOrderNote{})
	if err != nil {
		return err
	}

	now := c.now()
	weekAgo := now.AddDate(0, 0, -7).Unix()
	next := Stats{
		TotalOrders: int64(len(orders)),
		TotalNotes:  int64(len(notes)),
		LastUpdated: now,
	}

	withHuman := make(map[int32]bool, len(orders))
	for _, n := range notes {
		if n.IsCustomerNote {
			next.CustomerNotes++
		}
		if c.classifier.IsSystemNote(n) {
			next.SystemNotes++
		}
		if c.classifier.IsHumanNote(n) {
			withHuman[n.OrderID] = true
		}
		if n.CreatedTs >= weekAgo {
			next.NotesLastWeek++
		}
		if created := time.Unix(n.CreatedTs, 0); created.After(next.LastNoteTime) {
			next.LastNoteTime = created
		}
	}
	for _, o := range orders {
		if !withHuman[o.ID] {
			next.OrdersWithNone++
		}
	}

	c.mu.Lock()
	c.stats = next
	c.mu.Unlock()
	return nil
}

// GetSummary returns a human-readable summary.
func (s Stats) GetSummary() string {
	return fmt.Sprintf(`Order notes (updated %s)

Orders: %d, %d without human notes
Notes: %d total, %d from customers, %d system generated
Last week: %d notes
Last note: %s`,
		s.LastUpdated.Format("2006-01-02 15:04"),
		s.TotalOrders, s.OrdersWithNone,
		s.TotalNotes, s.CustomerNotes, s.SystemNotes,
		s.NotesLastWeek,
		formatLastNote(s.LastNoteTime, s.LastUpdated),
	)
}

func formatLastNote(t, now time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
