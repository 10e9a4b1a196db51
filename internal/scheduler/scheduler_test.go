package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mailfold/mailfold/internal/campaign"
	"github.com/mailfold/mailfold/internal/models"
)

type fakeStore struct {
	mu       sync.Mutex
	due      []models.Campaign
	executed map[string]int
	claimed  map[string]bool
}

func newFakeStore(due ...models.Campaign) *fakeStore {
	return &fakeStore{
		due:      due,
		executed: make(map[string]int),
		claimed:  make(map[string]bool),
	}
}

// ListScheduledDue deliberately keeps returning claimed campaigns, like a
// stale read racing the status flip. The claim in Execute is the only guard.
func (f *fakeStore) ListScheduledDue(now time.Time) ([]models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Campaign{}, f.due...), nil
}

func (f *fakeStore) Execute(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimed[id] {
		return campaign.ErrNotExecutable
	}
	f.claimed[id] = true
	f.executed[id]++
	return nil
}

func (f *fakeStore) executions(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.executed[id]
}

func TestSchedulerFiresDueCampaigns(t *testing.T) {
	store := newFakeStore(
		models.Campaign{ID: "c1", Name: "First"},
		models.Campaign{ID: "c2", Name: "Second"},
	)
	s := New(store, store, 10*time.Millisecond, nil, slog.Default())

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if store.executions("c1") == 1 && store.executions("c2") == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("due campaigns not fired: c1=%d c2=%d", store.executions("c1"), store.executions("c2"))
}

func TestSchedulerFiresEachCampaignOnce(t *testing.T) {
	store := newFakeStore(models.Campaign{ID: "c1", Name: "Only"})
	s := New(store, store, 5*time.Millisecond, nil, slog.Default())

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if got := store.executions("c1"); got != 1 {
		t.Errorf("campaign executed %d times, want 1", got)
	}
}

func TestSchedulerToleratesClaimLoss(t *testing.T) {
	// The campaign is executed out of band before the first tick. The
	// scheduler must treat the lost claim as a no-op, not an error, and
	// never cause a second send.
	store := newFakeStore(models.Campaign{ID: "c1", Name: "Manual"})
	if err := store.Execute(context.Background(), "c1"); err != nil {
		t.Fatalf("manual execute: %v", err)
	}

	s := New(store, store, 5*time.Millisecond, nil, slog.Default())
	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	if got := store.executions("c1"); got != 1 {
		t.Errorf("campaign executed %d times, want the single manual run", got)
	}
}

func TestSchedulerStop(t *testing.T) {
	store := newFakeStore()
	s := New(store, store, time.Millisecond, nil, slog.Default())

	s.Start(context.Background())
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
