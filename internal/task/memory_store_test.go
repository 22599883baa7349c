package task

import (
	"context"
	"testing"
	"time"
)

// fixedClockStore 返回一个时间可控的 MemoryStore。
func fixedClockStore(start time.Time) (*MemoryStore, *time.Time) {
	now := start
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	return store, &now
}

func seedTasks(t *testing.T, store *MemoryStore, clock *time.Time) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []string{"t1", "t2", "t3"} {
		if err := store.Create(ctx, &Task{ID: id, Query: "query " + id, Status: StatusPending, MaxRetries: 3}); err != nil {
			t.Fatalf("create task %s: %v", id, err)
		}
		*clock = clock.Add(30 * time.Second)
	}
	if err := store.MarkFailed(ctx, "t2", CodeTaskProcessing, "rpc timeout", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	*clock = clock.Add(30 * time.Second)
	if err := store.MarkSucceeded(ctx, "t3", ExecutionResult{Output: "Pool 7 has 3 members"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
}

func TestMemoryStoreListWithFilters(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	store, clock := fixedClockStore(base)
	seedTasks(t, store, clock)
	ctx := context.Background()

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].ID != "t3" || all[2].ID != "t1" {
		t.Fatalf("unexpected order: %v", ids(all))
	}

	asc, _ := store.List(ctx, buildListOptions([]ListOption{WithSortOrder(SortByUpdatedAsc), WithLimit(2), WithOffset(1)}))
	if len(asc) != 2 || asc[0].ID != "t2" || asc[1].ID != "t3" {
		t.Fatalf("unexpected paged ascending list: %v", ids(asc))
	}

	failed, _ := store.List(ctx, buildListOptions([]ListOption{WithStatuses(StatusFailed, "bogus")}))
	if len(failed) != 1 || failed[0].ID != "t2" {
		t.Fatalf("unexpected failed list: %v", ids(failed))
	}

	withResult, _ := store.List(ctx, buildListOptions([]ListOption{WithResultPresence(true)}))
	if len(withResult) != 1 || withResult[0].ID != "t3" {
		t.Fatalf("unexpected result list: %v", ids(withResult))
	}

	recent, _ := store.List(ctx, buildListOptions([]ListOption{WithUpdatedSince(base.Add(45 * time.Second))}))
	if len(recent) != 2 {
		t.Fatalf("expected 2 tasks to match since filter, got %v", ids(recent))
	}

	searched, _ := store.List(ctx, buildListOptions([]ListOption{WithSearch("POOL 7")}))
	if len(searched) != 1 || searched[0].ID != "t3" {
		t.Fatalf("search should match output case-insensitively: %v", ids(searched))
	}

	beyond, _ := store.List(ctx, buildListOptions([]ListOption{WithOffset(10)}))
	if len(beyond) != 0 {
		t.Fatalf("offset beyond range should return empty list")
	}
}

func TestMemoryStoreStats(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	store, clock := fixedClockStore(base)
	seedTasks(t, store, clock)
	ctx := context.Background()

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Failed != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.OldestUpdatedAt != base.Unix() || stats.NewestUpdatedAt != base.Add(2*time.Minute).Unix() {
		t.Fatalf("unexpected timestamps: %+v", stats)
	}

	without, _ := store.Stats(ctx, buildListOptions([]ListOption{WithResultPresence(false)}))
	if without.Total != 2 || without.Pending != 1 || without.Failed != 1 {
		t.Fatalf("unexpected stats without result: %+v", without)
	}
}

func TestMemoryStoreClaimLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, &Task{ID: "c", Query: "q", Status: StatusPending, MaxRetries: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, &Task{ID: "c", Query: "q"}); err != ErrTaskConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	claimed, err := store.Claim(ctx, "c")
	if err != nil || claimed.Status != StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("unexpected claim: %+v, %v", claimed, err)
	}
	if _, err := store.Claim(ctx, "c"); err != ErrTaskConflict {
		t.Fatalf("running task should conflict, got %v", err)
	}
	if err := store.MarkFailed(ctx, "c", CodeTaskProcessing, "boom", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if _, err := store.Claim(ctx, "c"); err != ErrTaskExhausted {
		t.Fatalf("exhausted task should not be claimed, got %v", err)
	}
	if _, err := store.Claim(ctx, "missing"); err != ErrTaskNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	got, _ := store.Get(ctx, "c")
	got.Query = "mutated"
	again, _ := store.Get(ctx, "c")
	if again.Query != "q" {
		t.Fatalf("Get must return a copy")
	}
}

func ids(tasks []*Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.ID)
	}
	return out
}
