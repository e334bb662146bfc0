package fence_test

import (
	"testing"

	"github.com/jrife/flock/kvs/fence"
	"github.com/jrife/flock/kvs/tree"
)

func TestAggregateBecomesReadyOnLastParticipant(t *testing.T) {
	table := fence.NewTable(false)

	f := table.Aggregate("txn1", 2, false, []tree.Operation{tree.NewSet("a", tree.NewFileVal(1))}, "req1")
	if table.ProcessFenceRequest(f) {
		t.Fatal("fence should not be ready after 1 of 2 participants")
	}

	f = table.Aggregate("txn1", 2, false, []tree.Operation{tree.NewSet("b", tree.NewFileVal(2))}, "req2")
	if !table.ProcessFenceRequest(f) {
		t.Fatal("fence should become ready after 2nd of 2 participants")
	}

	if !table.CommitsReady() {
		t.Fatal("expected a ready commit")
	}
}

func TestProcessFenceRequestIdempotent(t *testing.T) {
	table := fence.NewTable(false)

	f := table.Aggregate("txn1", 1, false, nil, "req1")
	if !table.ProcessFenceRequest(f) {
		t.Fatal("expected first call to make it ready")
	}

	if table.ProcessFenceRequest(f) {
		t.Fatal("expected second call to be a no-op")
	}

	count := 0
	for table.CommitsReady() {
		if _, ok := table.GetReadyCommit(); ok {
			count++
		}
	}

	if count != 1 {
		t.Fatalf("expected exactly 1 ready commit, got %d", count)
	}
}

func TestGetReadyCommitFIFOOrder(t *testing.T) {
	table := fence.NewTable(false)

	f1 := table.Aggregate("txn1", 1, false, nil, nil)
	table.ProcessFenceRequest(f1)

	f2 := table.Aggregate("txn2", 1, false, nil, nil)
	table.ProcessFenceRequest(f2)

	c1, ok := table.GetReadyCommit()
	if !ok || c1.Names[0] != "txn1" {
		t.Fatalf("expected txn1 first, got %v", c1)
	}

	c2, ok := table.GetReadyCommit()
	if !ok || c2.Names[0] != "txn2" {
		t.Fatalf("expected txn2 second, got %v", c2)
	}

	if table.CommitsReady() {
		t.Fatal("expected no more ready commits")
	}
}

func TestMergeReadyCommitsRespectsNoMerge(t *testing.T) {
	table := fence.NewTable(true)

	f1 := table.Aggregate("txn1", 1, false, []tree.Operation{tree.NewSet("a", tree.NewFileVal(1))}, nil)
	table.ProcessFenceRequest(f1)

	f2 := table.Aggregate("txn2", 1, true, []tree.Operation{tree.NewSet("b", tree.NewFileVal(2))}, nil)
	table.ProcessFenceRequest(f2)

	f3 := table.Aggregate("txn3", 1, false, []tree.Operation{tree.NewSet("c", tree.NewFileVal(3))}, nil)
	table.ProcessFenceRequest(f3)

	table.MergeReadyCommits()

	c1, ok := table.GetReadyCommit()
	if !ok {
		t.Fatal("expected a merged commit first")
	}

	if len(c1.Names) != 2 || c1.Names[0] != "txn1" || c1.Names[1] != "txn3" {
		t.Fatalf("expected merged commit naming txn1, txn3 in queue order, got %v", c1.Names)
	}

	if len(c1.Ops) != 2 {
		t.Fatalf("expected merged commit to carry both operation lists, got %d ops", len(c1.Ops))
	}

	c2, ok := table.GetReadyCommit()
	if !ok || len(c2.Names) != 1 || c2.Names[0] != "txn2" {
		t.Fatalf("expected txn2 to remain unmerged, got %v", c2)
	}

	if table.CommitsReady() {
		t.Fatal("expected exactly 2 commits after merge")
	}
}

func TestMergeReadyCommitsNoopWhenDisabled(t *testing.T) {
	table := fence.NewTable(false)

	f1 := table.Aggregate("txn1", 1, false, nil, nil)
	table.ProcessFenceRequest(f1)

	f2 := table.Aggregate("txn2", 1, false, nil, nil)
	table.ProcessFenceRequest(f2)

	table.MergeReadyCommits()

	c1, _ := table.GetReadyCommit()
	c2, _ := table.GetReadyCommit()

	if c1.Names[0] != "txn1" || c2.Names[0] != "txn2" {
		t.Fatal("expected commits to remain separate when merging is disabled")
	}
}

func TestNoopStoresCounter(t *testing.T) {
	table := fence.NewTable(false)

	if table.NoopStores() != 0 {
		t.Fatal("expected zero noop_stores initially")
	}

	table.IncrNoopStores()
	table.IncrNoopStores()

	if table.NoopStores() != 2 {
		t.Fatalf("expected 2 noop_stores, got %d", table.NoopStores())
	}

	table.AddNoopStores(3)

	if table.NoopStores() != 5 {
		t.Fatalf("expected 5 noop_stores after AddNoopStores(3), got %d", table.NoopStores())
	}

	table.ClearNoopStores()

	if table.NoopStores() != 0 {
		t.Fatalf("expected 0 noop_stores after clear, got %d", table.NoopStores())
	}
}
