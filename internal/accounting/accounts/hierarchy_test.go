package accounts

import (
	"testing"
)

func ptr(v int64) *int64 { return &v }

func TestBuildHierarchyOrdersByCode(t *testing.T) {
	flat := []Account{
		{ID: 4, Code: "1200", ParentID: ptr(1)},
		{ID: 2, Code: "2000"},
		{ID: 1, Code: "1000"},
		{ID: 3, Code: "1100", ParentID: ptr(1)},
		{ID: 5, Code: "1110", ParentID: ptr(3)},
	}
	roots := BuildHierarchy(flat)
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	if roots[0].Code != "1000" || roots[1].Code != "2000" {
		t.Fatalf("unexpected root order %s, %s", roots[0].Code, roots[1].Code)
	}
	if len(roots[0].Children) != 2 || roots[0].Children[0].Code != "1100" {
		t.Fatalf("unexpected children of 1000: %+v", roots[0].Children)
	}
	if got := roots[0].Children[0].Children[0].Code; got != "1110" {
		t.Fatalf("expected 1110 under 1100, got %s", got)
	}

	var visited []string
	Walk(roots, func(n *Node, depth int) {
		visited = append(visited, n.Code)
	})
	if len(visited) != len(flat) {
		t.Fatalf("each account must appear once, visited %v", visited)
	}
}

func TestBuildHierarchyOrphansBecomeRoots(t *testing.T) {
	roots := BuildHierarchy([]Account{
		{ID: 1, Code: "1000", ParentID: ptr(99)},
		{ID: 2, Code: "2000", ParentID: ptr(2)},
	})
	if len(roots) != 2 {
		t.Fatalf("expected orphan and self-parented accounts at the root, got %d", len(roots))
	}
	if roots[0].Children == nil {
		t.Fatalf("children must be an empty slice, not nil")
	}
}

func TestBuildHierarchyBreaksParentCycles(t *testing.T) {
	roots := BuildHierarchy([]Account{
		{ID: 1, Code: "1000"},
		{ID: 2, Code: "1100", ParentID: ptr(3)},
		{ID: 3, Code: "1200", ParentID: ptr(2)},
		{ID: 4, Code: "1210", ParentID: ptr(3)},
	})
	if len(roots) != 2 || roots[0].Code != "1000" || roots[1].Code != "1100" {
		t.Fatalf("expected 1000 and the lowest cycle member as roots, got %d roots", len(roots))
	}
	if len(roots[1].Children) != 1 || roots[1].Children[0].Code != "1200" {
		t.Fatalf("expected 1200 under 1100, got %+v", roots[1].Children)
	}

	seen := map[string]int{}
	Walk(roots, func(n *Node, depth int) {
		seen[n.Code]++
	})
	if len(seen) != 4 {
		t.Fatalf("every account must be visible, visited %v", seen)
	}
	for code, count := range seen {
		if count != 1 {
			t.Fatalf("account %s visited %d times", code, count)
		}
	}
}

func TestNormalBalanceDelta(t *testing.T) {
	if got := NormalBalanceDebit.Delta(500, 200); got != 300 {
		t.Fatalf("debit account delta want 300 got %d", got)
	}
	if got := NormalBalanceCredit.Delta(500, 200); got != -300 {
		t.Fatalf("credit account delta want -300 got %d", got)
	}
	if AccountTypeExpense.NormalBalance() != NormalBalanceDebit || AccountTypeEquity.NormalBalance() != NormalBalanceCredit {
		t.Fatalf("unexpected default normal balance")
	}
}
