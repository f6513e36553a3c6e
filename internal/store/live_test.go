package store

import (
	"context"
	"fmt"
	"os"
	"testing"
)

// TestLiveDatabase opens the real critique database and lists its sessions.
// Skipped if the database doesn't exist.
func TestLiveDatabase(t *testing.T) {
	dbPath := DefaultDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Skip("database not found at", dbPath)
	}

	ctx := context.Background()
	s, err := OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) == 0 {
		fmt.Println("No critiques in database")
		return
	}

	fmt.Printf("Critiques: %d\n", len(list))
	for i, sum := range list {
		fmt.Printf("  %d. %s (id=%s audio=%s strokes=%d actions=%d)\n", i+1, sum.ContentID,
			sum.ID, sum.Duration, sum.Strokes, sum.Actions)
	}

	// The newest session must load in full.
	sess, err := s.Load(ctx, list[0].ContentID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := sess.Validate(); err != nil {
		t.Errorf("stored session invalid: %v", err)
	}
}
