package utils

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestIDSetNoDuplicates(t *testing.T) {
	s := NewIDSet()

	if !s.Add("A1") {
		t.Error("first Add should return true")
	}
	if s.Add("A1") {
		t.Error("second Add of same id should return false")
	}
	if !s.Add("A2") {
		t.Error("Add of a new id should return true")
	}
}

func TestIDSetConcurrency(t *testing.T) {
	s := NewIDSet()
	var added int64
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add("same") {
				atomic.AddInt64(&added, 1)
			}
		}()
	}
	wg.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}
