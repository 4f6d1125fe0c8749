package results

import (
	"testing"
	"time"

	"hrvguard/internal/model"
)

func TestStoreKeepsLatestPerChannel(t *testing.T) {
	s := NewStore(10)
	s.Update(model.Result{ID: "a", RecordID: "100", Channel: 1})
	s.Update(model.Result{ID: "b", RecordID: "100", Channel: 0})
	s.Update(model.Result{ID: "c", RecordID: "100", Channel: 0})
	list, _, ok := s.Get("100")
	if !ok || len(list) != 2 {
		t.Fatalf("expected 2 channels, got %v", list)
	}
	if list[0].Channel != 0 || list[0].ID != "c" || list[1].ID != "a" {
		t.Fatalf("unexpected order or content: %+v", list)
	}
}

func TestStoreEvictsOldest(t *testing.T) {
	s := NewStore(2)
	s.Update(model.Result{RecordID: "100"})
	time.Sleep(time.Millisecond)
	s.Update(model.Result{RecordID: "101"})
	time.Sleep(time.Millisecond)
	s.Update(model.Result{RecordID: "102"})
	if _, _, ok := s.Get("100"); ok {
		t.Fatalf("oldest record should be evicted")
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d", s.Len())
	}
	s.Clear()
	if len(s.GetAll()) != 0 {
		t.Fatalf("clear failed")
	}
}
