package resource

import (
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func TestUnifiedTable_Basic(t *testing.T) {
	table := NewTable()

	h := table.Insert(1, "test")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if _, ok = table.GetTyped(h, 1); !ok {
		t.Fatal("GetTyped with correct type failed")
	}
	if _, ok = table.GetTyped(h, 2); ok {
		t.Fatal("GetTyped with wrong type should fail")
	}

	val, ok = table.Remove(h)
	if !ok {
		t.Fatal("Remove failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
}

func TestUnifiedTable_Transfer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := table.Insert(1, "data")
	moved, ok := table.Transfer(h)
	if !ok {
		t.Fatal("Transfer failed")
	}

	if _, ok := table.Get(h); ok {
		t.Fatal("moved-from handle must not resolve")
	}
	if v, ok := table.Get(moved); !ok || v != "data" {
		t.Fatalf("moved handle: got %v, %v", v, ok)
	}

	if len(obs.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(obs.events))
	}
	ev := obs.events[1]
	if ev.Type != EventMoved || ev.Handle != moved || ev.Previous != h {
		t.Fatalf("unexpected move event %+v", ev)
	}

	if _, ok := table.Transfer(h); ok {
		t.Fatal("moving a moved-from handle must fail")
	}
}

func TestUnifiedTable_TransferKeepsDropper(t *testing.T) {
	table := NewTable()
	dc := &dropCounter{}

	h := table.Insert(1, dc)
	moved, _ := table.Transfer(h)
	if dc.count != 0 {
		t.Fatal("Transfer must not run the destructor")
	}

	table.Remove(moved)
	if dc.count != 1 {
		t.Fatalf("Expected 1 drop, got %d", dc.count)
	}
}

func TestUnifiedTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := table.Insert(1, "test")
	if len(obs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventCreated {
		t.Fatal("Expected EventCreated")
	}
	if obs.events[0].Handle != h {
		t.Fatal("Wrong handle in event")
	}

	table.BorrowMut(h)
	table.Touch(h)
	table.ReturnMut(h)
	table.Remove(h)

	want := []EventType{EventCreated, EventBorrowed, EventMutated, EventBorrowReturned, EventDropped}
	if len(obs.events) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(obs.events))
	}
	for i, typ := range want {
		if obs.events[i].Type != typ {
			t.Errorf("event %d = %s, want %s", i, obs.events[i].Type, typ)
		}
	}

	table.Unsubscribe(obs)
	table.Insert(1, "quiet")
	if len(obs.events) != len(want) {
		t.Fatal("Unsubscribed observer still notified")
	}
}

func TestUnifiedTable_VersionTracksMutation(t *testing.T) {
	table := NewTable()

	h := table.Insert(1, "text")
	v0, _ := table.Version(h)

	table.Touch(h)
	v1, _ := table.Version(h)
	if v1 == v0 {
		t.Fatal("Touch must change the version")
	}

	if !table.BorrowMut(h) {
		t.Fatal("BorrowMut failed")
	}
	v2, _ := table.Version(h)
	if v2 == v1 {
		t.Fatal("BorrowMut must change the version")
	}

	if _, ok := table.Remove(h); ok {
		t.Fatal("Remove must fail while exclusively borrowed")
	}
	table.ReturnMut(h)
	if _, ok := table.Remove(h); !ok {
		t.Fatal("Remove failed after ReturnMut")
	}
}

func TestUnifiedTable_Clear(t *testing.T) {
	table := NewTable()

	table.Insert(1, "a")
	h := table.Insert(1, "b")
	table.Insert(1, "c")
	table.BorrowMut(h)

	table.Clear()

	if table.Len() != 0 {
		t.Fatalf("Expected Len() == 0 after Clear, got %d", table.Len())
	}
}

func TestUnifiedTable_Close(t *testing.T) {
	table := NewTable()

	table.Insert(1, "a")
	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if h := table.Insert(1, "test"); h != 0 {
		t.Fatal("Expected Insert to return 0 after Close")
	}
}

func TestUnifiedTable_Backend(t *testing.T) {
	table := NewTable()
	h := table.Insert(1, "x")

	backend := table.Backend()
	if backend == nil {
		t.Fatal("Backend() returned nil")
	}
	if _, ok := backend.Get(h); !ok {
		t.Fatal("backend should see values inserted through the table")
	}
}

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

func TestUnifiedTable_DropperInterface(t *testing.T) {
	table := NewTable()
	dc := &dropCounter{}

	h := table.Insert(1, dc)
	table.Remove(h)

	if dc.count != 1 {
		t.Fatalf("Expected 1 drop call, got %d", dc.count)
	}
}

type user struct {
	name string
}

func TestTyped(t *testing.T) {
	table := NewTable()
	users := NewTyped[*user](table, 10)
	names := NewTyped[string](table, 11)

	alice := users.Insert(&user{name: "alice"})
	names.Insert("bob")

	u, ok := users.Get(alice)
	if !ok || u.name != "alice" {
		t.Fatalf("Get = %v, %v", u, ok)
	}

	if _, ok := names.Get(alice); ok {
		t.Fatal("typed view must reject handles of another type")
	}

	if users.Len() != 1 || names.Len() != 1 {
		t.Fatalf("Len = %d/%d, want 1/1", users.Len(), names.Len())
	}

	if _, ok := names.Remove(alice); ok {
		t.Fatal("Remove through the wrong view must fail")
	}
	if _, ok := users.Remove(alice); !ok {
		t.Fatal("Remove failed")
	}
	if users.Len() != 0 {
		t.Fatal("Expected no users after Remove")
	}
	if users.Table() != table {
		t.Fatal("Table() should return the backing table")
	}
}
