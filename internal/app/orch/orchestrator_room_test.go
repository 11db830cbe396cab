package orch_test

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/app/orch"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
)

// TestMemberCountTracksJoinsAndLeaves walks a room through joins, a repeat
// join, a move and a disconnect, checking the count after each step.
func TestMemberCountTracksJoinsAndLeaves(t *testing.T) {
	h := newHarness(t, orch.Options{})
	for _, sid := range []core.SessionID{"a", "b", "c"} {
		h.connect(sid, string(sid))
	}
	count := func(id domain.RoomID) int {
		st, err := h.o.RoomDetails(id)
		if err != nil {
			return -1
		}
		if len(st.Members) != st.Room.MemberCount {
			t.Fatalf("members %d != count %d", len(st.Members), st.Room.MemberCount)
		}
		return st.Room.MemberCount
	}

	h.o.JoinRoom("a", "r1", nil)
	h.o.JoinRoom("b", "r1", nil)
	h.o.JoinRoom("b", "r1", nil)
	if n := count("r1"); n != 2 {
		t.Fatalf("after joins count = %d, want 2", n)
	}
	h.o.JoinRoom("c", "r1", nil)
	h.o.JoinRoom("c", "r2", nil)
	if n := count("r1"); n != 2 {
		t.Fatalf("after move r1 count = %d, want 2", n)
	}
	if n := count("r2"); n != 1 {
		t.Fatalf("after move r2 count = %d, want 1", n)
	}
	h.o.Disconnect("a")
	h.o.LeaveRoom("b", "r1")
	h.o.LeaveRoom("b", "r1")
	if n := count("r1"); n != 0 {
		t.Fatalf("after leaves count = %d, want 0", n)
	}
}

func TestJoinEventOrder(t *testing.T) {
	h := newHarness(t, orch.Options{})
	a := h.connect("a", "Alice")
	b := h.connect("b", "Bob")
	h.o.JoinRoom("a", "lobby", nil)
	a.Reset()
	b.Reset()

	st, err := h.o.JoinRoom("b", "lobby", &domain.Display{Name: "Bobby"})
	if err != nil {
		t.Fatal(err)
	}
	if st.Room.Topic != domain.DefaultTopic || st.Room.MemberCount != 2 {
		t.Errorf("state = %+v", st.Room)
	}
	if got := b.Types(); !slices.Equal(got, []string{app.EventRoomState}) {
		t.Errorf("joiner events = %v", got)
	}
	var m domain.Member
	if !a.Last(app.EventMemberJoined, &m) || m.ID != "b" || m.Name != "Bobby" {
		t.Errorf("member_joined = %+v, events %v", m, a.Types())
	}
}

func TestRejoinDoesNotRebroadcast(t *testing.T) {
	h := newHarness(t, orch.Options{})
	a := h.connect("a", "Alice")
	b := h.connect("b", "Bob")
	h.o.JoinRoom("a", "lobby", nil)
	h.o.JoinRoom("b", "lobby", nil)
	a.Reset()
	b.Reset()

	st, err := h.o.JoinRoom("b", "lobby", nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.Room.MemberCount != 2 {
		t.Errorf("count = %d, want 2", st.Room.MemberCount)
	}
	if got := b.Types(); !slices.Equal(got, []string{app.EventRoomState}) {
		t.Errorf("joiner events = %v", got)
	}
	if n := a.Count(app.EventMemberJoined); n != 0 {
		t.Errorf("peer got %d member_joined on rejoin", n)
	}
}

func TestLazyJoinAnnouncesRoom(t *testing.T) {
	h := newHarness(t, orch.Options{})
	a := h.connect("a", "A")
	watcher := h.connect("w", "W")
	a.Reset()
	watcher.Reset()

	h.o.JoinRoom("a", "fresh", nil)
	var info core.RoomInfo
	if !watcher.Last(app.EventRoomCreated, &info) || info.ID != "fresh" {
		t.Errorf("room_created = %+v, events %v", info, watcher.Types())
	}
	h.o.JoinRoom("w", "fresh", nil)
	if n := watcher.Count(app.EventRoomCreated); n != 1 {
		t.Errorf("room_created count = %d, want 1", n)
	}
}

func TestCreateRoom(t *testing.T) {
	h := newHarness(t, orch.Options{})
	h.o.NewID = func() string { return "generated" }
	h.connect("a", "A")

	info, err := h.o.CreateRoom("", domain.RoomMeta{Topic: "Go", Level: "B2"})
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != "generated" || info.Topic != "Go" || info.Language != domain.DefaultLanguage || info.MemberCount != 0 {
		t.Errorf("info = %+v", info)
	}
	if _, err := h.o.CreateRoom("generated", domain.RoomMeta{}); !errors.Is(err, core.ErrDuplicateRoom) {
		t.Errorf("duplicate err = %v", err)
	}
	if _, err := h.o.CreateRoom("   ", domain.RoomMeta{}); !errors.Is(err, domain.ErrRoomIDInvalid) {
		t.Errorf("blank id err = %v", err)
	}
	if !h.o.Reaper.Pending("generated") {
		t.Error("empty created room should have a pending deletion")
	}
	h.o.JoinRoom("a", "generated", nil)
	if h.o.Reaper.Pending("generated") {
		t.Error("join should cancel the pending deletion")
	}
}

func TestRoomCapacity(t *testing.T) {
	h := newHarness(t, orch.Options{RoomCapacity: 2})
	for _, sid := range []core.SessionID{"a", "b", "c"} {
		h.connect(sid, string(sid))
	}
	h.o.JoinRoom("a", "small", nil)
	h.o.JoinRoom("b", "small", nil)
	if _, err := h.o.JoinRoom("c", "small", nil); !errors.Is(err, core.ErrRoomFull) {
		t.Fatalf("third join err = %v", err)
	}
	if _, err := h.o.JoinRoom("b", "small", nil); err != nil {
		t.Errorf("rejoin by member err = %v", err)
	}
	if room, _ := h.o.Registry.RoomOf("c"); room != "" {
		t.Errorf("rejected joiner recorded in %q", room)
	}
}

// TestEmptyRoomDeletedOnce checks that expiry deletes the room, announces it
// exactly once and drops it from the listing.
func TestEmptyRoomDeletedOnce(t *testing.T) {
	h := newHarness(t, orch.Options{})
	h.connect("a", "A")
	watcher := h.connect("w", "W")
	h.o.JoinRoom("a", "temp", nil)
	h.o.LeaveRoom("a", "temp")
	watcher.Reset()

	if n := h.clock.FireAll(); n != 1 {
		t.Fatalf("fired %d timers, want 1", n)
	}
	h.clock.FireAll()
	if n := watcher.Count(app.EventRoomDeleted); n != 1 {
		t.Fatalf("room_deleted count = %d, want 1", n)
	}
	var ref app.RoomRef
	watcher.Last(app.EventRoomDeleted, &ref)
	if ref.RoomID != "temp" {
		t.Errorf("deleted %q", ref.RoomID)
	}
	for _, r := range h.o.ListRooms() {
		if r.ID == "temp" {
			t.Fatal("deleted room still listed")
		}
	}
}

// TestJoinBeforeExpiryKeepsRoom fires a timer that was stopped by a join, as
// happens when the callback is already running. The room must survive.
func TestJoinBeforeExpiryKeepsRoom(t *testing.T) {
	h := newHarness(t, orch.Options{})
	h.connect("a", "A")
	h.connect("b", "B")
	h.o.JoinRoom("a", "temp", nil)
	h.o.LeaveRoom("a", "temp")
	timers := h.clock.All()
	if len(timers) != 1 {
		t.Fatalf("timers = %d, want 1", len(timers))
	}

	h.o.JoinRoom("b", "temp", nil)
	timers[0].Fire()

	if _, err := h.o.RoomDetails("temp"); err != nil {
		t.Fatalf("room gone after join: %v", err)
	}
	if h.clock.Pending() != 0 {
		t.Error("join left a live timer behind")
	}
}

func TestRearmOnSecondEmptying(t *testing.T) {
	h := newHarness(t, orch.Options{})
	h.connect("a", "A")
	h.o.JoinRoom("a", "temp", nil)
	h.o.LeaveRoom("a", "temp")
	h.o.JoinRoom("a", "temp", nil)
	h.o.LeaveRoom("a", "temp")

	if n := h.clock.FireAll(); n != 1 {
		t.Fatalf("live timers fired = %d, want 1", n)
	}
	if _, err := h.o.RoomDetails("temp"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("room after expiry err = %v", err)
	}
}

func TestDisconnectLeavesRoom(t *testing.T) {
	h := newHarness(t, orch.Options{})
	h.connect("a", "A")
	b := h.connect("b", "B")
	h.o.JoinRoom("a", "lobby", nil)
	h.o.JoinRoom("b", "lobby", nil)
	b.Reset()

	h.o.Disconnect("a")
	var ref app.MemberRef
	if !b.Last(app.EventMemberLeft, &ref) || ref.ID != "a" || ref.RoomID != "lobby" {
		t.Errorf("member_left = %+v", ref)
	}
	h.o.Disconnect("b")
	if !h.o.Reaper.Pending("lobby") {
		t.Error("room emptied by disconnect should be pending deletion")
	}
}

func TestDeleteRoom(t *testing.T) {
	h := newHarness(t, orch.Options{})
	a := h.connect("a", "A")
	h.o.JoinRoom("a", "lobby", nil)
	a.Reset()

	if !h.o.DeleteRoom("lobby") {
		t.Fatal("delete reported missing room")
	}
	if h.o.DeleteRoom("lobby") {
		t.Error("second delete should report missing")
	}
	if a.Count(app.EventRoomDeleted) != 1 {
		t.Errorf("events = %v", a.Types())
	}
	if room, _ := h.o.Registry.RoomOf("a"); room != "" {
		t.Errorf("member still in %q", room)
	}
}

func TestSendMessageReachesSender(t *testing.T) {
	h := newHarness(t, orch.Options{})
	a := h.connect("a", "Alice")
	b := h.connect("b", "Bob")
	h.connect("c", "Carol")
	h.o.JoinRoom("a", "lobby", nil)
	h.o.JoinRoom("b", "lobby", nil)
	a.Reset()
	b.Reset()

	if err := h.o.SendMessage("a", "lobby", json.RawMessage(`"hi"`)); err != nil {
		t.Fatal(err)
	}
	for name, c := range map[string]interface{ Count(string) int }{"sender": a, "peer": b} {
		if c.Count(app.EventMessage) != 1 {
			t.Errorf("%s got %d messages", name, c.Count(app.EventMessage))
		}
	}
	var msg app.ChatMessage
	b.Last(app.EventMessage, &msg)
	if msg.From.Name != "Alice" || string(msg.Message) != `"hi"` {
		t.Errorf("message = %+v", msg)
	}
	if err := h.o.SendMessage("c", "lobby", json.RawMessage(`"x"`)); !errors.Is(err, core.ErrNotMember) {
		t.Errorf("non-member err = %v", err)
	}
}

func TestStatusAndSpeaking(t *testing.T) {
	h := newHarness(t, orch.Options{})
	a := h.connect("a", "A")
	b := h.connect("b", "B")
	h.o.JoinRoom("a", "lobby", nil)
	h.o.JoinRoom("b", "lobby", nil)
	b.Reset()

	h.o.UpdateStatus("a", "lobby", map[string]any{"muted": true})
	h.o.UpdateStatus("a", "lobby", map[string]any{"hand": true})
	h.o.Speaking("a", "lobby", true)
	h.o.Speaking("x", "lobby", true)

	st, _ := h.o.RoomDetails("lobby")
	for _, m := range st.Members {
		if m.ID == "a" && (m.Status["muted"] != true || m.Status["hand"] != true) {
			t.Errorf("merged status = %v", m.Status)
		}
	}
	if b.Count(app.EventStatusChange) != 2 || b.Count(app.EventSpeaking) != 1 {
		t.Errorf("peer events = %v", b.Types())
	}
	if a.Count(app.EventSpeaking) != 1 {
		t.Errorf("speaker events = %v", a.Types())
	}
}
