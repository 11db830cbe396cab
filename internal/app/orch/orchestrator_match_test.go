package orch_test

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/app/orch"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/core/mock"
	"github.com/dkeye/Pairup/internal/domain"
	"go.uber.org/mock/gomock"
)

func TestFindPartnerQueuesFirst(t *testing.T) {
	h := newHarness(t, orch.Options{})
	a := h.connect("a", "A")
	a.Reset()

	if err := h.o.FindPartner("a", domain.CategoryChat, nil); err != nil {
		t.Fatal(err)
	}
	var s app.Searching
	if !a.Last(app.EventSearching, &s) || s.Category != domain.CategoryChat {
		t.Errorf("searching = %+v, events %v", s, a.Types())
	}
}

// TestFindPartnerIsFirstFit queues A then B; C must pair with A and leave B
// waiting.
func TestFindPartnerIsFirstFit(t *testing.T) {
	h := newHarness(t, orch.Options{})
	a := h.connect("a", "Alice")
	h.connect("b", "Bob")
	c := h.connect("c", "Carol")
	h.o.FindPartner("a", domain.CategoryVideo, nil)
	h.o.FindPartner("b", domain.CategoryVideo, nil)

	if err := h.o.FindPartner("c", domain.CategoryVideo, nil); err != nil {
		t.Fatal(err)
	}
	var pa, pc app.PartnerFound
	if !a.Last(app.EventPartnerFound, &pa) || !c.Last(app.EventPartnerFound, &pc) {
		t.Fatalf("partner_found missing: a=%v c=%v", a.Types(), c.Types())
	}
	if pa.RoomID != pc.RoomID || pa.PartnerID != "c" || pc.PartnerID != "a" {
		t.Errorf("a got %+v, c got %+v", pa, pc)
	}
	if pa.Partner.Name != "Carol" || pc.Partner.Name != "Alice" {
		t.Errorf("display exchange wrong: %+v / %+v", pa.Partner, pc.Partner)
	}
	if got := h.o.Queues.Queued(domain.CategoryVideo); !slices.Equal(got, []core.SessionID{"b"}) {
		t.Errorf("queue = %v, want [b]", got)
	}
}

// TestFindPartnerSkipsIncompatible queues B (male, wants male) and C
// (female). A wants a female partner and must skip B.
func TestFindPartnerSkipsIncompatible(t *testing.T) {
	h := newHarness(t, orch.Options{})
	h.connect("a", "A")
	b := h.connect("b", "B")
	c := h.connect("c", "C")
	h.o.FindPartner("b", domain.CategoryChat, &domain.Attributes{Gender: "M", PreferredGender: "M"})
	h.o.FindPartner("c", domain.CategoryChat, &domain.Attributes{Gender: "F"})
	if b.Count(app.EventPartnerFound) != 0 {
		t.Fatal("b and c should not be compatible")
	}

	h.o.FindPartner("a", domain.CategoryChat, &domain.Attributes{Gender: "M", PreferredGender: "F"})
	if c.Count(app.EventPartnerFound) != 1 || b.Count(app.EventPartnerFound) != 0 {
		t.Errorf("b=%v c=%v", b.Types(), c.Types())
	}
	if _, waiting := h.o.Queues.Waiting("b"); !waiting {
		t.Error("b should still be waiting")
	}
}

// TestFirstFitRunsOnArrival queues B (male, no preference). C (female)
// pairs with B the moment she arrives, so A (wants female) finds nobody and
// waits. Matching only ever runs for the arriving request.
func TestFirstFitRunsOnArrival(t *testing.T) {
	h := newHarness(t, orch.Options{})
	a := h.connect("a", "A")
	b := h.connect("b", "B")
	c := h.connect("c", "C")
	h.o.FindPartner("b", domain.CategoryChat, &domain.Attributes{Gender: "M"})
	h.o.FindPartner("c", domain.CategoryChat, &domain.Attributes{Gender: "F"})

	var pb app.PartnerFound
	if !b.Last(app.EventPartnerFound, &pb) || pb.PartnerID != "c" || c.Count(app.EventPartnerFound) != 1 {
		t.Fatalf("b=%v c=%v", b.Types(), c.Types())
	}

	h.o.FindPartner("a", domain.CategoryChat, &domain.Attributes{Gender: "M", PreferredGender: "F"})
	if a.Count(app.EventPartnerFound) != 0 || a.Count(app.EventSearching) != 1 {
		t.Errorf("a events = %v", a.Types())
	}
	if got := h.o.Queues.Queued(domain.CategoryChat); !slices.Equal(got, []core.SessionID{"a"}) {
		t.Errorf("queue = %v, want [a]", got)
	}
}

func TestFIFOPolicyIgnoresPreferences(t *testing.T) {
	h := newHarness(t, orch.Options{Policy: app.AnyPolicy{}})
	h.connect("a", "A")
	b := h.connect("b", "B")
	h.o.FindPartner("a", domain.CategoryChat, &domain.Attributes{Gender: "M", PreferredGender: "M"})
	h.o.FindPartner("b", domain.CategoryChat, &domain.Attributes{Gender: "F", PreferredGender: "F"})
	if b.Count(app.EventPartnerFound) != 1 {
		t.Errorf("b events = %v", b.Types())
	}
}

// TestQueueMembershipIsExclusive checks a session sits in at most one queue
// and never in a queue while paired.
func TestQueueMembershipIsExclusive(t *testing.T) {
	h := newHarness(t, orch.Options{})
	h.connect("a", "A")
	h.connect("b", "B")

	h.o.FindPartner("a", domain.CategoryChat, nil)
	h.o.FindPartner("a", domain.CategoryAudio, nil)
	total := 0
	for _, cat := range domain.Categories {
		total += h.o.Queues.Depth(cat)
	}
	if total != 1 {
		t.Fatalf("a queued %d times", total)
	}
	if cat, _ := h.o.Queues.Waiting("a"); cat != domain.CategoryAudio {
		t.Errorf("a waiting in %q, want audio", cat)
	}

	h.o.FindPartner("b", domain.CategoryAudio, nil)
	for _, sid := range []core.SessionID{"a", "b"} {
		if _, waiting := h.o.Queues.Waiting(sid); waiting {
			t.Errorf("%s is paired and still queued", sid)
		}
		if _, paired := h.o.Registry.PairingOf(sid); !paired {
			t.Errorf("%s has no pairing", sid)
		}
	}
}

func TestFindPartnerWhilePairedEndsPreviousCall(t *testing.T) {
	h := newHarness(t, orch.Options{})
	h.connect("a", "A")
	b := h.connect("b", "B")
	h.o.FindPartner("a", domain.CategoryChat, nil)
	h.o.FindPartner("b", domain.CategoryChat, nil)
	old, _ := h.o.Registry.PairingOf("a")
	b.Reset()

	h.o.FindPartner("a", domain.CategoryChat, nil)
	var ref app.RoomRef
	if !b.Last(app.EventCallEnded, &ref) || ref.RoomID != old {
		t.Errorf("b events = %v", b.Types())
	}
	if _, ok := h.o.Pairings.Get(old); ok {
		t.Error("old pairing survived")
	}
	if _, waiting := h.o.Queues.Waiting("a"); !waiting {
		t.Error("a should be searching again")
	}
}

func TestCancelSearchIsIdempotent(t *testing.T) {
	h := newHarness(t, orch.Options{})
	a := h.connect("a", "A")
	h.o.FindPartner("a", domain.CategoryChat, nil)
	a.Reset()

	h.o.CancelSearch("a")
	h.o.CancelSearch("a")
	if len(a.Types()) != 0 {
		t.Errorf("cancel produced events %v", a.Types())
	}
	if h.o.Queues.Depth(domain.CategoryChat) != 0 {
		t.Error("a still queued")
	}
}

func TestPairingIDCollisionRetries(t *testing.T) {
	h := newHarness(t, orch.Options{})
	ids := []string{"taken", "taken", "fresh"}
	h.o.NewID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	if _, err := h.o.CreateRoom("taken", domain.RoomMeta{}); err != nil {
		t.Fatal(err)
	}
	h.connect("a", "A")
	h.connect("b", "B")
	h.o.FindPartner("a", domain.CategoryChat, nil)
	h.o.FindPartner("b", domain.CategoryChat, nil)

	if id, _ := h.o.Registry.PairingOf("a"); id != "fresh" {
		t.Errorf("pairing id = %q, want fresh", id)
	}
}

func TestPairingIDExhaustionRequeuesBoth(t *testing.T) {
	h := newHarness(t, orch.Options{})
	h.o.NewID = func() string { return "" }
	h.connect("a", "A")
	h.connect("b", "B")
	h.o.FindPartner("a", domain.CategoryChat, nil)

	if err := h.o.FindPartner("b", domain.CategoryChat, nil); err == nil {
		t.Fatal("expected an error when no id can be allocated")
	}
	if got := h.o.Queues.Queued(domain.CategoryChat); !slices.Equal(got, []core.SessionID{"a", "b"}) {
		t.Errorf("queue = %v, want [a b]", got)
	}
	if h.o.Pairings.Len() != 0 {
		t.Errorf("pairings = %d", h.o.Pairings.Len())
	}
}

func TestRecordMatchFailureKeepsPairing(t *testing.T) {
	ctrl := gomock.NewController(t)
	rec := mock.NewMockMatchRecorder(ctrl)
	h := newHarness(t, orch.Options{Recorder: rec, RecordTimeout: time.Second})

	alice := domain.Authenticated(domain.Principal{ID: "u-1"})
	rec.EXPECT().
		RecordMatch(gomock.Any(), alice, domain.Anonymous(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _ domain.Identity, _ time.Time) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("record context has no deadline")
			}
			return errors.New("db down")
		})

	a := h.connectAs("a", "Alice", alice)
	b := h.connect("b", "Bob")
	h.o.FindPartner("a", domain.CategoryChat, nil)
	h.o.FindPartner("b", domain.CategoryChat, nil)
	h.o.Wait()

	if a.Count(app.EventPartnerFound) != 1 || b.Count(app.EventPartnerFound) != 1 {
		t.Fatalf("a=%v b=%v", a.Types(), b.Types())
	}
	if h.o.Pairings.Len() != 1 {
		t.Error("pairing dropped after record failure")
	}
}

// TestDisconnectDuringCall checks the peer hears about it exactly once and
// a late end_call is harmless.
func TestDisconnectDuringCall(t *testing.T) {
	h := newHarness(t, orch.Options{})
	h.connect("a", "A")
	b := h.connect("b", "B")
	h.o.FindPartner("a", domain.CategoryVideo, nil)
	h.o.FindPartner("b", domain.CategoryVideo, nil)
	id, _ := h.o.Registry.PairingOf("b")
	b.Reset()

	h.o.Disconnect("a")
	h.o.Disconnect("a")
	if n := b.Count(app.EventCallEndedByDisconnect); n != 1 {
		t.Fatalf("call_ended_by_disconnect count = %d, want 1", n)
	}
	if err := h.o.EndCall("b", id); err != nil {
		t.Errorf("late end_call err = %v", err)
	}
	if b.Count(app.EventCallEnded) != 0 {
		t.Error("late end_call produced call_ended")
	}
	if _, paired := h.o.Registry.PairingOf("b"); paired {
		t.Error("b still paired")
	}
}

func TestSignalingGoesToPeerOnly(t *testing.T) {
	h := newHarness(t, orch.Options{})
	a := h.connect("a", "A")
	b := h.connect("b", "B")
	c := h.connect("c", "C")
	h.o.FindPartner("a", domain.CategoryVideo, nil)
	h.o.FindPartner("b", domain.CategoryVideo, nil)
	id, _ := h.o.Registry.PairingOf("a")
	a.Reset()
	b.Reset()
	c.Reset()

	if err := h.o.JoinCall("b", id); err != nil {
		t.Fatal(err)
	}
	offer := json.RawMessage(`{"room_id":"` + string(id) + `","sdp":{"type":"offer","sdp":"v=0"}}`)
	if err := h.o.Forward("a", id, "offer", offer); err != nil {
		t.Fatal(err)
	}
	var joined app.PeerJoinedCall
	if !a.Last(app.EventPeerJoinedCall, &joined) || joined.PeerID != "b" {
		t.Errorf("a events = %v", a.Types())
	}
	if b.Count("offer") != 1 || a.Count("offer") != 0 {
		t.Errorf("offer delivery a=%v b=%v", a.Types(), b.Types())
	}
	if err := h.o.Forward("c", id, "offer", offer); !errors.Is(err, core.ErrNotMember) {
		t.Errorf("outsider err = %v", err)
	}
	if err := h.o.Forward("a", "nope", "offer", offer); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown pairing err = %v", err)
	}
	if len(c.Types()) != 0 {
		t.Errorf("outsider received %v", c.Types())
	}
}

func TestEndCall(t *testing.T) {
	h := newHarness(t, orch.Options{})
	a := h.connect("a", "A")
	b := h.connect("b", "B")
	h.connect("c", "C")
	h.o.FindPartner("a", domain.CategoryAudio, nil)
	h.o.FindPartner("b", domain.CategoryAudio, nil)
	id, _ := h.o.Registry.PairingOf("a")
	a.Reset()

	if err := h.o.EndCall("c", id); !errors.Is(err, core.ErrNotMember) {
		t.Errorf("outsider end err = %v", err)
	}
	if err := h.o.EndCall("b", id); err != nil {
		t.Fatal(err)
	}
	if err := h.o.EndCall("a", id); err != nil {
		t.Errorf("second end err = %v", err)
	}
	if a.Count(app.EventCallEnded) != 1 || b.Count(app.EventCallEnded) != 0 {
		t.Errorf("a=%v b=%v", a.Types(), b.Types())
	}
}

func TestChatInsidePairing(t *testing.T) {
	h := newHarness(t, orch.Options{})
	a := h.connect("a", "A")
	b := h.connect("b", "B")
	h.o.FindPartner("a", domain.CategoryChat, nil)
	h.o.FindPartner("b", domain.CategoryChat, nil)
	id, _ := h.o.Registry.PairingOf("a")

	if err := h.o.SendMessage("b", id, json.RawMessage(`"yo"`)); err != nil {
		t.Fatal(err)
	}
	if a.Count(app.EventMessage) != 1 || b.Count(app.EventMessage) != 1 {
		t.Errorf("a=%v b=%v", a.Types(), b.Types())
	}
}
