package authcore

import (
	"context"
	"testing"
)

func collectEvents(t *testing.T, sink *ChannelSink, f *Facade) []Event {
	t.Helper()

	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var events []Event
	for {
		select {
		case e := <-sink.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func newAuditedFacade(t *testing.T) (*Facade, *ChannelSink) {
	t.Helper()

	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64

	sink := NewChannelSink(256)
	store := newMemStore()
	facade, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithHasher(&fakeHasher{}).
		WithAuthorities(testAuthorities()).
		WithEventSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return facade, sink
}

func eventsOfType(events []Event, eventType string) []Event {
	var out []Event
	for _, e := range events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestSessionLifecycleEvents(t *testing.T) {
	facade, sink := newAuditedFacade(t)
	ctx := context.Background()
	mustCreateAccount(t, facade, "alice", "pw", RoleBasic)
	mustCreateAccount(t, facade, "bob", "pw", RoleBasic)

	facade.Login(ctx, "alice", false)
	facade.Login(ctx, "bob", true)
	facade.Logout(ctx, "alice", false)
	facade.Logout(ctx, "bob", true)

	events := collectEvents(t, sink, facade)

	singleOpened := eventsOfType(events, "session_opened_single")
	if len(singleOpened) != 1 {
		t.Fatalf("session_opened_single = %d, want 1", len(singleOpened))
	}
	if singleOpened[0].Username != "alice" || singleOpened[0].SessionContext != "single" {
		t.Fatalf("unexpected single open event: %+v", singleOpened[0])
	}
	if singleOpened[0].SessionID == "" {
		t.Fatal("open event must carry the session ID")
	}
	if singleOpened[0].Metadata["role"] != RoleBasic {
		t.Fatalf("metadata role = %q, want %s", singleOpened[0].Metadata["role"], RoleBasic)
	}

	if n := len(eventsOfType(events, "session_opened_multi")); n != 1 {
		t.Fatalf("session_opened_multi = %d, want 1", n)
	}
	if n := len(eventsOfType(events, "session_closed_single")); n != 1 {
		t.Fatalf("session_closed_single = %d, want 1", n)
	}
	if n := len(eventsOfType(events, "session_closed_multi")); n != 1 {
		t.Fatalf("session_closed_multi = %d, want 1", n)
	}
	if n := len(eventsOfType(events, "account_created")); n != 2 {
		t.Fatalf("account_created = %d, want 2", n)
	}
}

func TestLoginFailureEventCarriesErrorCode(t *testing.T) {
	facade, sink := newAuditedFacade(t)
	ctx := context.Background()
	dir, _ := facade.Directory()
	mustCreateAccount(t, facade, "alice", "pw", RoleBasic)
	dir.SetLockStatus(ctx, "alice", true)

	facade.Login(ctx, "alice", false)

	events := collectEvents(t, sink, facade)
	failures := eventsOfType(events, "login_failure")
	if len(failures) != 1 {
		t.Fatalf("login_failure = %d, want 1", len(failures))
	}
	if failures[0].Success {
		t.Fatal("failure event must not be marked successful")
	}
	if failures[0].Error != "account_locked" {
		t.Fatalf("error code = %q, want account_locked", failures[0].Error)
	}
}

func TestEventErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want EventErrorCode
	}{
		{nil, ""},
		{ErrUnknownAccount, eventErrUnknownAccount},
		{ErrAccountLocked, eventErrAccountLocked},
		{ErrCredentialsExpired, eventErrCredentialsExpired},
		{ErrRoleDisabled, eventErrRoleDisabled},
		{ErrStoreTableMissing, eventErrStoreUnavailable},
		{context.Canceled, eventErrInternal},
	}
	for _, tc := range cases {
		if got := eventErrorCode(tc.err); got != tc.want {
			t.Errorf("eventErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
