package authcore

import (
	"context"
	"errors"
	"testing"
)

func newTestFlow(t *testing.T, f *Facade, prompt CredentialPrompt) *LoginFlow {
	t.Helper()

	flow, err := f.NewLoginFlow(prompt)
	if err != nil {
		t.Fatalf("NewLoginFlow failed: %v", err)
	}
	return flow
}

func TestFlowSucceedsFirstAttempt(t *testing.T) {
	facade, _ := newTestFacade(t, testConfig())
	mustCreateAccount(t, facade, "alice", "pw", RoleBasic)

	prompt := &scriptedPrompt{answers: []*Credentials{creds("alice", "pw")}}
	flow := newTestFlow(t, facade, prompt)

	session, err := flow.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if session.Username != "alice" {
		t.Fatalf("username = %q, want alice", session.Username)
	}
	if len(prompt.calls) != 1 {
		t.Fatalf("prompt calls = %d, want 1", len(prompt.calls))
	}
	if prompt.calls[0].Reason != nil {
		t.Fatal("first prompt must carry no reason")
	}
}

func TestFlowRetriesWithTypedReason(t *testing.T) {
	facade, _ := newTestFacade(t, testConfig())
	mustCreateAccount(t, facade, "alice", "pw", RoleBasic)

	prompt := &scriptedPrompt{answers: []*Credentials{
		creds("alice", "wrong"),
		creds("ghost", "pw"),
		creds("alice", "pw"),
	}}
	flow := newTestFlow(t, facade, prompt)

	session, err := flow.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if session.Username != "alice" {
		t.Fatalf("username = %q, want alice", session.Username)
	}

	if len(prompt.calls) != 3 {
		t.Fatalf("prompt calls = %d, want 3", len(prompt.calls))
	}
	// Both the wrong password and the unknown username retry as plain
	// credential failures.
	for _, pc := range prompt.calls[1:] {
		if !errors.Is(pc.Reason, ErrIncorrectCredentials) {
			t.Errorf("reason = %v, want ErrIncorrectCredentials", pc.Reason)
		}
	}
}

func TestFlowFeedsPolicyErrorsBack(t *testing.T) {
	facade, _ := newTestFacade(t, testConfig())
	ctx := context.Background()
	dir, _ := facade.Directory()
	mustCreateAccount(t, facade, "alice", "pw", RoleBasic)
	mustCreateAccount(t, facade, "bob", "pw", RoleBasic)
	dir.SetLockStatus(ctx, "alice", true)

	prompt := &scriptedPrompt{answers: []*Credentials{
		creds("alice", "pw"),
		creds("bob", "pw"),
	}}
	flow := newTestFlow(t, facade, prompt)

	session, err := flow.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if session.Username != "bob" {
		t.Fatalf("username = %q, want bob", session.Username)
	}
	if !errors.Is(prompt.calls[1].Reason, ErrAccountLocked) {
		t.Fatalf("reason = %v, want ErrAccountLocked", prompt.calls[1].Reason)
	}
}

func TestFlowAttemptCap(t *testing.T) {
	cfg := testConfig()
	cfg.LoginFlow.MaxAttempts = 2
	facade, _ := newTestFacade(t, cfg)
	mustCreateAccount(t, facade, "alice", "pw", RoleBasic)

	prompt := &scriptedPrompt{answers: []*Credentials{
		creds("alice", "wrong"),
		creds("alice", "also-wrong"),
		creds("alice", "pw"),
	}}
	flow := newTestFlow(t, facade, prompt)

	_, err := flow.Run(context.Background())
	if !errors.Is(err, ErrExcessiveAttempts) {
		t.Fatalf("got %v, want ErrExcessiveAttempts", err)
	}
	if len(prompt.calls) != 2 {
		t.Fatalf("prompt calls = %d, want the cap 2", len(prompt.calls))
	}
}

func TestFlowCancellation(t *testing.T) {
	facade, _ := newTestFacade(t, testConfig())
	prompt := &scriptedPrompt{errs: []error{ErrPromptCancelled}}
	flow := newTestFlow(t, facade, prompt)

	if _, err := flow.Run(context.Background()); !errors.Is(err, ErrPromptCancelled) {
		t.Fatalf("got %v, want ErrPromptCancelled", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := flow.Run(cancelled); !errors.Is(err, ErrPromptCancelled) {
		t.Fatalf("got %v, want ErrPromptCancelled", err)
	}
}

func TestFlowPredicateRejectsAndClosesSession(t *testing.T) {
	facade, _ := newTestFacade(t, testConfig())
	registry, _ := facade.Sessions()
	mustCreateAccount(t, facade, "alice", "pw", RoleBasic)
	mustCreateAccount(t, facade, "root", "pw", RoleAdmin)

	prompt := &scriptedPrompt{answers: []*Credentials{
		creds("alice", "pw"),
		creds("root", "pw"),
	}}
	flow := newTestFlow(t, facade, prompt)

	session, err := flow.Run(context.Background(),
		WithPredicate(func(s *Session) bool { return s.Role.Name == RoleAdmin }),
	)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if session.Username != "root" {
		t.Fatalf("username = %q, want root", session.Username)
	}

	if registry.IsLoggedIn("alice", false) {
		t.Fatal("rejected session must have been closed")
	}
	if !errors.Is(prompt.calls[1].Reason, ErrUnauthenticated) {
		t.Fatalf("reason = %v, want ErrUnauthenticated", prompt.calls[1].Reason)
	}
}

func TestFlowWipesCredentials(t *testing.T) {
	facade, _ := newTestFacade(t, testConfig())
	mustCreateAccount(t, facade, "alice", "pw", RoleBasic)

	good := creds("alice", "pw")
	bad := creds("alice", "wrong")
	prompt := &scriptedPrompt{answers: []*Credentials{bad, good}}
	flow := newTestFlow(t, facade, prompt)

	if _, err := flow.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, c := range []*Credentials{bad, good} {
		for _, b := range c.Password {
			if b != 0 {
				t.Fatal("password bytes must be zeroed after the attempt")
			}
		}
	}
}

func TestRequireAdminNoOpWhenAdmin(t *testing.T) {
	facade, _ := newTestFacade(t, testConfig())
	registry, _ := facade.Sessions()
	ctx := context.Background()
	mustCreateAccount(t, facade, "root", "pw", RoleAdmin)
	registry.Login(ctx, "root", false)

	prompt := &scriptedPrompt{}
	flow := newTestFlow(t, facade, prompt)

	session, err := registry.RequireAdmin(ctx, flow)
	if err != nil {
		t.Fatalf("RequireAdmin failed: %v", err)
	}
	if session.Username != "root" {
		t.Fatalf("username = %q, want root", session.Username)
	}
	if len(prompt.calls) != 0 {
		t.Fatal("an admin holder must not be prompted")
	}
}

func TestRequireAdminDrivesFlow(t *testing.T) {
	facade, _ := newTestFacade(t, testConfig())
	registry, _ := facade.Sessions()
	ctx := context.Background()
	mustCreateAccount(t, facade, "alice", "pw", RoleBasic)
	mustCreateAccount(t, facade, "root", "pw", RoleAdmin)
	registry.Login(ctx, "alice", false)

	prompt := &scriptedPrompt{answers: []*Credentials{creds("root", "pw")}}
	flow := newTestFlow(t, facade, prompt)

	session, err := registry.RequireAdmin(ctx, flow)
	if err != nil {
		t.Fatalf("RequireAdmin failed: %v", err)
	}
	if session.Role.Name != RoleAdmin {
		t.Fatalf("role = %q, want ADMIN", session.Role.Name)
	}
	current, _ := registry.CurrentSession()
	if current.Username != "root" {
		t.Fatalf("current = %q, want root", current.Username)
	}
}

func TestRequireAndVerifyAdminForcesReauth(t *testing.T) {
	facade, _ := newTestFacade(t, testConfig())
	registry, _ := facade.Sessions()
	ctx := context.Background()
	mustCreateAccount(t, facade, "root", "pw", RoleAdmin)
	registry.Login(ctx, "root", false)
	before, _ := registry.CurrentSession()

	prompt := &scriptedPrompt{answers: []*Credentials{creds("root", "pw")}}
	flow := newTestFlow(t, facade, prompt)

	session, err := registry.RequireAndVerifyAdmin(ctx, flow)
	if err != nil {
		t.Fatalf("RequireAndVerifyAdmin failed: %v", err)
	}
	if session.Username != "root" {
		t.Fatalf("username = %q, want root", session.Username)
	}
	if session.ID == before.ID {
		t.Fatal("verification must open a fresh session")
	}
	if len(prompt.calls) != 1 {
		t.Fatalf("prompt calls = %d, want 1", len(prompt.calls))
	}
	if !prompt.calls[0].UsernameLocked || prompt.calls[0].Username != "root" {
		t.Fatalf("prompt must be pinned to root, got %+v", prompt.calls[0])
	}
}

func TestRequireAndVerifyAdminFallsBackWhenNotAdmin(t *testing.T) {
	facade, _ := newTestFacade(t, testConfig())
	registry, _ := facade.Sessions()
	ctx := context.Background()
	mustCreateAccount(t, facade, "root", "pw", RoleAdmin)

	prompt := &scriptedPrompt{answers: []*Credentials{creds("root", "pw")}}
	flow := newTestFlow(t, facade, prompt)

	session, err := registry.RequireAndVerifyAdmin(ctx, flow)
	if err != nil {
		t.Fatalf("RequireAndVerifyAdmin failed: %v", err)
	}
	if session.Username != "root" {
		t.Fatalf("username = %q, want root", session.Username)
	}
}
