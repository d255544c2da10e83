package authcore

import (
	"context"
	"errors"
	"fmt"
)

// PromptContext is handed to a [CredentialPrompt] on every request. Reason
// carries the typed failure of the previous attempt so the presentation
// layer can explain why the retry is happening; it is nil on the first
// attempt.
type PromptContext struct {
	Attempt        int
	MaxAttempts    int
	Username       string
	UsernameLocked bool
	Reason         error
}

// CredentialPrompt is the presentation boundary. Request returns collected
// credentials or an error; [ErrPromptCancelled] (or any error) aborts the
// flow. The flow owns the returned credentials and wipes them after use.
type CredentialPrompt interface {
	Request(ctx context.Context, pc PromptContext) (*Credentials, error)
}

// FlowPredicate accepts or rejects a freshly opened session. A rejected
// session is closed again and the flow retries.
type FlowPredicate func(*Session) bool

type flowOptions struct {
	multi     bool
	username  string
	predicate FlowPredicate
}

// FlowOption configures a single [LoginFlow.Run] invocation.
type FlowOption func(*flowOptions)

// WithPredicate restricts the flow to sessions the predicate accepts.
func WithPredicate(p FlowPredicate) FlowOption {
	return func(o *flowOptions) { o.predicate = p }
}

// WithUsername pins the flow to one username. The prompt is shown the name
// and may not substitute another.
func WithUsername(username string) FlowOption {
	return func(o *flowOptions) { o.username = normalizeUsername(username) }
}

// WithMultiContext targets the multi-session context instead of the single
// slot.
func WithMultiContext() FlowOption {
	return func(o *flowOptions) { o.multi = true }
}

// LoginFlow drives a [CredentialPrompt] through repeated authentication
// attempts: collect credentials, verify the password, admit a session, and
// check the optional predicate. Each failed attempt feeds its typed reason
// back into the next prompt. The flow gives up with [ErrExcessiveAttempts]
// when the attempt cap is reached and with [ErrPromptCancelled] when the
// prompt or the context cancels.
type LoginFlow struct {
	prompt    CredentialPrompt
	directory *AccountDirectory
	registry  *SessionRegistry
	metrics   *Metrics
	cfg       LoginFlowConfig
}

func newLoginFlow(
	prompt CredentialPrompt,
	directory *AccountDirectory,
	registry *SessionRegistry,
	metrics *Metrics,
	cfg LoginFlowConfig,
) *LoginFlow {
	return &LoginFlow{
		prompt:    prompt,
		directory: directory,
		registry:  registry,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Run executes the flow and returns the opened session. Credential password
// bytes are wiped after every attempt, success or failure.
func (f *LoginFlow) Run(ctx context.Context, opts ...FlowOption) (*Session, error) {
	var o flowOptions
	for _, opt := range opts {
		opt(&o)
	}

	f.metrics.Inc(MetricFlowStarted)

	var reason error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			f.metrics.Inc(MetricFlowCancelled)
			return nil, fmt.Errorf("%w: %v", ErrPromptCancelled, err)
		}

		session, retry, err := f.attempt(ctx, o, PromptContext{
			Attempt:        attempt,
			MaxAttempts:    f.cfg.MaxAttempts,
			Username:       o.username,
			UsernameLocked: o.username != "",
			Reason:         reason,
		})
		if err != nil {
			if errors.Is(err, ErrPromptCancelled) {
				f.metrics.Inc(MetricFlowCancelled)
			}
			return nil, err
		}
		if session != nil {
			return session, nil
		}
		reason = retry
	}

	f.metrics.Inc(MetricFlowAttemptsExceeded)
	return nil, ErrExcessiveAttempts
}

// attempt runs one prompt round. It returns the opened session on success, a
// retry reason when the attempt failed recoverably, or a terminal error.
func (f *LoginFlow) attempt(ctx context.Context, o flowOptions, pc PromptContext) (session *Session, retry, err error) {
	creds, err := f.prompt.Request(ctx, pc)
	if err != nil {
		if errors.Is(err, ErrPromptCancelled) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrPromptCancelled, err)
	}
	if creds == nil {
		return nil, nil, ErrPromptCancelled
	}
	defer creds.Wipe()

	username := normalizeUsername(creds.Username)
	if o.username != "" {
		username = o.username
	}
	if username == "" {
		return nil, ErrIncorrectCredentials, nil
	}

	match, err := f.directory.CheckPassword(ctx, username, creds.Password)
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			// Unknown usernames retry as plain credential failures so the
			// prompt cannot be used to enumerate accounts.
			return nil, ErrIncorrectCredentials, nil
		}
		return nil, nil, err
	}
	if !match {
		return nil, ErrIncorrectCredentials, nil
	}

	admitted, err := f.registry.Login(ctx, username, o.multi)
	if err != nil {
		if IsStoreError(err) {
			return nil, nil, err
		}
		return nil, err, nil
	}
	if !admitted {
		return nil, ErrConcurrentAccess, nil
	}

	session, ok := f.registry.Session(username, o.multi)
	if !ok {
		// Raced away between admit and lookup. Retry.
		return nil, ErrConcurrentAccess, nil
	}

	if o.predicate != nil && !o.predicate(session) {
		f.registry.Logout(ctx, username, o.multi)
		return nil, ErrUnauthenticated, nil
	}

	return session, nil, nil
}
