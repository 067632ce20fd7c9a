// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package console_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vrcswitch/avatar-switch/internal/auth"
	"github.com/vrcswitch/avatar-switch/internal/avatar"
	"github.com/vrcswitch/avatar-switch/internal/console"
	"github.com/vrcswitch/avatar-switch/internal/vrchat"
	"github.com/vrcswitch/avatar-switch/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedPrompter answers prompts from a script and records output.
type scriptedPrompter struct {
	answers []string
	labels  []string
	out     strings.Builder
}

func (p *scriptedPrompter) Prompt(label string) (string, error) {
	p.labels = append(p.labels, label)
	if len(p.answers) == 0 {
		return "", io.EOF
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

func (p *scriptedPrompter) PromptSecret(label string) (string, error) {
	return p.Prompt(label)
}

func (p *scriptedPrompter) Printf(format string, args ...any) {
	fmt.Fprintf(&p.out, format, args...)
}

type fakeAuthenticator struct {
	authenticateCalls int
	invalidateCalls   int
	failOnCall        int
	err               error
	creds             []auth.Credentials
	session           *auth.Session
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, creds auth.Credentials) (*auth.Session, error) {
	f.authenticateCalls++
	f.creds = append(f.creds, creds)
	if f.err != nil && (f.failOnCall == 0 || f.failOnCall == f.authenticateCalls) {
		return nil, f.err
	}
	if f.session != nil && f.invalidateCalls == 0 {
		return f.session, nil
	}
	return &auth.Session{UserID: "usr_1", DisplayName: "alice"}, nil
}

func (f *fakeAuthenticator) Invalidate(_ context.Context) error {
	f.invalidateCalls++
	return nil
}

type fakeSelector struct {
	selected []string
	errs     []error
}

func (f *fakeSelector) SelectAvatar(_ context.Context, id string) (*vrchat.User, error) {
	f.selected = append(f.selected, id)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &vrchat.User{ID: "usr_1", CurrentAvatar: id}, nil
}

func unauthorized() error {
	return oops.Code(vrchat.CodeAuthRequired).Wrapf(vrchat.ErrUnauthorized, "select avatar")
}

func staticResolver(t *testing.T, avatars ...avatar.Avatar) *avatar.Resolver {
	t.Helper()
	r, err := avatar.NewResolver(avatars, nil)
	require.NoError(t, err)
	return r
}

var robots = []avatar.Avatar{
	{Name: "Robot", ID: "avtr_1"},
	{Name: "Robot2", ID: "avtr_2"},
	{Name: "Fox", ID: "avtr_9"},
}

func newDriver(t *testing.T, a console.Authenticator, r console.Resolver, s console.Selector, p console.Prompter) *console.Driver {
	t.Helper()
	d, err := console.NewDriver(a, r, s, p)
	require.NoError(t, err)
	return d
}

func TestNewDriver_Validation(t *testing.T) {
	a := &fakeAuthenticator{}
	r := staticResolver(t, robots...)
	s := &fakeSelector{}
	p := &scriptedPrompter{}

	_, err := console.NewDriver(nil, r, s, p)
	errutil.AssertErrorCode(t, err, "CONSOLE_INVALID_ARGUMENT")
	_, err = console.NewDriver(a, nil, s, p)
	errutil.AssertErrorCode(t, err, "CONSOLE_INVALID_ARGUMENT")
	_, err = console.NewDriver(a, r, nil, p)
	errutil.AssertErrorCode(t, err, "CONSOLE_INVALID_ARGUMENT")
	_, err = console.NewDriver(a, r, s, nil)
	errutil.AssertErrorCode(t, err, "CONSOLE_INVALID_ARGUMENT")
	_, err = console.NewDriverWithLogger(a, r, s, p, nil)
	errutil.AssertErrorCode(t, err, "CONSOLE_INVALID_ARGUMENT")
}

func TestRun_PromptsAndSwitches(t *testing.T) {
	a := &fakeAuthenticator{}
	s := &fakeSelector{}
	p := &scriptedPrompter{answers: []string{"fox"}}
	d := newDriver(t, a, staticResolver(t, robots...), s, p)

	creds := auth.Credentials{Username: "alice"}
	require.NoError(t, d.Run(context.Background(), console.RunOptions{Credentials: creds}))

	assert.Equal(t, []string{"avtr_9"}, s.selected)
	assert.Equal(t, []string{"Avatar name"}, p.labels)
	assert.Equal(t, []auth.Credentials{creds}, a.creds)
	assert.Contains(t, p.out.String(), "Logged in as alice.")
	assert.Contains(t, p.out.String(), "Switched to Fox (avtr_9).")
}

func TestRun_QueryArgumentSkipsPrompt(t *testing.T) {
	s := &fakeSelector{}
	p := &scriptedPrompter{}
	d := newDriver(t, &fakeAuthenticator{}, staticResolver(t, robots...), s, p)

	require.NoError(t, d.Run(context.Background(), console.RunOptions{Query: "bot2"}))
	assert.Equal(t, []string{"avtr_2"}, s.selected)
	assert.Empty(t, p.labels)
}

func TestRun_ReusedSessionMessage(t *testing.T) {
	a := &fakeAuthenticator{session: &auth.Session{UserID: "usr_1", DisplayName: "alice", Reused: true}}
	p := &scriptedPrompter{}
	d := newDriver(t, a, staticResolver(t, robots...), &fakeSelector{}, p)

	require.NoError(t, d.Run(context.Background(), console.RunOptions{Query: "fox"}))
	assert.Contains(t, p.out.String(), "Logged in as alice (saved session).")
}

func TestRun_AuthenticationFailureStopsBeforeResolve(t *testing.T) {
	authErr := oops.Code(auth.CodeInvalidCredentials).Wrapf(auth.ErrAuthentication, "rejected")
	a := &fakeAuthenticator{err: authErr}
	s := &fakeSelector{}
	p := &scriptedPrompter{answers: []string{"fox"}}
	d := newDriver(t, a, staticResolver(t, robots...), s, p)

	err := d.Run(context.Background(), console.RunOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrAuthentication)
	assert.Empty(t, s.selected)
	assert.Empty(t, p.labels)
}

func TestRun_ResolutionErrorsNeverSwitch(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr error
	}{
		{name: "ambiguous", query: "Robot", wantErr: avatar.ErrAmbiguous},
		{name: "not found", query: "dragon", wantErr: avatar.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSelector{}
			d := newDriver(t, &fakeAuthenticator{}, staticResolver(t, robots...), s, &scriptedPrompter{})

			err := d.Run(context.Background(), console.RunOptions{Query: tt.query})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, s.selected)
		})
	}
}

func TestRun_EOFAtAvatarPrompt(t *testing.T) {
	s := &fakeSelector{}
	d := newDriver(t, &fakeAuthenticator{}, staticResolver(t, robots...), s, &scriptedPrompter{})

	err := d.Run(context.Background(), console.RunOptions{})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, avatar.CodeNotFound)
	assert.Empty(t, s.selected)
}

func TestRun_ReauthenticatesOnceWhenSessionRejected(t *testing.T) {
	a := &fakeAuthenticator{}
	s := &fakeSelector{errs: []error{unauthorized()}}
	p := &scriptedPrompter{}
	d := newDriver(t, a, staticResolver(t, robots...), s, p)

	require.NoError(t, d.Run(context.Background(), console.RunOptions{Query: "fox"}))

	assert.Equal(t, 1, a.invalidateCalls)
	assert.Equal(t, 2, a.authenticateCalls)
	assert.Equal(t, []string{"avtr_9", "avtr_9"}, s.selected)
	assert.Contains(t, p.out.String(), "Session expired, logging in again.")
}

func TestRun_SecondRejectionIsTerminal(t *testing.T) {
	a := &fakeAuthenticator{}
	s := &fakeSelector{errs: []error{unauthorized(), unauthorized()}}
	d := newDriver(t, a, staticResolver(t, robots...), s, &scriptedPrompter{})

	err := d.Run(context.Background(), console.RunOptions{Query: "fox"})
	require.Error(t, err)
	assert.ErrorIs(t, err, vrchat.ErrUnauthorized)
	assert.Equal(t, 1, a.invalidateCalls)
	assert.Len(t, s.selected, 2)
}

func TestRun_ReauthenticationFailure(t *testing.T) {
	authErr := oops.Code(auth.CodeCredentialsMissing).Wrapf(auth.ErrAuthentication, "password is required")
	a := &fakeAuthenticator{err: authErr, failOnCall: 2}
	s := &fakeSelector{errs: []error{unauthorized()}}
	d := newDriver(t, a, staticResolver(t, robots...), s, &scriptedPrompter{})

	err := d.Run(context.Background(), console.RunOptions{Query: "fox"})
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrAuthentication)
	assert.Len(t, s.selected, 1)
}

func TestRun_FavoritesRejectedMidRun(t *testing.T) {
	calls := 0
	favorites := avatar.FavoritesFunc(func(context.Context) ([]avatar.Avatar, error) {
		calls++
		if calls == 1 {
			return nil, oops.Code(vrchat.CodeAuthRequired).Wrapf(vrchat.ErrUnauthorized, "favorite avatars")
		}
		return []avatar.Avatar{{Name: "Fox", ID: "avtr_9"}}, nil
	})
	r, err := avatar.NewResolver(nil, favorites)
	require.NoError(t, err)

	a := &fakeAuthenticator{}
	s := &fakeSelector{}
	d := newDriver(t, a, r, s, &scriptedPrompter{})

	require.NoError(t, d.Run(context.Background(), console.RunOptions{Query: "fox"}))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, a.invalidateCalls)
	assert.Equal(t, []string{"avtr_9"}, s.selected)
}

func TestRun_Loop(t *testing.T) {
	s := &fakeSelector{}
	p := &scriptedPrompter{answers: []string{"Robot", "dragon", " robot2 ", ""}}
	d := newDriver(t, &fakeAuthenticator{}, staticResolver(t, robots...), s, p)

	require.NoError(t, d.Run(context.Background(), console.RunOptions{Loop: true, Query: "fox"}))

	assert.Equal(t, []string{"avtr_9", "avtr_2"}, s.selected)
	out := p.out.String()
	assert.Contains(t, out, `"Robot" matches several avatars: Robot, Robot2. Be more specific.`)
	assert.Contains(t, out, `No avatar matches "dragon".`)
	assert.Len(t, p.labels, 4)
}

func TestRun_LoopEndsOnEOF(t *testing.T) {
	s := &fakeSelector{}
	p := &scriptedPrompter{answers: []string{"fox"}}
	d := newDriver(t, &fakeAuthenticator{}, staticResolver(t, robots...), s, p)

	require.NoError(t, d.Run(context.Background(), console.RunOptions{Loop: true}))
	assert.Equal(t, []string{"avtr_9"}, s.selected)
}

func TestRun_LoopStopsOnTransportFailure(t *testing.T) {
	transport := oops.Code(vrchat.CodeTransportFailed).Wrapf(vrchat.ErrTransport, "select avatar")
	s := &fakeSelector{errs: []error{transport}}
	p := &scriptedPrompter{answers: []string{"fox", "robot2"}}
	d := newDriver(t, &fakeAuthenticator{}, staticResolver(t, robots...), s, p)

	err := d.Run(context.Background(), console.RunOptions{Loop: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, vrchat.ErrTransport)
	assert.Equal(t, []string{"avtr_9"}, s.selected)
}

func TestList_StaticDoesNotAuthenticate(t *testing.T) {
	a := &fakeAuthenticator{}
	p := &scriptedPrompter{}
	d := newDriver(t, a, staticResolver(t, robots...), &fakeSelector{}, p)

	require.NoError(t, d.List(context.Background(), auth.Credentials{}))

	assert.Equal(t, 0, a.authenticateCalls)
	out := p.out.String()
	assert.Contains(t, out, "Avatars from static mapping:")
	assert.Contains(t, out, "  Robot2  avtr_2\n")
	assert.Contains(t, out, "  Fox     avtr_9\n")
}

func TestList_FavoritesAuthenticates(t *testing.T) {
	r, err := avatar.NewResolver(nil, avatar.FavoritesFunc(func(context.Context) ([]avatar.Avatar, error) {
		return nil, nil
	}))
	require.NoError(t, err)

	a := &fakeAuthenticator{}
	p := &scriptedPrompter{}
	d := newDriver(t, a, r, &fakeSelector{}, p)

	require.NoError(t, d.List(context.Background(), auth.Credentials{Username: "alice"}))
	assert.Equal(t, 1, a.authenticateCalls)
	assert.Contains(t, p.out.String(), "No avatars in favorites.")
}
