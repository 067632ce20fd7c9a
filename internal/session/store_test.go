// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package session

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrcswitch/avatar-switch/pkg/errutil"
)

type fakeTempFile struct {
	name     string
	writeErr error
	chmodErr error
	closeErr error
}

func (f *fakeTempFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return len(p), nil
}

func (f *fakeTempFile) Chmod(_ os.FileMode) error { return f.chmodErr }
func (f *fakeTempFile) Close() error              { return f.closeErr }
func (f *fakeTempFile) Name() string              { return f.name }

func restoreSeams(t *testing.T) {
	t.Helper()
	oldMkdirAll, oldCreateTemp, oldRemove, oldRename, oldNow := mkdirAll, createTemp, removePath, renamePath, now
	t.Cleanup(func() {
		mkdirAll, createTemp, removePath, renamePath, now = oldMkdirAll, oldCreateTemp, oldRemove, oldRename, oldNow
	})
}

func newStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "state", "cookies.json"))
	require.NoError(t, err)
	return store
}

func TestNewFileStore_Validation(t *testing.T) {
	_, err := NewFileStore("  ")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_PATH_EMPTY")

	_, err = NewFileStoreWithLogger("/tmp/x.json", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger")
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := newStore(t)
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	expires := time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC)

	err := store.Save(ctx, []*http.Cookie{
		{Name: "auth", Value: "authcookie_123", Expires: expires},
		{Name: "twoFactorAuth", Value: "tfa_456"},
		nil,
		{Name: "", Value: "dropped"},
	})
	require.NoError(t, err)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cookies, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	assert.Equal(t, "auth", cookies[0].Name)
	assert.Equal(t, "authcookie_123", cookies[0].Value)
	assert.True(t, expires.Equal(cookies[0].Expires))
	assert.Equal(t, "twoFactorAuth", cookies[1].Name)
	assert.True(t, cookies[1].Expires.IsZero())
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.Save(ctx, []*http.Cookie{{Name: "auth", Value: "old"}}))
	require.NoError(t, store.Save(ctx, []*http.Cookie{{Name: "auth", Value: "new"}}))

	cookies, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "new", cookies[0].Value)
}

func TestFileStore_LoadEmptyDocument(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Save(context.Background(), nil))

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o700))
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))

	_, err := store.Load(context.Background())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_CORRUPT")
}

func TestFileStore_Clear(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.Clear(ctx), "clearing a missing file is not an error")

	require.NoError(t, store.Save(ctx, []*http.Cookie{{Name: "auth", Value: "v"}}))
	require.NoError(t, store.Clear(ctx))

	_, err := os.Stat(store.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileStore_SaveRecordsTimestamp(t *testing.T) {
	restoreSeams(t)
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }

	store := newStore(t)
	require.NoError(t, store.Save(context.Background(), []*http.Cookie{{Name: "auth", Value: "v"}}))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"saved_at": "2026-10-19T12:00:00Z"`)
	assert.Contains(t, string(raw), `"version": 1`)
	assert.NotContains(t, string(raw), "expires", "zero expiry is omitted")
}

func TestAtomicWriteFile_Failures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func()
		step  string
	}{
		{
			name:  "mkdir",
			setup: func() { mkdirAll = func(string, os.FileMode) error { return boom } },
			step:  "create parent directory",
		},
		{
			name: "create temp",
			setup: func() {
				createTemp = func(string, string) (tempFile, error) { return nil, boom }
			},
			step: "create temp file",
		},
		{
			name: "write",
			setup: func() {
				createTemp = func(string, string) (tempFile, error) { return &fakeTempFile{name: "t", writeErr: boom}, nil }
			},
			step: "write temp file",
		},
		{
			name: "chmod",
			setup: func() {
				createTemp = func(string, string) (tempFile, error) { return &fakeTempFile{name: "t", chmodErr: boom}, nil }
			},
			step: "set file mode",
		},
		{
			name: "close",
			setup: func() {
				createTemp = func(string, string) (tempFile, error) { return &fakeTempFile{name: "t", closeErr: boom}, nil }
			},
			step: "close temp file",
		},
		{
			name: "rename",
			setup: func() {
				createTemp = func(string, string) (tempFile, error) { return &fakeTempFile{name: "t"}, nil }
				renamePath = func(string, string) error { return boom }
			},
			step: "replace file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreSeams(t)
			removePath = func(string) error { return nil }
			tt.setup()

			err := atomicWriteFile(filepath.Join(t.TempDir(), "cookies.json"), []byte("{}"), 0o600)
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
			errutil.AssertErrorContext(t, err, "step", tt.step)
		})
	}
}

func TestFileStore_SaveWrapsWriteFailure(t *testing.T) {
	restoreSeams(t)
	mkdirAll = func(string, os.FileMode) error { return errors.New("read-only") }

	store := newStore(t)
	err := store.Save(context.Background(), []*http.Cookie{{Name: "auth", Value: "v"}})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_WRITE_FAILED")
}
