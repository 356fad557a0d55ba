package keyboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeyboard(granted bool) (*Keyboard, *FakeEmitter, *FakeClipboard, *FakePermission) {
	em := &FakeEmitter{}
	clip := &FakeClipboard{}
	perm := &FakePermission{}
	perm.Set(granted)
	return NewFake(em, clip, perm), em, clip, perm
}

func TestTypeEmptyIsNoop(t *testing.T) {
	k, em, _, _ := newTestKeyboard(false)

	// Empty text needs no permission and produces no keystrokes.
	require.NoError(t, k.Type(context.Background(), "", DefaultDelay))
	assert.Empty(t, em.Typed())
}

func TestTypeWithoutPermission(t *testing.T) {
	k, em, _, _ := newTestKeyboard(false)

	err := k.Type(context.Background(), "hello", 0)
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Empty(t, em.Typed())
}

func TestTypeAllRunes(t *testing.T) {
	k, em, _, _ := newTestKeyboard(true)

	require.NoError(t, k.Type(context.Background(), "Hello, world 42", 0))
	assert.Equal(t, "Hello, world 42", em.Typed())
}

func TestTypeDelayBetweenKeys(t *testing.T) {
	k, em, _, _ := newTestKeyboard(true)

	start := time.Now()
	require.NoError(t, k.Type(context.Background(), "abcd", 10*time.Millisecond))
	elapsed := time.Since(start)

	assert.Equal(t, "abcd", em.Typed())
	// three gaps between four keys
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestTypeSkipsUnsupported(t *testing.T) {
	k, em, _, _ := newTestKeyboard(true)
	em.Unmapped = "é€"

	err := k.Type(context.Background(), "café €5", 0)
	require.ErrorIs(t, err, ErrUnsupportedChars)
	assert.Contains(t, err.Error(), "2")
	assert.Equal(t, "caf 5", em.Typed())
}

func TestTypeCancelled(t *testing.T) {
	k, em, _, _ := newTestKeyboard(true)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := k.Type(ctx, "a long sentence that will not finish", 20*time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotEmpty(t, em.Typed())
	assert.Less(t, len(em.Typed()), len("a long sentence that will not finish"))
}

func TestCheckPermissionNotCached(t *testing.T) {
	k, _, _, perm := newTestKeyboard(false)
	assert.False(t, k.CheckPermission())

	perm.Set(true)
	assert.True(t, k.CheckPermission())

	perm.Set(false)
	assert.False(t, k.CheckPermission())
}

func TestRequestPermissionAsync(t *testing.T) {
	k, _, _, perm := newTestKeyboard(false)
	k.RequestPermission()

	require.Eventually(t, func() bool { return perm.Requests() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPasteRestoresClipboard(t *testing.T) {
	k, em, clip, _ := newTestKeyboard(true)
	require.NoError(t, clip.Copy("previous"))

	require.NoError(t, k.Paste("dictated text"))
	assert.Equal(t, []string{"ctrl+v"}, em.Chords())

	got, _ := clip.Read()
	assert.Equal(t, "dictated text", got)

	require.Eventually(t, func() bool {
		got, _ := clip.Read()
		return got == "previous"
	}, time.Second, 5*time.Millisecond)
}

func TestOverlappingPastesRestoreOriginal(t *testing.T) {
	k, em, clip, _ := newTestKeyboard(true)
	k.RestoreDelay = 50 * time.Millisecond
	require.NoError(t, clip.Copy("user clipboard"))

	require.NoError(t, k.Paste("first"))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, k.Paste("second"))

	got, _ := clip.Read()
	assert.Equal(t, "second", got)
	assert.Len(t, em.Chords(), 2)

	time.Sleep(200 * time.Millisecond)
	got, _ = clip.Read()
	assert.Equal(t, "user clipboard", got)
}

func TestPasteAfterRestoreSavesAgain(t *testing.T) {
	k, _, clip, _ := newTestKeyboard(true)
	k.RestoreDelay = 10 * time.Millisecond
	require.NoError(t, clip.Copy("one"))

	require.NoError(t, k.Paste("a"))
	require.Eventually(t, func() bool { got, _ := clip.Read(); return got == "one" }, time.Second, 5*time.Millisecond)

	require.NoError(t, clip.Copy("two"))
	require.NoError(t, k.Paste("b"))
	require.Eventually(t, func() bool { got, _ := clip.Read(); return got == "two" }, time.Second, 5*time.Millisecond)
}

func TestFailedPasteStillRestores(t *testing.T) {
	k, em, clip, _ := newTestKeyboard(true)
	k.RestoreDelay = 10 * time.Millisecond
	require.NoError(t, clip.Copy("user clipboard"))
	em.ChordErr = errors.New("event tap gone")

	require.ErrorContains(t, k.Paste("dictated"), "sending paste chord")
	require.Eventually(t, func() bool { got, _ := clip.Read(); return got == "user clipboard" }, time.Second, 5*time.Millisecond)
}

func TestCloseRestoresPendingClipboard(t *testing.T) {
	k, _, clip, _ := newTestKeyboard(true)
	k.RestoreDelay = time.Hour
	require.NoError(t, clip.Copy("keep me"))

	require.NoError(t, k.Paste("dictated"))
	require.NoError(t, k.Close())

	got, _ := clip.Read()
	assert.Equal(t, "keep me", got)
}

func TestPasteWithoutPermission(t *testing.T) {
	k, em, _, _ := newTestKeyboard(false)
	require.ErrorIs(t, k.Paste("x"), ErrPermissionDenied)
	assert.Empty(t, em.Chords())
}

func TestOpenFailureIsPermissionDenied(t *testing.T) {
	k, _, _, _ := newTestKeyboard(true)
	k.open = func() (Emitter, error) { return nil, errors.New("EACCES") }

	err := k.Type(context.Background(), "x", 0)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCloseReleasesEmitter(t *testing.T) {
	k, em, _, _ := newTestKeyboard(true)
	require.NoError(t, k.Type(context.Background(), "x", 0))
	require.NoError(t, k.Close())
	assert.True(t, em.closed)
	require.NoError(t, k.Close())
}

func TestCanType(t *testing.T) {
	k, em, _, _ := newTestKeyboard(true)
	em.Unmapped = "ü"

	assert.True(t, k.CanType("plain ascii"))
	assert.True(t, k.CanType(""))
	assert.False(t, k.CanType("grüße"))
}
