package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/dynamics-e2e/internal/config"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	s := NewStore(t.TempDir(), testr.New(t))
	s.Now = func() time.Time { return now }
	return s
}

func liveState() State {
	return State{
		Cookies: []Cookie{{Name: "CrmOwinAuth", Value: "x", Domain: ".dynamics.com", Path: "/", Expires: float64(now.Add(time.Hour).Unix())}},
		Origins: []Origin{{Origin: "https://org.crm11.dynamics.com", LocalStorage: []NameValue{{Name: "k", Value: "v"}}}},
	}
}

func TestStateValid(t *testing.T) {
	assert.True(t, liveState().Valid(now))
	assert.True(t, State{Cookies: []Cookie{{Name: "s", Expires: -1}}}.Valid(now))
	assert.False(t, State{Cookies: []Cookie{{Name: "old", Expires: float64(now.Add(-time.Minute).Unix())}}}.Valid(now))
	assert.False(t, State{}.Valid(now))
}

func TestSaveLoad(t *testing.T) {
	s := newStore(t)
	assert.False(t, s.Fresh(config.ProfileMDA, 0))

	require.NoError(t, s.Save(config.ProfileMDA, liveState()))
	assert.FileExists(t, s.Path(config.ProfileMDA))
	assert.Contains(t, s.Path(config.ProfileMDA), "user.json")

	got, err := s.Load(config.ProfileMDA)
	require.NoError(t, err)
	assert.Equal(t, liveState(), got)
	assert.True(t, s.Fresh(config.ProfileMDA, 0))

	require.NoError(t, s.Remove(config.ProfileMDA))
	require.NoError(t, s.Remove(config.ProfileMDA))
	assert.False(t, s.Fresh(config.ProfileMDA, 0))
}

func TestFreshAge(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save(config.ProfilePortal, liveState()))

	old := now.Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(s.Path(config.ProfilePortal), old, old))
	assert.False(t, s.Fresh(config.ProfilePortal, time.Hour))
	assert.True(t, s.Fresh(config.ProfilePortal, 0))
}

func TestEnsure(t *testing.T) {
	ctx := context.Background()

	t.Run("logs in once for concurrent callers", func(t *testing.T) {
		s := newStore(t)
		var logins atomic.Int32
		release := make(chan struct{})
		login := func(context.Context) (State, error) {
			logins.Add(1)
			<-release
			return liveState(), nil
		}

		var wg sync.WaitGroup
		paths := make([]string, 4)
		errs := make([]error, 4)
		for i := range paths {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				paths[i], errs[i] = s.Ensure(ctx, config.ProfileMDA, time.Hour, login)
			}(i)
		}
		// Let the goroutines pile onto the in-flight login before it returns.
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		for i := range paths {
			require.NoError(t, errs[i])
			assert.Equal(t, s.Path(config.ProfileMDA), paths[i])
		}
		assert.Equal(t, int32(1), logins.Load())
		assert.True(t, s.Fresh(config.ProfileMDA, time.Hour))
	})

	t.Run("skips login when the snapshot is fresh", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(config.ProfilePublicFile, liveState()))
		_, err := s.Ensure(ctx, config.ProfilePublicFile, 0, func(context.Context) (State, error) {
			t.Fatal("login must not run")
			return State{}, nil
		})
		require.NoError(t, err)
	})

	t.Run("propagates login failures", func(t *testing.T) {
		s := newStore(t)
		boom := errors.New("authentication failed after 3 attempts")
		_, err := s.Ensure(ctx, config.ProfileMDA, 0, func(context.Context) (State, error) {
			return State{}, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoFileExists(t, s.Path(config.ProfileMDA))
	})

	t.Run("rejects sessions without live cookies", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Ensure(ctx, config.ProfileMDA, 0, func(context.Context) (State, error) {
			return State{}, nil
		})
		assert.Error(t, err)
	})
}

func TestFromPlaywright(t *testing.T) {
	lax := playwright.SameSiteAttributeLax
	st := FromPlaywright(&playwright.StorageState{
		Cookies: []playwright.Cookie{{Name: "a", Value: "b", Domain: "d", Path: "/", Expires: -1, SameSite: lax}},
		Origins: []playwright.Origin{{Origin: "https://o", LocalStorage: []playwright.NameValue{{Name: "n", Value: "v"}}}},
	})
	require.Len(t, st.Cookies, 1)
	assert.Equal(t, "Lax", st.Cookies[0].SameSite)
	assert.Equal(t, []NameValue{{Name: "n", Value: "v"}}, st.Origins[0].LocalStorage)
	assert.Equal(t, State{}, FromPlaywright(nil))
}
