// Package session persists browser storage state so dependent scenarios can
// skip the interactive login.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/gofrs/flock"
	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/singleflight"

	"github.com/gotrs-io/dynamics-e2e/internal/config"
)

// files maps each profile to its snapshot file name.
var files = map[config.Profile]string{
	config.ProfileMDA:        "user.json",
	config.ProfilePortal:     "auth.json",
	config.ProfilePublicFile: "public-file.json",
}

// State mirrors playwright's storage state file.
type State struct {
	Cookies []Cookie `json:"cookies"`
	Origins []Origin `json:"origins"`
}

type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HttpOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

type Origin struct {
	Origin       string      `json:"origin"`
	LocalStorage []NameValue `json:"localStorage"`
}

type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FromPlaywright converts the state returned by a browser context.
func FromPlaywright(st *playwright.StorageState) State {
	var s State
	if st == nil {
		return s
	}
	for _, c := range st.Cookies {
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HttpOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != nil {
			cookie.SameSite = string(*c.SameSite)
		}
		s.Cookies = append(s.Cookies, cookie)
	}
	for _, o := range st.Origins {
		origin := Origin{Origin: o.Origin}
		for _, kv := range o.LocalStorage {
			origin.LocalStorage = append(origin.LocalStorage, NameValue{Name: kv.Name, Value: kv.Value})
		}
		s.Origins = append(s.Origins, origin)
	}
	return s
}

// Valid reports whether at least one cookie is unexpired at now. Session
// cookies (expires -1) never expire.
func (s State) Valid(now time.Time) bool {
	for _, c := range s.Cookies {
		if c.Expires <= 0 || c.Expires > float64(now.Unix()) {
			return true
		}
	}
	return false
}

// LoginFunc performs an interactive login and returns the resulting state.
type LoginFunc func(ctx context.Context) (State, error)

// Store keeps one snapshot per profile in Dir.
type Store struct {
	Dir    string
	Logger logr.Logger
	Now    func() time.Time

	group singleflight.Group
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, logger logr.Logger) *Store {
	return &Store{Dir: dir, Logger: logger, Now: time.Now}
}

// Path returns the snapshot file of a profile.
func (s *Store) Path(p config.Profile) string {
	name, ok := files[p]
	if !ok {
		name = string(p) + ".json"
	}
	return filepath.Join(s.Dir, name)
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Load reads a profile's snapshot.
func (s *Store) Load(p config.Profile) (State, error) {
	var st State
	data, err := os.ReadFile(s.Path(p))
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decoding %s: %w", s.Path(p), err)
	}
	return st, nil
}

// Fresh reports whether a profile's snapshot exists, is younger than maxAge
// (zero disables the age check) and still holds a live cookie.
func (s *Store) Fresh(p config.Profile, maxAge time.Duration) bool {
	info, err := os.Stat(s.Path(p))
	if err != nil {
		return false
	}
	if maxAge > 0 && s.now().Sub(info.ModTime()) > maxAge {
		return false
	}
	st, err := s.Load(p)
	if err != nil {
		return false
	}
	return st.Valid(s.now())
}

// Save writes a profile's snapshot atomically under a cross-process lock.
func (s *Store) Save(p config.Profile, st State) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", s.Dir, err)
	}
	lock := flock.New(s.Path(p) + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", s.Path(p), err)
	}
	defer lock.Unlock()
	return s.write(p, st)
}

func (s *Store) write(p config.Profile, st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, filepath.Base(s.Path(p))+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.Path(p))
}

// Ensure returns the path of a fresh snapshot for p, logging in when needed.
// Concurrent callers in one process share a single login; worker processes
// serialise on a file lock and re-check freshness once they hold it.
func (s *Store) Ensure(ctx context.Context, p config.Profile, maxAge time.Duration, login LoginFunc) (string, error) {
	if s.Fresh(p, maxAge) {
		return s.Path(p), nil
	}
	_, err, shared := s.group.Do(string(p), func() (any, error) {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", s.Dir, err)
		}
		lock := flock.New(s.Path(p) + ".lock")
		if err := lock.Lock(); err != nil {
			return nil, fmt.Errorf("locking %s: %w", s.Path(p), err)
		}
		defer lock.Unlock()

		if s.Fresh(p, maxAge) {
			s.Logger.V(1).Info("session refreshed by another worker", "profile", p)
			return nil, nil
		}
		st, err := login(ctx)
		if err != nil {
			return nil, err
		}
		if !st.Valid(s.now()) {
			return nil, errors.New("login produced no live session cookies")
		}
		if err := s.write(p, st); err != nil {
			return nil, fmt.Errorf("saving %s session: %w", p, err)
		}
		s.Logger.Info("session saved", "profile", p, "path", s.Path(p))
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		s.Logger.V(1).Info("joined in-flight login", "profile", p)
	}
	return s.Path(p), nil
}

// Remove deletes a profile's snapshot, forcing the next Ensure to log in.
func (s *Store) Remove(p config.Profile) error {
	err := os.Remove(s.Path(p))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
