package profiles

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"vpnprofile/internal/logger"
	"vpnprofile/internal/observe"

	"github.com/google/uuid"
)

var ErrProfileNotFound = errors.New("profile not found")

// DefaultProfileSettings is the part of the user settings the manager needs.
type DefaultProfileSettings interface {
	DefaultProfileID() uuid.NullUUID
	UpdateDefaultProfile(ctx context.Context, id uuid.NullUUID) error
}

// Manager owns the saved profile list. All mutations go through writeMu, so
// they never interleave; readers get immutable snapshots.
type Manager struct {
	writeMu  sync.Mutex
	profiles *observe.Value[[]Profile]
	settings DefaultProfileSettings
	store    DocumentStore
	fallback Profile
	// dirty is set while the in-memory list is newer than storage.
	dirty bool
}

func NewManager(saved SavedProfiles, settings DefaultProfileSettings, store DocumentStore) *Manager {
	return &Manager{
		profiles: observe.NewValue(slices.Clone(saved.Profiles)),
		settings: settings,
		store:    store,
		fallback: NewProfile("fastest", MakeFastest()),
	}
}

// SavedProfiles returns a copy of the current profile list.
func (m *Manager) SavedProfiles() []Profile {
	return slices.Clone(m.profiles.Get())
}

// Subscribe streams profile list snapshots, starting with the current one.
// Received slices are shared and must not be modified.
func (m *Manager) Subscribe() (<-chan []Profile, func()) {
	return m.profiles.Subscribe()
}

func (m *Manager) FindByID(id uuid.UUID) (Profile, bool) {
	for _, p := range m.profiles.Get() {
		if p.ID == id {
			return p, true
		}
	}
	return Profile{}, false
}

// DefaultOrFastest returns the default profile when the stored reference
// resolves, otherwise the first saved profile. If the user removed every
// profile, a transient fastest profile is returned.
func (m *Manager) DefaultOrFastest() Profile {
	list := m.profiles.Get()
	if ref := m.settings.DefaultProfileID(); ref.Valid {
		for _, p := range list {
			if p.ID == ref.UUID {
				return p
			}
		}
	}
	if len(list) > 0 {
		return list[0]
	}
	return m.fallback
}

// AddOrUpdate inserts p, or replaces the profile with the same ID in place.
// The in-memory list is committed even when the durable write fails.
func (m *Manager) AddOrUpdate(ctx context.Context, p Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		return fmt.Errorf("profile %q has no id", p.Name)
	}
	if err := p.Wrapper.Validate(); err != nil {
		return fmt.Errorf("invalid profile %q: %w", p.Name, err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	current := m.profiles.Get()
	next := slices.Clone(current)
	if i := indexOf(current, p.ID); i >= 0 {
		next[i] = p
	} else {
		next = append(next, p)
	}
	return m.commit(context.WithoutCancel(ctx), next)
}

// Delete removes p from the store. If p is the default profile, the default
// reference is cleared first so it never points at a removed profile.
// Deleting an unknown profile only clears a matching reference.
func (m *Manager) Delete(ctx context.Context, p Profile) error {
	return m.DeleteByID(ctx, p.ID)
}

func (m *Manager) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	ctx = context.WithoutCancel(ctx)

	if ref := m.settings.DefaultProfileID(); ref.Valid && ref.UUID == id {
		if err := m.settings.UpdateDefaultProfile(ctx, uuid.NullUUID{}); err != nil {
			return fmt.Errorf("clear default profile: %w", err)
		}
		logger.For("profiles").Debugf("Cleared default profile reference %s", id)
	}

	current := m.profiles.Get()
	i := indexOf(current, id)
	if i < 0 {
		return nil
	}
	return m.commit(ctx, slices.Delete(slices.Clone(current), i, i+1))
}

// SetDefault points the default reference at a saved profile.
func (m *Manager) SetDefault(ctx context.Context, id uuid.UUID) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if indexOf(m.profiles.Get(), id) < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return m.settings.UpdateDefaultProfile(ctx, uuid.NullUUID{UUID: id, Valid: true})
}

// ClearDefault removes the default reference.
func (m *Manager) ClearDefault(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.settings.UpdateDefaultProfile(ctx, uuid.NullUUID{})
}

// Persist writes the current list to storage unconditionally.
func (m *Manager) Persist(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.write(ctx, m.profiles.Get())
}

// Flush retries a write that failed earlier. It does nothing when storage
// is up to date.
func (m *Manager) Flush(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if !m.dirty {
		return nil
	}
	return m.write(ctx, m.profiles.Get())
}

// commit publishes next and then writes it out. Caller holds writeMu.
func (m *Manager) commit(ctx context.Context, next []Profile) error {
	m.profiles.Set(next)
	return m.write(ctx, next)
}

// write stores list and tracks whether storage lags behind memory.
// Caller holds writeMu.
func (m *Manager) write(ctx context.Context, list []Profile) error {
	data, err := SavedProfiles{Profiles: list}.Encode()
	if err == nil {
		err = m.store.Put(ctx, StorageKey, data)
	}
	if err != nil {
		m.dirty = true
		logger.For("profiles").Warnf("Failed to persist profiles: %v", err)
		return fmt.Errorf("persist profiles: %w", err)
	}
	m.dirty = false
	return nil
}

func indexOf(list []Profile, id uuid.UUID) int {
	return slices.IndexFunc(list, func(p Profile) bool { return p.ID == id })
}
