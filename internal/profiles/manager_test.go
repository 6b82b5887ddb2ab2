package profiles

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func newTestManager(t *testing.T) (*Manager, *memorySettings, *memoryStore) {
	t.Helper()
	settings := &memorySettings{}
	store := newMemoryStore()
	return NewManager(DefaultProfiles(), settings, store), settings, store
}

func TestDeletingDefaultProfileClearsReference(t *testing.T) {
	ctx := context.Background()
	m, settings, _ := newTestManager(t)

	profile := NewProfile("", MakeFastestForCountry("pl"))
	if err := settings.UpdateDefaultProfile(ctx, uuid.NullUUID{UUID: profile.ID, Valid: true}); err != nil {
		t.Fatal(err)
	}

	if err := m.Delete(ctx, profile); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if settings.DefaultProfileID().Valid {
		t.Error("Expected default profile reference to be cleared")
	}
}

func TestDeleteStoredDefaultRemovesBoth(t *testing.T) {
	ctx := context.Background()
	m, settings, store := newTestManager(t)

	custom := NewProfile("swiss", MakeFastestForCountry("CH"))
	if err := m.AddOrUpdate(ctx, custom); err != nil {
		t.Fatal(err)
	}
	if err := m.SetDefault(ctx, custom.ID); err != nil {
		t.Fatal(err)
	}
	if got := m.DefaultOrFastest(); got.ID != custom.ID {
		t.Fatalf("Expected default %s, got %s", custom.ID, got.ID)
	}

	if err := m.Delete(ctx, custom); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.FindByID(custom.ID); ok {
		t.Error("Expected profile to be removed")
	}
	if settings.DefaultProfileID().Valid {
		t.Error("Expected reference to be cleared")
	}

	persisted, err := Decode(store.docs[StorageKey])
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range persisted.Profiles {
		if p.ID == custom.ID {
			t.Error("Deleted profile is still persisted")
		}
	}
}

func TestDeleteAbortsWhenReferenceCannotBeCleared(t *testing.T) {
	ctx := context.Background()
	m, settings, store := newTestManager(t)
	first := m.SavedProfiles()[0]
	settings.ref = uuid.NullUUID{UUID: first.ID, Valid: true}
	settings.failWrite = errDiskFull

	if err := m.Delete(ctx, first); !errors.Is(err, errDiskFull) {
		t.Fatalf("Expected settings failure, got %v", err)
	}
	if _, ok := m.FindByID(first.ID); !ok {
		t.Error("Profile must stay when its reference could not be cleared")
	}
	if store.writes != 0 {
		t.Errorf("Expected no profile writes, got %d", store.writes)
	}
}

func TestInvalidDefaultFallsBackToFirstProfile(t *testing.T) {
	m, settings, _ := newTestManager(t)
	settings.ref = uuid.NullUUID{UUID: uuid.New(), Valid: true}

	if got, want := m.DefaultOrFastest(), m.SavedProfiles()[0]; got != want {
		t.Errorf("Expected first saved profile %+v, got %+v", want, got)
	}

	settings.ref = uuid.NullUUID{}
	if got, want := m.DefaultOrFastest(), m.SavedProfiles()[0]; got != want {
		t.Errorf("Expected first saved profile with no reference, got %+v", got)
	}
}

func TestDefaultOrFastestWithEmptyStore(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	for _, p := range m.SavedProfiles() {
		if err := m.Delete(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	got := m.DefaultOrFastest()
	if got.Wrapper.Type != TypeFastest {
		t.Errorf("Expected a fastest fallback, got %+v", got)
	}
}

func TestAddOrUpdateReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	m, _, store := newTestManager(t)

	custom := NewProfile("de", MakeFastestForCountry("DE"))
	if err := m.AddOrUpdate(ctx, custom); err != nil {
		t.Fatal(err)
	}
	before := m.SavedProfiles()
	if before[len(before)-1].ID != custom.ID {
		t.Fatal("Expected new profile to be appended")
	}

	fastest := before[0]
	renamed := fastest
	renamed.Name = "quickest"
	if err := m.AddOrUpdate(ctx, renamed); err != nil {
		t.Fatal(err)
	}

	after := m.SavedProfiles()
	if len(after) != len(before) {
		t.Fatalf("Expected %d profiles, got %d", len(before), len(after))
	}
	if after[0].ID != fastest.ID || after[0].Name != "quickest" {
		t.Errorf("Expected renamed profile at index 0, got %+v", after[0])
	}
	if store.writes != 2 {
		t.Errorf("Expected 2 writes, got %d", store.writes)
	}
}

func TestAddOrUpdateRejectsInvalidProfiles(t *testing.T) {
	ctx := context.Background()
	m, _, store := newTestManager(t)

	tests := []Profile{
		{Name: "no id", Wrapper: MakeFastest()},
		NewProfile("no country", ServerWrapper{Type: TypeFastestInCountry}),
		NewProfile("bad type", ServerWrapper{Type: "NEAREST"}),
	}
	for _, p := range tests {
		if err := m.AddOrUpdate(ctx, p); err == nil {
			t.Errorf("Expected %q to be rejected", p.Name)
		}
	}
	if store.writes != 0 {
		t.Errorf("Expected no writes, got %d", store.writes)
	}
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	m, _, store := newTestManager(t)
	store.failWrite = errDiskFull

	p := NewProfile("nl", MakeRandomForCountry("NL"))
	if err := m.AddOrUpdate(ctx, p); !errors.Is(err, errDiskFull) {
		t.Fatalf("Expected write failure, got %v", err)
	}
	if _, ok := m.FindByID(p.ID); !ok {
		t.Error("In-memory state must stay authoritative after a failed write")
	}
}

func TestFlushRetriesFailedWrite(t *testing.T) {
	ctx := context.Background()
	m, _, store := newTestManager(t)

	if err := m.Flush(ctx); err != nil || store.writes != 0 {
		t.Fatalf("Flush of a clean store must not write, got err=%v writes=%d", err, store.writes)
	}

	store.failWrite = errDiskFull
	p := NewProfile("nl", MakeRandomForCountry("NL"))
	if err := m.AddOrUpdate(ctx, p); !errors.Is(err, errDiskFull) {
		t.Fatalf("Expected write failure, got %v", err)
	}
	if err := m.Flush(ctx); !errors.Is(err, errDiskFull) {
		t.Fatalf("Expected Flush to retry and fail again, got %v", err)
	}

	store.failWrite = nil
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if store.writes != 1 {
		t.Fatalf("Expected one successful write, got %d", store.writes)
	}
	saved, err := Decode(store.docs[StorageKey])
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(saved.Profiles) != len(m.SavedProfiles()) || saved.Profiles[len(saved.Profiles)-1].ID != p.ID {
		t.Errorf("Stored list does not match memory: %+v", saved.Profiles)
	}

	if err := m.Flush(ctx); err != nil || store.writes != 1 {
		t.Errorf("Second Flush must be a no-op, got err=%v writes=%d", err, store.writes)
	}
}

func TestPersistWritesCurrentList(t *testing.T) {
	m, _, store := newTestManager(t)
	if err := m.Persist(context.Background()); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	saved, err := Decode(store.docs[StorageKey])
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for i, p := range m.SavedProfiles() {
		if saved.Profiles[i].ID != p.ID {
			t.Errorf("Profile %d: stored id %s, want %s", i, saved.Profiles[i].ID, p.ID)
		}
	}
}

func TestDeleteUnknownProfileIsNoop(t *testing.T) {
	ctx := context.Background()
	m, _, store := newTestManager(t)
	before := m.SavedProfiles()

	if err := m.DeleteByID(ctx, uuid.New()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(m.SavedProfiles()) != len(before) || store.writes != 0 {
		t.Error("Deleting an unknown profile must not change or persist anything")
	}
}

func TestSetDefaultRequiresExistingProfile(t *testing.T) {
	m, _, _ := newTestManager(t)
	if err := m.SetDefault(context.Background(), uuid.New()); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Expected ErrProfileNotFound, got %v", err)
	}
}

func TestCancelledContextLeavesStoreUntouched(t *testing.T) {
	m, _, store := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.AddOrUpdate(ctx, NewProfile("x", MakeFastest())); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if err := m.Delete(ctx, m.SavedProfiles()[0]); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(m.SavedProfiles()) != 2 || store.writes != 0 {
		t.Error("Cancelled calls must not mutate the store")
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	ch, cancel := m.Subscribe()
	defer cancel()
	if first := <-ch; len(first) != 2 {
		t.Fatalf("Expected initial snapshot of 2, got %d", len(first))
	}

	if err := m.AddOrUpdate(ctx, NewProfile("it", MakeFastestForCountry("IT"))); err != nil {
		t.Fatal(err)
	}
	if next := <-ch; len(next) != 3 {
		t.Errorf("Expected snapshot of 3, got %d", len(next))
	}
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	m, _, store := newTestManager(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := NewProfile(fmt.Sprintf("p%d", i), MakeFastestForCountry("US"))
			if err := m.AddOrUpdate(ctx, p); err != nil {
				t.Errorf("AddOrUpdate failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(m.SavedProfiles()); got != n+2 {
		t.Errorf("Expected %d profiles, got %d", n+2, got)
	}
	persisted, err := Decode(store.docs[StorageKey])
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted.Profiles) != n+2 {
		t.Errorf("Expected last write to hold %d profiles, got %d", n+2, len(persisted.Profiles))
	}
}
