package profiles

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

const legacyFixture = `{"profileList":[{"id":"82c935d8-2968-4cc5-8ea7-8d73270efe57","isGuestHoleProfile":false,"name":"fastest","wrapper":{"country":"","secureCoreCountry":false,"serverId":"","type":"FASTEST"}},{"id":"45509eff-bafb-46c1-8b16-ff605d94c5f6","isGuestHoleProfile":false,"name":"random","wrapper":{"country":"","secureCoreCountry":false,"serverId":"","type":"RANDOM"}},{"id":"3b982087-47e5-4560-b99b-bb2433b8b770","isGuestHoleProfile":false,"name":"Argentina","wrapper":{"country":"AR","secureCoreCountry":false,"serverId":"","type":"FASTEST_IN_COUNTRY"}}]}`

func TestDefaultProfilesContainFastestAndRandom(t *testing.T) {
	for _, countries := range [][]string{nil, {"ch", "se"}} {
		saved := DefaultProfiles(countries...)
		if len(saved.Profiles) != 2+len(countries) {
			t.Fatalf("Expected %d profiles, got %d", 2+len(countries), len(saved.Profiles))
		}

		var fastest, random int
		ids := make(map[uuid.UUID]bool)
		for _, p := range saved.Profiles {
			switch p.Wrapper.Type {
			case TypeFastest:
				fastest++
			case TypeRandom:
				random++
			}
			if ids[p.ID] {
				t.Errorf("Duplicate id %s in defaults", p.ID)
			}
			ids[p.ID] = true
		}
		if fastest == 0 || random == 0 {
			t.Errorf("Expected fastest and random profiles, got %+v", saved.Profiles)
		}
	}
}

func TestRestoreLegacyFixture(t *testing.T) {
	store := newMemoryStore()
	store.docs[StorageKey] = []byte(legacyFixture)

	saved, writeBack := LoadProfiles(context.Background(), store, func() SavedProfiles {
		t.Fatal("Defaults should not be used for a valid document")
		return SavedProfiles{}
	})
	if writeBack {
		t.Error("A current document with valid ids needs no write-back")
	}

	if len(saved.Profiles) != 3 {
		t.Fatalf("Expected 3 profiles, got %d", len(saved.Profiles))
	}

	var custom []Profile
	for _, p := range saved.Profiles {
		if !p.IsPreBaked() {
			custom = append(custom, p)
		}
	}
	if len(custom) != 1 {
		t.Fatalf("Expected exactly one custom profile, got %d", len(custom))
	}
	if custom[0].Country() != "AR" {
		t.Errorf("Expected country AR, got %q", custom[0].Country())
	}
	if custom[0].Wrapper.Type != TypeFastestInCountry {
		t.Errorf("Expected FASTEST_IN_COUNTRY, got %s", custom[0].Wrapper.Type)
	}
	if custom[0].ID.String() != "3b982087-47e5-4560-b99b-bb2433b8b770" {
		t.Errorf("Expected stored id to be kept, got %s", custom[0].ID)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := SavedProfiles{Profiles: []Profile{
		NewProfile("fastest", MakeFastest()),
		NewProfile("random sc", MakeRandom().SecureCoreVariant()),
		NewProfile("swiss", MakeFastestForCountry("ch")),
		NewProfile("", MakeRandomForCountry("SE")),
		NewProfile("mine", MakeWithServer("srv-42")),
	}}
	original.Profiles[1].GuestHole = true

	data, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if len(decoded.Profiles) != len(original.Profiles) {
		t.Fatalf("Expected %d profiles, got %d", len(original.Profiles), len(decoded.Profiles))
	}
	for i, want := range original.Profiles {
		got := decoded.Profiles[i]
		if got != want {
			t.Errorf("Profile %d: expected %+v, got %+v", i, want, got)
		}
		if got.IsPreBaked() != want.IsPreBaked() {
			t.Errorf("Profile %d: pre-baked flag changed", i)
		}
	}
}

func TestDecodeLegacyLayouts(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(*testing.T, SavedProfiles)
	}{
		{
			name:  "v2 profiles key",
			input: `{"profiles":[{"id":"45509eff-bafb-46c1-8b16-ff605d94c5f6","name":"random","wrapper":{"type":"RANDOM"}}]}`,
			check: func(t *testing.T, s SavedProfiles) {
				if len(s.Profiles) != 1 || s.Profiles[0].Wrapper.Type != TypeRandom {
					t.Errorf("Unexpected profiles: %+v", s.Profiles)
				}
			},
		},
		{
			name:  "v1 bare array with extra fields",
			input: `[{"id":"82c935d8-2968-4cc5-8ea7-8d73270efe57","name":"x","color":"red","wrapper":{"type":"FASTEST","legacy":1}}]`,
			check: func(t *testing.T, s SavedProfiles) {
				if len(s.Profiles) != 1 || s.Profiles[0].Wrapper.Type != TypeFastest {
					t.Errorf("Unexpected profiles: %+v", s.Profiles)
				}
			},
		},
		{
			name:  "legacy aliases",
			input: `{"profileList":[{"name":"a","wrapper":{"type":"server","serverId":"s1"}},{"name":"b","wrapper":{"type":"FASTEST_SECURE_CORE"}}]}`,
			check: func(t *testing.T, s SavedProfiles) {
				if len(s.Profiles) != 2 {
					t.Fatalf("Expected 2 profiles, got %d", len(s.Profiles))
				}
				if w := s.Profiles[0].Wrapper; w.Type != TypeDirect || w.ServerID != "s1" {
					t.Errorf("Expected DIRECT s1, got %+v", w)
				}
				if w := s.Profiles[1].Wrapper; w.Type != TypeFastest || !w.SecureCore {
					t.Errorf("Expected secure-core FASTEST, got %+v", w)
				}
			},
		},
		{
			name:  "unknown types degrade",
			input: `{"profileList":[{"wrapper":{"type":"PREFERRED","serverId":"s9"}},{"wrapper":{"type":"CITY","country":"de"}},{"wrapper":{"type":"???"}},{"wrapper":{"type":"DIRECT","country":"fr"}}]}`,
			check: func(t *testing.T, s SavedProfiles) {
				want := []ServerWrapper{
					{Type: TypeDirect, ServerID: "s9"},
					{Type: TypeFastestInCountry, Country: "DE"},
					{Type: TypeFastest},
					{Type: TypeFastestInCountry, Country: "FR"},
				}
				if len(s.Profiles) != len(want) {
					t.Fatalf("Expected %d profiles, got %d", len(want), len(s.Profiles))
				}
				for i, w := range want {
					if s.Profiles[i].Wrapper != w {
						t.Errorf("Profile %d: expected %+v, got %+v", i, w, s.Profiles[i].Wrapper)
					}
					if s.Profiles[i].ID == uuid.Nil {
						t.Errorf("Profile %d: expected a generated id", i)
					}
				}
			},
		},
		{
			name:  "broken and duplicate records are skipped",
			input: `{"profileList":[{"id":"82c935d8-2968-4cc5-8ea7-8d73270efe57","name":"first","wrapper":{"type":"FASTEST"}},42,{"id":"82c935d8-2968-4cc5-8ea7-8d73270efe57","name":"dup","wrapper":{"type":"RANDOM"}},{"name":["bad"]}]}`,
			check: func(t *testing.T, s SavedProfiles) {
				if len(s.Profiles) != 1 || s.Profiles[0].Name != "first" {
					t.Errorf("Expected only the first record, got %+v", s.Profiles)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved, err := Decode([]byte(tt.input))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			tt.check(t, saved)
		})
	}
}

func TestLoadProfilesFallsBackToDefaults(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*memoryStore)
		writeBack bool
	}{
		{"nothing stored", func(*memoryStore) {}, true},
		{"garbage", func(s *memoryStore) { s.docs[StorageKey] = []byte("{not json") }, true},
		{"empty list", func(s *memoryStore) { s.docs[StorageKey] = []byte(`{"profileList":[]}`) }, true},
		{"only broken records", func(s *memoryStore) { s.docs[StorageKey] = []byte(`[1,2,3]`) }, true},
		{"read failure", func(s *memoryStore) { s.failRead = errDiskFull }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			tt.setup(store)
			defaults := DefaultProfiles()

			saved, writeBack := LoadProfiles(context.Background(), store, func() SavedProfiles { return defaults })
			if len(saved.Profiles) != len(defaults.Profiles) || saved.Profiles[0].ID != defaults.Profiles[0].ID {
				t.Errorf("Expected default profiles, got %+v", saved.Profiles)
			}
			if writeBack != tt.writeBack {
				t.Errorf("Expected writeBack=%v, got %v", tt.writeBack, writeBack)
			}
		})
	}
}

func TestDecodeEmptyInput(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrNoProfiles) {
		t.Errorf("Expected ErrNoProfiles, got %v", err)
	}
}

func TestLoadProfilesReportsMigratedDocuments(t *testing.T) {
	const id = "82c935d8-2968-4cc5-8ea7-8d73270efe57"
	tests := []struct {
		name      string
		doc       string
		writeBack bool
	}{
		{"current layout", `{"profileList":[{"id":"` + id + `","wrapper":{"type":"FASTEST"}}]}`, false},
		{"v2 layout", `{"profiles":[{"id":"` + id + `","wrapper":{"type":"FASTEST"}}]}`, true},
		{"v1 layout", `[{"id":"` + id + `","wrapper":{"type":"FASTEST"}}]`, true},
		{"missing id", `{"profileList":[{"wrapper":{"type":"FASTEST"}}]}`, true},
		{"malformed id", `{"profileList":[{"id":"nope","wrapper":{"type":"FASTEST"}}]}`, true},
		{"skipped record", `{"profileList":[{"id":"` + id + `","wrapper":{"type":"FASTEST"}},7]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			store.docs[StorageKey] = []byte(tt.doc)
			_, writeBack := LoadProfiles(context.Background(), store, func() SavedProfiles {
				t.Fatal("Defaults should not be used")
				return SavedProfiles{}
			})
			if writeBack != tt.writeBack {
				t.Errorf("Expected writeBack=%v, got %v", tt.writeBack, writeBack)
			}
		})
	}
}
