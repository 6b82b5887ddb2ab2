package profiles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"vpnprofile/internal/logger"

	"github.com/google/uuid"
)

// StorageKey is the document key the saved profile list is stored under.
const StorageKey = "SavedProfilesV3"

// ErrNoProfiles is returned by Decode when data holds no usable profile.
var ErrNoProfiles = errors.New("no usable profiles")

// SavedProfiles is the ordered list of profiles; order is display order.
type SavedProfiles struct {
	Profiles []Profile
}

// DefaultProfiles builds the built-in profile set: fastest, random and one
// fastest-in-country shortcut per entry of countries.
func DefaultProfiles(countries ...string) SavedProfiles {
	list := []Profile{
		NewProfile("fastest", MakeFastest()),
		NewProfile("random", MakeRandom()),
	}
	for _, cc := range countries {
		w := MakeFastestForCountry(cc)
		if w.Country == "" {
			continue
		}
		list = append(list, NewProfile(w.Country, w))
	}
	return SavedProfiles{Profiles: list}
}

type savedProfilesRecord struct {
	ProfileList []profileRecord `json:"profileList"`
}

type profileRecord struct {
	ID                 string        `json:"id"`
	IsGuestHoleProfile bool          `json:"isGuestHoleProfile"`
	Name               string        `json:"name"`
	Wrapper            wrapperRecord `json:"wrapper"`
}

type wrapperRecord struct {
	Type              string `json:"type"`
	Country           string `json:"country"`
	SecureCoreCountry bool   `json:"secureCoreCountry"`
	ServerID          string `json:"serverId"`
}

// Encode serializes s in the current storage format.
func (s SavedProfiles) Encode() ([]byte, error) {
	rec := savedProfilesRecord{ProfileList: make([]profileRecord, 0, len(s.Profiles))}
	for _, p := range s.Profiles {
		rec.ProfileList = append(rec.ProfileList, profileRecord{
			ID:                 p.ID.String(),
			IsGuestHoleProfile: p.GuestHole,
			Name:               p.Name,
			Wrapper: wrapperRecord{
				Type:              string(p.Wrapper.Type),
				Country:           p.Wrapper.Country,
				SecureCoreCountry: p.Wrapper.SecureCore,
				ServerID:          p.Wrapper.ServerID,
			},
		})
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode profiles: %w", err)
	}
	return data, nil
}

// Decode parses the current format as well as older layouts:
// {"profiles":[...]} and a bare array of records. Broken records are skipped,
// missing ids are regenerated and duplicate ids keep the first occurrence.
func Decode(data []byte) (SavedProfiles, error) {
	saved, _, err := decode(data)
	return saved, err
}

// decode also reports whether the result differs from what is stored: an
// older layout, a skipped record or a regenerated id.
func decode(data []byte) (SavedProfiles, bool, error) {
	raw, legacy, err := splitRecords(data)
	if err != nil {
		return SavedProfiles{}, false, err
	}
	changed := legacy

	log := logger.For("profiles")
	seen := make(map[uuid.UUID]bool, len(raw))
	var list []Profile
	for i, r := range raw {
		var rec profileRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			log.Warnf("Skipping saved profile #%d: %v", i, err)
			changed = true
			continue
		}
		p, regenerated := rec.toProfile()
		if seen[p.ID] {
			log.Warnf("Skipping saved profile #%d: duplicate id %s", i, p.ID)
			changed = true
			continue
		}
		changed = changed || regenerated
		seen[p.ID] = true
		list = append(list, p)
	}

	if len(list) == 0 {
		return SavedProfiles{}, false, ErrNoProfiles
	}
	return SavedProfiles{Profiles: list}, changed, nil
}

// splitRecords returns the raw profile records and whether data uses one of
// the older layouts.
func splitRecords(data []byte) ([]json.RawMessage, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false, ErrNoProfiles
	}

	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, false, fmt.Errorf("decode profile array: %w", err)
		}
		return list, true, nil
	}

	var doc struct {
		ProfileList []json.RawMessage `json:"profileList"`
		Profiles    []json.RawMessage `json:"profiles"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, false, fmt.Errorf("decode profile document: %w", err)
	}
	if doc.ProfileList != nil {
		return doc.ProfileList, false, nil
	}
	return doc.Profiles, true, nil
}

// toProfile reports whether the record's id had to be regenerated.
func (r profileRecord) toProfile() (Profile, bool) {
	id, err := uuid.Parse(r.ID)
	regenerated := err != nil || id == uuid.Nil
	if regenerated {
		id = uuid.New()
	}
	return Profile{
		ID:        id,
		Name:      r.Name,
		GuestHole: r.IsGuestHoleProfile,
		Wrapper:   r.Wrapper.toWrapper(),
	}, regenerated
}

// toWrapper maps a stored wrapper onto the closed set of types, degrading
// to the closest valid selector when the record is incomplete or unknown.
func (r wrapperRecord) toWrapper() ServerWrapper {
	w := ServerWrapper{
		Country:    normalizeCountry(r.Country),
		SecureCore: r.SecureCoreCountry,
		ServerID:   r.ServerID,
	}

	typ, secureCore, ok := ParseProfileType(r.Type)
	if !ok {
		switch {
		case w.ServerID != "":
			typ = TypeDirect
		case w.Country != "":
			typ = TypeFastestInCountry
		default:
			typ = TypeFastest
		}
		logger.For("profiles").Debugf("Mapped unknown profile type %q to %s", r.Type, typ)
	}
	w.Type = typ
	w.SecureCore = w.SecureCore || secureCore

	if err := w.Validate(); err != nil {
		switch w.Type {
		case TypeDirect:
			if w.Country != "" {
				w.Type = TypeFastestInCountry
			} else {
				w.Type = TypeFastest
			}
		case TypeFastestInCountry:
			w.Type = TypeFastest
		case TypeRandomInCountry:
			w.Type = TypeRandom
		}
	}
	return w
}

// DocumentStore is the durable storage the profile list is written to.
type DocumentStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// LoadProfiles reads the saved profile list, falling back to defaults when
// nothing is stored or the stored document is unusable. The second result
// is true when the returned list should be written back so ids stay stable
// across restarts: defaults for an empty store, a migrated layout or
// regenerated ids.
func LoadProfiles(ctx context.Context, store DocumentStore, defaults func() SavedProfiles) (SavedProfiles, bool) {
	log := logger.For("profiles")

	data, ok, err := store.Get(ctx, StorageKey)
	if err != nil {
		// storage may still hold a good list, so do not overwrite it
		log.Warnf("Failed to read saved profiles, using defaults: %v", err)
		return defaults(), false
	}
	if !ok {
		log.Debug("No saved profiles, using defaults")
		return defaults(), true
	}

	saved, changed, err := decode(data)
	if err != nil {
		log.Warnf("Saved profiles are unreadable, using defaults: %v", err)
		return defaults(), true
	}
	return saved, changed
}
