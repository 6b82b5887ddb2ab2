package profiles

import (
	"github.com/google/uuid"
)

// Profile is a saved connection intent. Profiles are values: edits produce a
// new Profile with the same ID that replaces the old one in the store.
// Two profiles are the same profile iff their IDs are equal.
type Profile struct {
	ID        uuid.UUID
	Name      string
	GuestHole bool
	Wrapper   ServerWrapper
}

// NewProfile creates a profile with a fresh random identifier.
func NewProfile(name string, wrapper ServerWrapper) Profile {
	return ProfileWithID(name, wrapper, uuid.New())
}

func ProfileWithID(name string, wrapper ServerWrapper, id uuid.UUID) Profile {
	return Profile{ID: id, Name: name, Wrapper: wrapper}
}

func (p Profile) IsPreBaked() bool {
	return p.Wrapper.IsPreBaked()
}

func (p Profile) Country() string {
	return p.Wrapper.Country
}

// Same reports whether p and other identify the same profile.
func (p Profile) Same(other Profile) bool {
	return p.ID == other.ID
}

// DisplayName falls back to the wrapper description for unnamed profiles.
func (p Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Wrapper.String()
}
