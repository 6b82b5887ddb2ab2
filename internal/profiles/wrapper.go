package profiles

import (
	"fmt"
	"strings"
)

// ProfileType is the closed set of server-selection rules a profile can use.
type ProfileType string

const (
	TypeFastest          ProfileType = "FASTEST"
	TypeRandom           ProfileType = "RANDOM"
	TypeFastestInCountry ProfileType = "FASTEST_IN_COUNTRY"
	TypeRandomInCountry  ProfileType = "RANDOM_IN_COUNTRY"
	TypeDirect           ProfileType = "DIRECT"
)

// ServerWrapper describes how a profile picks its server. Country is set for
// the *_IN_COUNTRY types and ServerID for TypeDirect. SecureCore selects the
// secure-core variant of any type.
type ServerWrapper struct {
	Type       ProfileType
	Country    string
	SecureCore bool
	ServerID   string
}

func MakeFastest() ServerWrapper {
	return ServerWrapper{Type: TypeFastest}
}

func MakeRandom() ServerWrapper {
	return ServerWrapper{Type: TypeRandom}
}

func MakeFastestForCountry(country string) ServerWrapper {
	return ServerWrapper{Type: TypeFastestInCountry, Country: normalizeCountry(country)}
}

func MakeRandomForCountry(country string) ServerWrapper {
	return ServerWrapper{Type: TypeRandomInCountry, Country: normalizeCountry(country)}
}

func MakeWithServer(serverID string) ServerWrapper {
	return ServerWrapper{Type: TypeDirect, ServerID: serverID}
}

// SecureCoreVariant returns a copy of w routed through secure-core servers.
func (w ServerWrapper) SecureCoreVariant() ServerWrapper {
	w.SecureCore = true
	return w
}

// IsPreBaked reports whether w is one of the built-in generic selectors.
func (w ServerWrapper) IsPreBaked() bool {
	switch w.Type {
	case TypeFastest, TypeRandom:
		return true
	case TypeFastestInCountry, TypeRandomInCountry, TypeDirect:
		return false
	default:
		return false
	}
}

// Validate checks that the fields required by w.Type are present.
func (w ServerWrapper) Validate() error {
	switch w.Type {
	case TypeFastest, TypeRandom:
		return nil
	case TypeFastestInCountry, TypeRandomInCountry:
		if w.Country == "" {
			return fmt.Errorf("%s requires a country", w.Type)
		}
		return nil
	case TypeDirect:
		if w.ServerID == "" {
			return fmt.Errorf("%s requires a server id", w.Type)
		}
		return nil
	default:
		return fmt.Errorf("unknown profile type %q", w.Type)
	}
}

func (w ServerWrapper) String() string {
	var s string
	switch w.Type {
	case TypeFastestInCountry, TypeRandomInCountry:
		s = fmt.Sprintf("%s(%s)", w.Type, w.Country)
	case TypeDirect:
		s = fmt.Sprintf("%s(%s)", w.Type, w.ServerID)
	default:
		s = string(w.Type)
	}
	if w.SecureCore {
		s += "+SC"
	}
	return s
}

// ParseProfileType accepts current and legacy type names. The second result
// is true when the legacy name implied the secure-core variant.
func ParseProfileType(name string) (ProfileType, bool, bool) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if t, ok := profileTypeNames[key]; ok {
		return t.typ, t.secureCore, true
	}
	return "", false, false
}

type namedType struct {
	typ        ProfileType
	secureCore bool
}

var profileTypeNames = map[string]namedType{
	"FASTEST":                        {TypeFastest, false},
	"RANDOM":                         {TypeRandom, false},
	"FASTEST_IN_COUNTRY":             {TypeFastestInCountry, false},
	"RANDOM_IN_COUNTRY":              {TypeRandomInCountry, false},
	"DIRECT":                         {TypeDirect, false},
	"SERVER":                         {TypeDirect, false},
	"SPECIFIC_SERVER":                {TypeDirect, false},
	"FASTEST_SECURE_CORE":            {TypeFastest, true},
	"RANDOM_SECURE_CORE":             {TypeRandom, true},
	"FASTEST_IN_COUNTRY_SECURE_CORE": {TypeFastestInCountry, true},
}

func normalizeCountry(cc string) string {
	return strings.ToUpper(strings.TrimSpace(cc))
}
