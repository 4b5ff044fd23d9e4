package control

import "strings"

// ConfigKey identifies one policy-entity variant: a name plus the profile
// tags the entity was declared under. Two keys denote the same underlying
// entity across profile variants whenever their names match; the profile
// lists drive activation filtering, not identity.
type ConfigKey struct {
	Name     string
	Profiles []string
}

// String renders a canonical form usable as a map key. Profile order is
// preserved as declared.
func (k ConfigKey) String() string {
	if len(k.Profiles) == 0 {
		return k.Name
	}
	return k.Name + "|" + strings.Join(k.Profiles, ",")
}

// declares reports whether the key lists the given profile tag.
func (k ConfigKey) declares(profile string) bool {
	for _, p := range k.Profiles {
		if p == profile {
			return true
		}
	}
	return false
}
