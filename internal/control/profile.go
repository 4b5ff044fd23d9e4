package control

import "reflect"

// Profile is a named, independently activatable configuration variant.
//
// A profile is active either statically (declared active in the profile
// file) or when a named cached property currently matches a configured
// value. Policy entities tagged with profiles are loaded only while one of
// their tags is active.
type Profile struct {
	Key    ConfigKey
	Static bool

	// Property match, used when Static is false.
	Path      string
	Interface string
	Property  string
	Value     any
}

// Active reports whether the profile is currently active. Property-matched
// profiles consult the cache only; an absent value means inactive.
func (p *Profile) Active(cache *ObjectCache) bool {
	if p.Static {
		return true
	}
	value, ok := cache.GetProperty(p.Path, p.Interface, p.Property)
	return ok && reflect.DeepEqual(value, p.Value)
}
