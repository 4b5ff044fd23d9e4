package control

// Group is a named set of monitored object paths sharing one
// interface/property pair. Group values feed actions; refreshing a group
// pulls current values from the bus into the cache.
type Group struct {
	Name      string
	Service   string
	Interface string
	Property  string
	Members   []string
}

// RefreshGroup re-reads every member's property from the bus into the
// cache. Members that cannot be read have their stale cached values erased;
// the refresh itself never fails.
func (m *Manager) RefreshGroup(g Group) {
	for _, path := range g.Members {
		m.cache.RefreshProperty(g.Service, path, g.Interface, g.Property)
	}
}
