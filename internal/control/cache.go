package control

// Lookup is the interface the cache needs from the object bus. All calls are
// synchronous round trips; any of them may fail, and failures never
// propagate past the cache boundary.
type Lookup interface {
	// SubTree finds every object implementing iface below rootPath, to the
	// given depth (0 means unbounded): path → service → interfaces.
	SubTree(rootPath, iface string, depth int) (map[string]map[string][]string, error)

	// ManagedObjects bulk-fetches everything a service manages below an
	// object-manager path: path → interface → property → value.
	ManagedObjects(service, path string) (map[string]map[string]map[string]any, error)

	// Property fetches one property value from a service.
	Property(service, path, iface, property string) (any, error)

	// SetProperty writes one property value on a service.
	SetProperty(service, path, iface, property string, value any) error
}

// ObjectManagerInterface is the bus capability that marks a service as
// supporting bulk managed-object retrieval.
const ObjectManagerInterface = "bus.ObjectManager"

// serviceRecord is what the cache knows about one service at one path.
// Interfaces keep insertion order and are unique within the record.
type serviceRecord struct {
	owned      bool
	interfaces []string
}

func (r *serviceRecord) hasInterface(iface string) bool {
	for _, i := range r.interfaces {
		if i == iface {
			return true
		}
	}
	return false
}

func (r *serviceRecord) addInterface(iface string) {
	if !r.hasInterface(iface) {
		r.interfaces = append(r.interfaces, iface)
	}
}

// ObjectCache holds the last-known state of the object bus: property values
// (path → interface → property → value) and service ownership
// (path → service → owned flag plus offered interfaces).
//
// The cache populates itself lazily. A lookup miss triggers one bus-wide
// discovery for the interface in question, after which the answer comes from
// local state. Entries are never proactively expired; values are overwritten
// on refresh or erased when a refresh fails.
//
// Not safe for concurrent use: the cache is reactor-confined.
type ObjectCache struct {
	lookup Lookup
	depth  int
	log    Logger

	services map[string]map[string]*serviceRecord
	objects  map[string]map[string]map[string]any
}

// NewObjectCache creates an empty cache. depth bounds interface discovery
// (0 means unbounded). logger may be nil.
func NewObjectCache(lookup Lookup, depth int, logger Logger) *ObjectCache {
	if logger == nil {
		logger = noopLogger{}
	}
	return &ObjectCache{
		lookup:   lookup,
		depth:    depth,
		log:      logger,
		services: make(map[string]map[string]*serviceRecord),
		objects:  make(map[string]map[string]map[string]any),
	}
}

// findService returns the cached service offering iface at path, or "".
func (c *ObjectCache) findService(path, iface string) string {
	for service, rec := range c.services[path] {
		if rec.hasInterface(iface) {
			return service
		}
	}
	return ""
}

// discover runs a bus-wide lookup for iface and merges the results.
//
// New paths are added wholesale with owned defaulting to true; existing
// path/service pairs only gain previously unseen interfaces. Nothing is
// removed or replaced, so discoveries for different interfaces never clobber
// each other.
func (c *ObjectCache) discover(iface string) {
	tree, err := c.lookup.SubTree("/", iface, c.depth)
	if err != nil {
		c.log.Warn("interface discovery failed", "interface", iface, "error", err)
		return
	}

	for path, servs := range tree {
		cached := c.services[path]
		if cached == nil {
			cached = make(map[string]*serviceRecord)
			c.services[path] = cached
		}
		for service, interfaces := range servs {
			rec := cached[service]
			if rec == nil {
				rec = &serviceRecord{owned: true}
				cached[service] = rec
			}
			for _, i := range interfaces {
				rec.addInterface(i)
			}
		}
	}
}

// GetService returns the name of the service implementing iface at path.
// On a cache miss it performs one discovery pass and retries. Returns ""
// when the interface is served nowhere; never fails.
func (c *ObjectCache) GetService(path, iface string) string {
	if service := c.findService(path, iface); service != "" {
		return service
	}
	c.discover(iface)
	return c.findService(path, iface)
}

// GetPaths returns every cached path where service offers iface, after a
// discovery pass on a miss. The result may be empty.
func (c *ObjectCache) GetPaths(service, iface string) []string {
	paths := c.findPaths(service, iface)
	if len(paths) > 0 {
		return paths
	}
	c.discover(iface)
	return c.findPaths(service, iface)
}

func (c *ObjectCache) findPaths(service, iface string) []string {
	var paths []string
	for path, servs := range c.services {
		if rec := servs[service]; rec != nil && rec.hasInterface(iface) {
			paths = append(paths, path)
		}
	}
	return paths
}

// SetOwner records whether a service connection owns iface at path, and
// propagates the flag to every other cached path where the same service
// lists that interface. Ownership belongs to the service's connection, not
// to an individual object, so one sighting updates them all.
//
// The call is idempotent and creates the path/service record if absent.
func (c *ObjectCache) SetOwner(path, service, iface string, owned bool) {
	cached := c.services[path]
	if cached == nil {
		cached = make(map[string]*serviceRecord)
		c.services[path] = cached
	}
	rec := cached[service]
	if rec == nil {
		rec = &serviceRecord{}
		cached[service] = rec
	}
	rec.addInterface(iface)
	rec.owned = owned

	for otherPath, servs := range c.services {
		if otherPath == path {
			continue
		}
		if other := servs[service]; other != nil && other.hasInterface(iface) {
			other.owned = owned
		}
	}
}

// HasOwner reports whether some cached service offering iface at path is
// currently owned. Absence of the path, the service, or the interface means
// "not owned" — never an error.
func (c *ObjectCache) HasOwner(path, iface string) bool {
	for _, rec := range c.services[path] {
		if rec.hasInterface(iface) && rec.owned {
			return true
		}
	}
	return false
}

// AddObjects refreshes property values for the service behind (path, iface).
//
// When the service offers the object-manager capability somewhere in the
// cache, all of its managed objects are bulk-fetched and merged: existing
// properties are overwritten, new properties and paths inserted, nothing
// else touched. Otherwise a single direct fetch of exactly the requested
// property is attempted; a failure there is logged and leaves the cache
// unchanged.
func (c *ObjectCache) AddObjects(path, iface, property string) {
	service := c.GetService(path, iface)
	if service == "" {
		c.log.Debug("no service found for object",
			"path", path, "interface", iface)
		return
	}

	if managerPath := c.objectManagerPath(service); managerPath != "" {
		objects, err := c.lookup.ManagedObjects(service, managerPath)
		if err != nil {
			c.log.Warn("managed objects fetch failed",
				"service", service, "path", managerPath, "error", err)
			return
		}
		for objPath, interfaces := range objects {
			for objIface, props := range interfaces {
				for prop, value := range props {
					c.SetProperty(objPath, objIface, prop, value)
				}
			}
		}
		return
	}

	value, err := c.lookup.Property(service, path, iface, property)
	if err != nil {
		c.log.Warn("property fetch failed", "service", service,
			"path", path, "interface", iface, "property", property,
			"error", err)
		return
	}
	c.SetProperty(path, iface, property, value)
}

// objectManagerPath returns the cached path at which service exposes the
// object-manager capability, or "".
func (c *ObjectCache) objectManagerPath(service string) string {
	for path, servs := range c.services {
		if rec := servs[service]; rec != nil && rec.hasInterface(ObjectManagerInterface) {
			return path
		}
	}
	return ""
}

// GetProperty is a pure cache read; it never issues a bus call. The second
// return is false when the value was never written or has been erased.
func (c *ObjectCache) GetProperty(path, iface, property string) (any, bool) {
	props, ok := c.objects[path][iface]
	if !ok {
		return nil, false
	}
	value, ok := props[property]
	return value, ok
}

// SetProperty writes a property value into the cache. It does not touch the
// bus; refreshes and signal handlers call it after they have a value in hand.
func (c *ObjectCache) SetProperty(path, iface, property string, value any) {
	interfaces := c.objects[path]
	if interfaces == nil {
		interfaces = make(map[string]map[string]any)
		c.objects[path] = interfaces
	}
	props := interfaces[iface]
	if props == nil {
		props = make(map[string]any)
		interfaces[iface] = props
	}
	props[property] = value
}

// EraseProperty removes a cached value, reporting whether it was present.
// Used when a refresh fails, so callers see "absent" instead of a possibly
// wrong stale value.
func (c *ObjectCache) EraseProperty(path, iface, property string) bool {
	props, ok := c.objects[path][iface]
	if !ok {
		return false
	}
	if _, ok := props[property]; !ok {
		return false
	}
	delete(props, property)
	return true
}

// RefreshProperty re-reads one property from the bus and writes it through
// to the cache. On failure the stale entry is erased rather than left
// possibly wrong.
func (c *ObjectCache) RefreshProperty(service, path, iface, property string) {
	if service == "" {
		service = c.GetService(path, iface)
	}
	if service == "" {
		c.log.Debug("no service for refresh", "path", path, "interface", iface)
		c.EraseProperty(path, iface, property)
		return
	}

	value, err := c.lookup.Property(service, path, iface, property)
	if err != nil {
		c.log.Warn("refresh failed, erasing cached value",
			"path", path, "interface", iface, "property", property,
			"error", err)
		c.EraseProperty(path, iface, property)
		return
	}
	c.SetProperty(path, iface, property, value)
}

// DumpObjects returns a deep copy of the property tree for diagnostics.
func (c *ObjectCache) DumpObjects() map[string]map[string]map[string]any {
	out := make(map[string]map[string]map[string]any, len(c.objects))
	for path, interfaces := range c.objects {
		outIfaces := make(map[string]map[string]any, len(interfaces))
		for iface, props := range interfaces {
			outProps := make(map[string]any, len(props))
			for prop, value := range props {
				outProps[prop] = value
			}
			outIfaces[iface] = outProps
		}
		out[path] = outIfaces
	}
	return out
}

// ServiceDump is one service's entry in the diagnostic services tree.
type ServiceDump struct {
	Owned      bool     `json:"owned"`
	Interfaces []string `json:"interfaces"`
}

// DumpServices returns a copy of the ownership tree for diagnostics.
func (c *ObjectCache) DumpServices() map[string]map[string]ServiceDump {
	out := make(map[string]map[string]ServiceDump, len(c.services))
	for path, servs := range c.services {
		outServs := make(map[string]ServiceDump, len(servs))
		for service, rec := range servs {
			interfaces := make([]string, len(rec.interfaces))
			copy(interfaces, rec.interfaces)
			outServs[service] = ServiceDump{Owned: rec.owned, Interfaces: interfaces}
		}
		out[path] = outServs
	}
	return out
}
