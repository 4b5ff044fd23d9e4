package control

import (
	"encoding/json"
	"os"
	"time"
)

// dump serializes the manager's observable state to the dump path,
// overwriting any previous dump. It runs in a reactor idle slot. A failure
// to open or write the file is logged and never propagated — diagnostics
// must not crash the control path.
func (m *Manager) dump() {
	zones := make(map[string]any, len(m.zones))
	for _, z := range m.zones {
		zones[z.Name] = z.Describe()
	}

	doc := map[string]any{
		"time":            time.Now().UTC().Format(time.RFC3339),
		"flight_recorder": m.rec.Entries(),
		"zones":           zones,
		"objects":         m.cache.DumpObjects(),
		"parameters":      m.params,
		"services":        m.cache.DumpServices(),
	}

	f, err := os.Create(m.dumpPath)
	if err != nil {
		m.log.Error("dump file open failed", "path", m.dumpPath, "error", err)
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		m.log.Error("dump write failed", "path", m.dumpPath, "error", err)
		return
	}

	m.log.Info("diagnostic dump written", "path", m.dumpPath)
}
