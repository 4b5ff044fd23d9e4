package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteZoneTarget records a zone's commanded fan target.
//
// The write is non-blocking; points are batched and sent asynchronously.
func (c *Client) WriteZoneTarget(zone string, target float64) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"zone_target",
		map[string]string{"zone": zone},
		map[string]interface{}{"target": target},
		time.Now(),
	))
}

// WriteFanTach records a single tach sensor reading for a fan rotor,
// together with the target it was measured against.
func (c *Client) WriteFanTach(fan, sensor string, rpm, target float64) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"fan_tach",
		map[string]string{"fan": fan, "sensor": sensor},
		map[string]interface{}{"rpm": rpm, "target": target},
		time.Now(),
	))
}

// WriteFanHealth records a fan functional-state transition.
func (c *Client) WriteFanHealth(fan string, functional bool) {
	if !c.IsConnected() {
		return
	}

	value := 0.0
	if functional {
		value = 1.0
	}
	c.writeAPI.WritePoint(write.NewPoint(
		"fan_health",
		map[string]string{"fan": fan},
		map[string]interface{}{"functional": value},
		time.Now(),
	))
}
