package presence

// Observation is a single sighting of a broadcasting device during one scan
// window, as delivered by the scanning front end. RSSI is nil when the
// sniffer reported the device without a usable signal strength reading.
type Observation struct {
	Address string `json:"address"`
	RSSI    *int   `json:"rssi,omitempty"`
	Name    string `json:"name,omitempty"`
}

// DeviceReading is the per-device diagnostic emitted for every observation
// that survived the weak-signal filter in a cycle.
type DeviceReading struct {
	Address      string   `json:"address"`
	Name         string   `json:"name,omitempty"`
	Vendor       string   `json:"vendor,omitempty"`
	RawRSSI      int      `json:"raw_rssi"`
	SmoothedRSSI float64  `json:"smoothed_rssi"`
	Estimate     Estimate `json:"estimate"`
}

// CycleResult summarises one pipeline cycle.
type CycleResult struct {
	// People is the group count produced by the configured grouper.
	People int `json:"people"`
	// Devices holds diagnostics for every retained observation, in batch order.
	Devices []DeviceReading `json:"devices"`
	// Distances are the surviving distance estimates handed to the grouper.
	Distances []float64 `json:"distances"`
	// Groups are the distance groups the grouper produced, ascending.
	Groups [][]float64 `json:"groups,omitempty"`
	// DroppedMalformed counts observations skipped for a missing RSSI.
	DroppedMalformed int `json:"dropped_malformed"`
	// DroppedWeak counts observations rejected by the minimum-signal filter.
	DroppedWeak int `json:"dropped_weak"`
	// Evicted lists addresses removed from history this cycle, if eviction
	// is enabled.
	Evicted []string `json:"evicted,omitempty"`
}
