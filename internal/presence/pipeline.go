package presence

// Enricher annotates a device address with its manufacturer name.
// A nil Enricher on the pipeline disables enrichment entirely.
type Enricher interface {
	// Vendor returns the manufacturer for the address, or "" when unknown.
	Vendor(address string) string
}

// DefaultMinRSSI is the weakest raw reading allowed into history.
// Anything quieter is treated as an unreliable reflection and dropped
// before it can pollute the per-device average.
const DefaultMinRSSI = -90.0

// PipelineParams configures a Pipeline.
type PipelineParams struct {
	MinRSSI          float64 // weak-signal floor in dBm applied to raw readings
	Converter        ConverterParams
	HistoryDepth     int
	EvictAfterMisses int // 0 disables address eviction
}

// DefaultPipelineParams returns pipeline defaults matching the converter
// and history defaults.
func DefaultPipelineParams() PipelineParams {
	return PipelineParams{
		MinRSSI:      DefaultMinRSSI,
		Converter:    DefaultConverterParams(),
		HistoryDepth: DefaultHistoryDepth,
	}
}

// Pipeline composes the history store, distance converter, and the
// configured grouper into the per-cycle estimation flow. It exclusively
// owns its History for the lifetime of the run and must only be driven
// from a single goroutine.
type Pipeline struct {
	params   PipelineParams
	grouper  Grouper
	history  *History
	enricher Enricher
}

// NewPipeline creates a pipeline with a fresh history store. enricher may
// be nil.
func NewPipeline(params PipelineParams, grouper Grouper, enricher Enricher) *Pipeline {
	return &Pipeline{
		params:   params,
		grouper:  grouper,
		history:  NewHistory(params.HistoryDepth, params.EvictAfterMisses),
		enricher: enricher,
	}
}

// Grouper returns the active grouping strategy.
func (p *Pipeline) Grouper() Grouper { return p.grouper }

// History exposes the pipeline's history store for diagnostics.
func (p *Pipeline) History() *History { return p.history }

// Cycle runs one estimation pass over a scan batch:
//
//  1. drop observations with no RSSI (malformed) or below the
//     weak-signal floor, before they touch history;
//  2. record each retained reading, smooth it, and convert to distance;
//  3. mark every tracked-but-unseen address absent so it decays;
//  4. group the surviving distances into a people count.
//
// An empty batch is a normal cycle: everything decays and the count is 0.
func (p *Pipeline) Cycle(batch []Observation) CycleResult {
	var result CycleResult

	seen := make(map[string]struct{}, len(batch))
	for _, obs := range batch {
		if obs.RSSI == nil {
			result.DroppedMalformed++
			continue
		}
		raw := float64(*obs.RSSI)
		if raw < p.params.MinRSSI {
			result.DroppedWeak++
			continue
		}

		seen[obs.Address] = struct{}{}
		smoothed := p.history.RecordSample(obs.Address, raw)
		estimate := p.params.Converter.Distance(smoothed)

		reading := DeviceReading{
			Address:      obs.Address,
			Name:         obs.Name,
			RawRSSI:      *obs.RSSI,
			SmoothedRSSI: smoothed,
			Estimate:     estimate,
		}
		if p.enricher != nil {
			reading.Vendor = p.enricher.Vendor(obs.Address)
		}
		result.Devices = append(result.Devices, reading)

		if estimate.OK() {
			result.Distances = append(result.Distances, estimate.Metres)
		}
	}

	result.Evicted = p.history.MarkAbsent(seen)

	grouped := p.grouper.Group(result.Distances)
	result.People = grouped.People
	result.Groups = grouped.Groups

	return result
}
