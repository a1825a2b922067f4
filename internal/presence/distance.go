package presence

import "math"

// Default calibration constants for the log-distance path-loss model.
// RSSIAtOneMetre is the signal strength expected one metre from the
// transmitter; PathLossExponent is 2 for open space and rises towards 4
// in cluttered indoor environments.
const (
	DefaultRSSIAtOneMetre   = -50.0
	DefaultPathLossExponent = 2.0
	DefaultMaxRangeMetres   = 5.0
)

// EstimateKind tags the outcome of a distance conversion.
type EstimateKind int

const (
	// EstimateOK means Metres holds a usable distance.
	EstimateOK EstimateKind = iota
	// EstimateOutOfRange means the computed distance exceeded the
	// configured maximum range and must not enter grouping.
	EstimateOutOfRange
	// EstimateMalformed means the reading had no usable RSSI.
	EstimateMalformed
)

// Estimate is the tagged result of an RSSI to distance conversion. Callers
// must check Kind (or OK) before using Metres so a missing estimate can
// never be mistaken for zero distance.
type Estimate struct {
	Kind   EstimateKind `json:"kind"`
	Metres float64      `json:"metres"`
}

// OK reports whether the estimate carries a usable distance.
func (e Estimate) OK() bool { return e.Kind == EstimateOK }

func (e Estimate) String() string {
	switch e.Kind {
	case EstimateOutOfRange:
		return "out-of-range"
	case EstimateMalformed:
		return "malformed"
	default:
		return "ok"
	}
}

// ConverterParams holds the calibration constants for distance conversion.
type ConverterParams struct {
	RSSIAtOneMetre   float64 // expected RSSI at 1 m, negative dBm
	PathLossExponent float64 // environment attenuation constant, > 0
	MaxRangeMetres   float64 // distances beyond this become OutOfRange
}

// DefaultConverterParams returns calibration defaults suitable for phone
// class BLE transmitters in an open room.
func DefaultConverterParams() ConverterParams {
	return ConverterParams{
		RSSIAtOneMetre:   DefaultRSSIAtOneMetre,
		PathLossExponent: DefaultPathLossExponent,
		MaxRangeMetres:   DefaultMaxRangeMetres,
	}
}

// Distance converts a (typically smoothed) RSSI value into a distance
// estimate using the log-distance path-loss model:
//
//	metres = 10 ^ ((rssiAt1m - rssi) / (10 * pathLossExponent))
//
// The conversion never panics: a non-finite input yields Malformed and a
// result beyond MaxRangeMetres yields OutOfRange. A non-negative input is
// also Malformed: real over-the-air readings are negative dBm, so zero or
// above only arises when the absence sentinel dominates a device's
// history, and such devices must not re-enter grouping as phantom
// close-range points.
func (p ConverterParams) Distance(rssi float64) Estimate {
	if math.IsNaN(rssi) || math.IsInf(rssi, 0) || rssi >= 0 {
		return Estimate{Kind: EstimateMalformed}
	}

	metres := math.Pow(10, (p.RSSIAtOneMetre-rssi)/(10*p.PathLossExponent))
	if math.IsNaN(metres) || math.IsInf(metres, 0) || metres > p.MaxRangeMetres {
		return Estimate{Kind: EstimateOutOfRange}
	}

	return Estimate{Kind: EstimateOK, Metres: metres}
}

// DistanceFromRaw converts a raw observation RSSI, treating a missing
// reading as Malformed rather than an error.
func (p ConverterParams) DistanceFromRaw(rssi *int) Estimate {
	if rssi == nil {
		return Estimate{Kind: EstimateMalformed}
	}
	return p.Distance(float64(*rssi))
}
