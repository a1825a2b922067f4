// Package presence owns the signal-processing core of the people counter.
//
// Responsibilities: RSSI to distance conversion using the log-distance
// path-loss model, bounded per-device RSSI history with attrition for
// devices that stop advertising, and grouping of device distances into
// an estimated people count.
// Key types: Observation, Estimate, History, Grouper, Pipeline.
//
// No SQL/database or transport code is allowed in this package; the
// pipeline consumes observation batches and produces cycle results,
// nothing else.
package presence
