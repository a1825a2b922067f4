package scanmux

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/presence.report/internal/presence"
)

// Advertisement lines from the sniffer look like
//
//	ADV,aa:bb:cc:dd:ee:ff,-67,Some Name
//
// where the RSSI field may be empty when the radio could not measure one
// and the name field is optional. Anything that is not an ADV line (boot
// banners, command echoes) is ignored by the collector.
const advPrefix = "ADV,"

var ErrNotAdvertisement = fmt.Errorf("not an advertisement line")

// ParseAdvertisement parses one sniffer line into an Observation.
// Returns ErrNotAdvertisement for non-ADV lines so callers can skip them
// without logging noise.
func ParseAdvertisement(line string) (presence.Observation, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, advPrefix) {
		return presence.Observation{}, ErrNotAdvertisement
	}

	fields := strings.SplitN(strings.TrimPrefix(line, advPrefix), ",", 3)
	if len(fields) < 2 {
		return presence.Observation{}, fmt.Errorf("malformed advertisement %q: expected at least address and rssi", line)
	}

	address := strings.ToLower(strings.TrimSpace(fields[0]))
	if address == "" {
		return presence.Observation{}, fmt.Errorf("malformed advertisement %q: empty address", line)
	}

	obs := presence.Observation{Address: address}

	// an empty RSSI field is a valid sighting with no usable reading;
	// the pipeline classifies it as malformed and skips it
	if rssiField := strings.TrimSpace(fields[1]); rssiField != "" {
		rssi, err := strconv.Atoi(rssiField)
		if err == nil {
			obs.RSSI = &rssi
		}
		// non-numeric RSSI is treated the same as absent, not an error
	}

	if len(fields) == 3 {
		obs.Name = strings.TrimSpace(fields[2])
	}

	return obs, nil
}
