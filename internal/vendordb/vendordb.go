// Package vendordb resolves BLE device addresses to manufacturer names
// using a local copy of the IEEE OUI registry. The lookup is optional
// throughout the pipeline: if the registry cannot be loaded the run
// simply proceeds without vendor enrichment.
package vendordb

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// VendorDB maps 24-bit OUI prefixes (formatted "aa:bb:cc") to
// manufacturer names. Immutable after Load, safe for concurrent reads.
type VendorDB struct {
	vendors map[string]string
}

// Load parses an IEEE oui.txt registry dump. Only the "(hex)" lines are
// consulted; everything else in the file is ignored.
//
//	28-6F-B9   (hex)		Nokia Shanghai Bell Co., Ltd.
func Load(path string) (*VendorDB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vendor registry: %w", err)
	}
	defer f.Close()

	vendors := make(map[string]string)
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := scan.Text()
		idx := strings.Index(line, "(hex)")
		if idx < 0 {
			continue
		}

		prefix := strings.TrimSpace(line[:idx])
		vendor := strings.TrimSpace(line[idx+len("(hex)"):])
		if len(prefix) != 8 || vendor == "" {
			continue
		}
		key := strings.ToLower(strings.ReplaceAll(prefix, "-", ":"))
		vendors[key] = vendor
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vendor registry: %w", err)
	}
	if len(vendors) == 0 {
		return nil, fmt.Errorf("vendor registry %s contained no entries", path)
	}

	return &VendorDB{vendors: vendors}, nil
}

// Vendor returns the manufacturer for the address's OUI prefix, or ""
// when unknown. Randomised (private) BLE addresses will generally miss.
func (v *VendorDB) Vendor(address string) string {
	if len(address) < 8 {
		return ""
	}
	return v.vendors[strings.ToLower(address[:8])]
}

// Len reports the number of loaded OUI prefixes.
func (v *VendorDB) Len() int { return len(v.vendors) }
