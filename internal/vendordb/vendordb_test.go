package vendordb

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleRegistry = `
OUI/MA-L                                                    Organization
company_id                                                  Organization
                                                            Address

28-6F-B9   (hex)		Nokia Shanghai Bell Co., Ltd.
286FB9     (base 16)		Nokia Shanghai Bell Co., Ltd.
				No.388 Ning Qiao Road
				Shanghai  201206
				CN

F0-98-9D   (hex)		Apple, Inc.
F0989D     (base 16)		Apple, Inc.
				1 Infinite Loop
				Cupertino  CA  95014
				US
`

func writeRegistry(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oui.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndLookup(t *testing.T) {
	v, err := Load(writeRegistry(t, sampleRegistry))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.Len() != 2 {
		t.Errorf("expected 2 prefixes, got %d", v.Len())
	}

	if got := v.Vendor("f0:98:9d:12:34:56"); got != "Apple, Inc." {
		t.Errorf("lookup: got %q", got)
	}
	if got := v.Vendor("F0:98:9D:12:34:56"); got != "Apple, Inc." {
		t.Errorf("case-insensitive lookup: got %q", got)
	}
	if got := v.Vendor("00:00:00:00:00:00"); got != "" {
		t.Errorf("unknown prefix: got %q", got)
	}
	if got := v.Vendor("short"); got != "" {
		t.Errorf("short address: got %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected an error for a missing registry")
	}
}

func TestLoadEmptyRegistry(t *testing.T) {
	if _, err := Load(writeRegistry(t, "no hex lines here\n")); err == nil {
		t.Error("expected an error for a registry with no entries")
	}
}
