package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/presence.report/internal/presence"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetRSSIAtOneMetre(); got != presence.DefaultRSSIAtOneMetre {
		t.Errorf("rssi_at_1m default: got %v", got)
	}
	if got := cfg.GetGrouper(); got != presence.GrouperChained {
		t.Errorf("grouper default: got %q", got)
	}
	if got := cfg.GetScanWindow(); got != 10*time.Second {
		t.Errorf("scan_window default: got %v", got)
	}
	if got := cfg.GetEvictAfterMisses(); got != 0 {
		t.Errorf("evict_after_misses default: got %d", got)
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	// the shipped defaults file and the code constants must agree, so a
	// run that falls back to built-ins behaves identically to one that
	// loaded the file
	cfg := MustLoadDefaultConfig()

	if got := cfg.GetRSSIAtOneMetre(); got != presence.DefaultRSSIAtOneMetre {
		t.Errorf("rssi_at_1m: got %v", got)
	}
	if got := cfg.GetPathLossExponent(); got != presence.DefaultPathLossExponent {
		t.Errorf("path_loss_exponent: got %v", got)
	}
	if got := cfg.GetMaxRangeMetres(); got != presence.DefaultMaxRangeMetres {
		t.Errorf("max_range_m: got %v", got)
	}
	if got := cfg.GetMinRSSI(); got != presence.DefaultMinRSSI {
		t.Errorf("min_rssi: got %v", got)
	}
	if got := cfg.GetHistoryDepth(); got != presence.DefaultHistoryDepth {
		t.Errorf("history_depth: got %d", got)
	}
	if got := cfg.GetGrouper(); got != presence.GrouperChained {
		t.Errorf("grouper: got %q", got)
	}
	p := cfg.GrouperParams()
	if p.ToleranceMetres != presence.DefaultChainToleranceMetres {
		t.Errorf("chain_tolerance_m: got %v", p.ToleranceMetres)
	}
	if p.EpsMetres != presence.DefaultDBSCANEpsMetres {
		t.Errorf("dbscan_eps_m: got %v", p.EpsMetres)
	}
	if p.MinSamples != presence.DefaultDBSCANMinSamples {
		t.Errorf("dbscan_min_samples: got %d", p.MinSamples)
	}
	if got := cfg.GetScanWindow(); got != 10*time.Second {
		t.Errorf("scan_window: got %v", got)
	}
	if got := cfg.GetScanInterval(); got != 2*time.Second {
		t.Errorf("scan_interval: got %v", got)
	}
}

func TestLoadTuningConfig_Partial(t *testing.T) {
	path := writeConfig(t, `{"grouper": "dbscan", "dbscan_eps_m": 0.25, "scan_interval": "5s"}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig: %v", err)
	}

	if got := cfg.GetGrouper(); got != presence.GrouperDBSCAN {
		t.Errorf("grouper: got %q", got)
	}
	if got := cfg.GrouperParams().EpsMetres; got != 0.25 {
		t.Errorf("eps: got %v", got)
	}
	if got := cfg.GetScanInterval(); got != 5*time.Second {
		t.Errorf("scan_interval: got %v", got)
	}
	// unset fields fall back to defaults
	if got := cfg.GetHistoryDepth(); got != presence.DefaultHistoryDepth {
		t.Errorf("history_depth fallback: got %d", got)
	}
}

func TestLoadTuningConfig_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"positive rssi":   `{"rssi_at_1m": 50}`,
		"zero path loss":  `{"path_loss_exponent": 0}`,
		"bad grouper":     `{"grouper": "kmeans"}`,
		"bad duration":    `{"scan_window": "soon"}`,
		"zero depth":      `{"history_depth": 0}`,
		"negative evict":  `{"evict_after_misses": -1}`,
		"zero min sample": `{"dbscan_min_samples": 0}`,
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadTuningConfig(writeConfig(t, contents)); err == nil {
				t.Errorf("expected %s to be rejected", name)
			}
		})
	}
}

func TestLoadTuningConfig_RejectsNonJSONExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("expected non-.json path to be rejected")
	}
}

func TestPipelineParamsAssembly(t *testing.T) {
	path := writeConfig(t, `{"min_rssi": -80, "max_range_m": 15, "evict_after_misses": 20}`)
	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	p := cfg.PipelineParams()
	if p.MinRSSI != -80 {
		t.Errorf("MinRSSI: got %v", p.MinRSSI)
	}
	if p.Converter.MaxRangeMetres != 15 {
		t.Errorf("MaxRangeMetres: got %v", p.Converter.MaxRangeMetres)
	}
	if p.EvictAfterMisses != 20 {
		t.Errorf("EvictAfterMisses: got %d", p.EvictAfterMisses)
	}
}
