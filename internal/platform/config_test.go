package platform

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestConfigSetAndGet(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("DB.Driver", "sqlite")

	val, ok := cfg.Get("db.driver")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "sqlite" {
		t.Errorf("Get() = %v, want sqlite", val)
	}

	if _, ok := cfg.Get("nonexistent"); ok {
		t.Error("expected key not to exist")
	}
}

func TestConfigSetDefaults(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("http.port", "9000")
	cfg.SetDefaults(map[string]any{
		"http.port": "8080",
		"log.level": "info",
	})

	if got := cfg.GetStringOrDef("http.port", ""); got != "9000" {
		t.Errorf("http.port = %q, want 9000", got)
	}
	if got := cfg.GetStringOrDef("log.level", ""); got != "info" {
		t.Errorf("log.level = %q, want info", got)
	}
}

func TestConfigMergeYAML(t *testing.T) {
	cfg := NewConfig()
	err := cfg.MergeYAML([]byte(`
db:
  driver: postgres
  maxconns: 5
cache:
  ttl: 1m
`))
	if err != nil {
		t.Fatalf("MergeYAML() error = %v", err)
	}

	want := []string{"cache.ttl", "db.driver", "db.maxconns"}
	if got := cfg.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if got := cfg.GetIntOrDef("db.maxconns", 0); got != 5 {
		t.Errorf("db.maxconns = %d, want 5", got)
	}

	if err := cfg.MergeYAML([]byte("db: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestConfigTypedGetters(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("int.string", " 42 ")
	cfg.Set("int.float", float64(7))
	cfg.Set("bool.string", "true")
	cfg.Set("bool.int", 0)
	cfg.Set("dur.string", "250ms")
	cfg.Set("dur.int", int64(time.Second))
	cfg.Set("bad", struct{}{})

	if v, ok, err := cfg.GetInt("int.string"); !ok || err != nil || v != 42 {
		t.Errorf("GetInt(int.string) = %d, %v, %v", v, ok, err)
	}
	if v, _, _ := cfg.GetInt("int.float"); v != 7 {
		t.Errorf("GetInt(int.float) = %d, want 7", v)
	}
	if _, ok, err := cfg.GetInt("bad"); !ok || err == nil {
		t.Error("expected conversion error for struct value")
	}
	if v, _, _ := cfg.GetBool("bool.string"); !v {
		t.Error("GetBool(bool.string) = false, want true")
	}
	if v, _, _ := cfg.GetBool("bool.int"); v {
		t.Error("GetBool(bool.int) = true, want false")
	}
	if v, _, _ := cfg.GetDuration("dur.string"); v != 250*time.Millisecond {
		t.Errorf("GetDuration(dur.string) = %v, want 250ms", v)
	}
	if v, _, _ := cfg.GetDuration("dur.int"); v != time.Second {
		t.Errorf("GetDuration(dur.int) = %v, want 1s", v)
	}
}

func TestConfigOrDefFallbacks(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("bad.int", "nope")
	cfg.Set("empty", "")

	if got := cfg.GetIntOrDef("bad.int", 3); got != 3 {
		t.Errorf("GetIntOrDef() = %d, want 3", got)
	}
	if got := cfg.GetStringOrDef("empty", "def"); got != "def" {
		t.Errorf("GetStringOrDef() = %q, want def", got)
	}
	if got := cfg.GetBoolOrDef("missing", true); !got {
		t.Error("GetBoolOrDef() = false, want true")
	}
	if got := cfg.GetDurationOrDef("missing", time.Minute); got != time.Minute {
		t.Errorf("GetDurationOrDef() = %v, want 1m", got)
	}
}

func TestConfigGetStringSlice(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{"comma string", "a:1, b:2 ,c:3", []string{"a:1", "b:2", "c:3"}},
		{"string slice", []string{"x", "y"}, []string{"x", "y"}},
		{"any slice", []any{"x", 2}, []string{"x", "2"}},
		{"scalar", 9, []string{"9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Set("list", tt.value)
			got, ok := cfg.GetStringSlice("list")
			if !ok {
				t.Fatal("expected key to exist")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetStringSlice() = %v, want %v", got, tt.want)
			}
		})
	}

	cfg := NewConfig()
	cfg.Set("blank", "  ")
	def := []string{"localhost:9092"}
	if got := cfg.GetStringSliceOrDef("blank", def); !reflect.DeepEqual(got, def) {
		t.Errorf("GetStringSliceOrDef() = %v, want %v", got, def)
	}
}

func TestConfigUnmarshal(t *testing.T) {
	type dbOptions struct {
		Driver   string        `koanf:"driver"`
		MaxConns int           `koanf:"maxconns"`
		Timeout  time.Duration `koanf:"timeout"`
	}

	cfg := NewConfig()
	cfg.Set("db.driver", "mysql")
	cfg.Set("db.maxconns", "12")
	cfg.Set("db.timeout", "3s")

	var opts dbOptions
	if err := cfg.Unmarshal("db", &opts); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	want := dbOptions{Driver: "mysql", MaxConns: 12, Timeout: 3 * time.Second}
	if opts != want {
		t.Errorf("Unmarshal() = %+v, want %+v", opts, want)
	}

	var empty dbOptions
	if err := cfg.Unmarshal("missing", &empty); err != nil {
		t.Fatalf("Unmarshal(missing) error = %v", err)
	}
	if empty != (dbOptions{}) {
		t.Errorf("Unmarshal(missing) = %+v, want zero value", empty)
	}

	if err := cfg.Unmarshal("db", nil); err == nil {
		t.Error("expected error for nil target")
	}
}

func TestNormalizePort(t *testing.T) {
	tests := []struct {
		port, def, want string
	}{
		{"8081", "", ":8081"},
		{":9000", "", ":9000"},
		{"127.0.0.1:7000", "", "127.0.0.1:7000"},
		{"", "50051", ":50051"},
		{"", "", ":8080"},
	}
	for _, tt := range tests {
		if got := NormalizePort(tt.port, tt.def); got != tt.want {
			t.Errorf("NormalizePort(%q, %q) = %q, want %q", tt.port, tt.def, got, tt.want)
		}
	}
}

func TestParseArgs(t *testing.T) {
	got := ParseArgs([]string{"serve", "--http.port=9090", "--db.driver", "sqlite", "--debug", "--log.level=debug"})
	want := map[string]any{
		"http.port": "9090",
		"db.driver": "sqlite",
		"debug":     "true",
		"log.level": "debug",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseArgs() = %v, want %v", got, want)
	}

	if got := ParseArgs([]string{"serve", "-v"}); got != nil {
		t.Errorf("ParseArgs() = %v, want nil", got)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	data := []byte("http:\n  port: \"7000\"\ndb:\n  driver: postgres\nlog:\n  level: error\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("CRUDTEST_DB_DRIVER", "mysql")

	cfg, err := LoadConfig("CRUDTEST", []string{"--config=" + path, "--log.level=debug"}, map[string]any{
		"http.port": "8080",
		"cache.ttl": "5m",
	})
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	checks := map[string]string{
		"http.port": "7000",
		"db.driver": "mysql",
		"log.level": "debug",
		"cache.ttl": "5m",
	}
	for key, want := range checks {
		if got := cfg.GetStringOrDef(key, ""); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("CRUDTEST", []string{"--config=/does/not/exist.yaml"}, nil)
	if err == nil {
		t.Error("expected error for missing config file")
	}
}
