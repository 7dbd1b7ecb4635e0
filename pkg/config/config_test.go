package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ibrahimkhairy/macroplace/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseGlobal(t *testing.T) {
	path := writeFile(t, "global.toml", `
[halo]
x = 2.0
y = 3.0

[channel]
x = 1.0
y = 1.5

[fence]
lx = 0.0
ly = 0.0
ux = 500.0
uy = 400.0
`)
	g, err := ParseGlobal(path)
	if err != nil {
		t.Fatalf("ParseGlobal: %v", err)
	}
	if g.HaloX != 2 || g.HaloY != 3 || g.ChannelX != 1 || g.ChannelY != 1.5 {
		t.Errorf("spacing = %+v", g)
	}
	if g.Fence == nil || g.Fence.Ux != 500 || g.Fence.Uy != 400 {
		t.Errorf("fence = %+v, want (0,0)-(500,400)", g.Fence)
	}
}

func TestParseGlobalDefaults(t *testing.T) {
	g, err := ParseGlobal(writeFile(t, "empty.toml", ""))
	if err != nil {
		t.Fatalf("ParseGlobal: %v", err)
	}
	if g.HaloX != 0 || g.Fence != nil {
		t.Errorf("empty config should yield zero defaults and no fence, got %+v", g)
	}
}

func TestParseGlobalErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.Code
	}{
		{"NegativeHalo", "[halo]\nx = -1.0\ny = 0.0\n", errors.ErrCodeConfig},
		{"NegativeChannel", "[channel]\nx = 0.0\ny = -0.5\n", errors.ErrCodeConfig},
		{"InvertedFence", "[fence]\nlx = 10.0\nly = 0.0\nux = 5.0\nuy = 20.0\n", errors.ErrCodeConfig},
		{"BadTOML", "[halo\n", errors.ErrCodeConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGlobal(writeFile(t, "bad.toml", tt.content))
			if !errors.Is(err, tt.code) {
				t.Errorf("got %v, want code %s", err, tt.code)
			}
		})
	}

	if _, err := ParseGlobal(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file: got %v, want FILE_NOT_FOUND", err)
	}
}

func TestParseLocal(t *testing.T) {
	path := writeFile(t, "local.toml", `
[[macro]]
name = "ram0"
halo_x = 4.0
channel_y = 2.0

[[macro]]
name = "ram1"
halo_y = 1.0
`)
	locals, err := ParseLocal(path)
	if err != nil {
		t.Fatalf("ParseLocal: %v", err)
	}
	if len(locals) != 2 {
		t.Fatalf("entry count = %d, want 2", len(locals))
	}

	ram0 := locals["ram0"]
	if ram0.HaloX == nil || *ram0.HaloX != 4 {
		t.Errorf("ram0 halo_x = %v, want 4", ram0.HaloX)
	}
	if ram0.HaloY != nil {
		t.Error("ram0 halo_y should be absent")
	}
	if ram0.ChannelY == nil || *ram0.ChannelY != 2 {
		t.Errorf("ram0 channel_y = %v, want 2", ram0.ChannelY)
	}
}

func TestParseLocalErrors(t *testing.T) {
	if _, err := ParseLocal(writeFile(t, "l.toml", "[[macro]]\nhalo_x = 1.0\n")); !errors.Is(err, errors.ErrCodeConfig) {
		t.Errorf("nameless entry: got %v, want CONFIG_ERROR", err)
	}
	dup := `
[[macro]]
name = "ram0"

[[macro]]
name = "ram0"
`
	if _, err := ParseLocal(writeFile(t, "dup.toml", dup)); !errors.Is(err, errors.ErrCodeConfig) {
		t.Errorf("duplicate entry: got %v, want CONFIG_ERROR", err)
	}
}
