package server

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/pipestream/pipestream/internal/config"
)

func TestMountRegistryLongestPrefixWins(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{ListenPort: 5000},
		Mounts: []config.MountConfig{
			{Name: "root", Prefix: "/", Root: "/srv/www"},
			{Name: "videos", Prefix: "/videos", Root: "/srv/videos"},
			{Name: "hd", Prefix: "/videos/hd", Root: "/srv/hd"},
		},
	}

	registry, err := NewMountRegistry(cfg, afero.NewMemMapFs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		path string
		name string
		rel  string
	}{
		{"/videos/hd/a.mp4", "hd", "/a.mp4"},
		{"/videos/sd/a.mp4", "videos", "/sd/a.mp4"},
		{"/videos", "videos", "/"},
		{"/videosx/a.mp4", "root", "/videosx/a.mp4"},
		{"/index.html", "root", "/index.html"},
		{"/videos/../../etc/passwd", "root", "/etc/passwd"},
	}
	for _, tc := range cases {
		route, rel, ok := registry.Lookup(tc.path)
		if !ok {
			t.Fatalf("%s: expected a match", tc.path)
		}
		if route.Config.Name != tc.name || rel != tc.rel {
			t.Fatalf("%s: got %s %s, want %s %s", tc.path, route.Config.Name, rel, tc.name, tc.rel)
		}
	}

	if got := len(registry.List()); got != 3 {
		t.Fatalf("expected 3 routes in list, got %d", got)
	}
	if registry.List()[0].Config.Name != "root" {
		t.Fatalf("list should keep config order")
	}
}

func TestMountRegistryWithoutRootMount(t *testing.T) {
	cfg := &config.Config{
		Mounts: []config.MountConfig{{Name: "videos", Prefix: "/videos/", Root: "/srv/videos"}},
	}
	registry, err := NewMountRegistry(cfg, afero.NewMemMapFs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, ok := registry.Lookup("/music/a.mp3"); ok {
		t.Fatalf("expected no match outside mounts")
	}
	if route, rel, ok := registry.Lookup("/videos/a.mp4"); !ok || route.Prefix != "/videos" || rel != "/a.mp4" {
		t.Fatalf("trailing slash prefix should be normalized, got %v %s", ok, rel)
	}
}

func TestMountRegistryRejectsDuplicatePrefixes(t *testing.T) {
	cfg := &config.Config{
		Mounts: []config.MountConfig{
			{Name: "a", Prefix: "/videos", Root: "/srv/a"},
			{Name: "b", Prefix: "/videos/", Root: "/srv/b"},
		},
	}
	if _, err := NewMountRegistry(cfg, afero.NewMemMapFs()); err == nil {
		t.Fatalf("expected duplicate prefix error")
	}
}

func TestMountRouteFsIsSandboxed(t *testing.T) {
	base := afero.NewMemMapFs()
	if err := afero.WriteFile(base, "/srv/videos/clip.mp4", []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := afero.WriteFile(base, "/srv/secret.txt", []byte("nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := &config.Config{
		Global: config.GlobalConfig{NoCache: true},
		Mounts: []config.MountConfig{{Name: "videos", Prefix: "/videos", Root: "/srv/videos"}},
	}
	registry, err := NewMountRegistry(cfg, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	route, rel, _ := registry.Lookup("/videos/clip.mp4")

	size, err := route.Sizes.Lookup(rel)
	if err != nil || size != 10 {
		t.Fatalf("expected size 10, got %d (%v)", size, err)
	}
	if route.Sizes.Enabled() {
		t.Fatalf("NoCache should disable the size cache")
	}
	if _, err := route.Fs.Stat("../secret.txt"); err == nil {
		t.Fatalf("expected sandbox to reject parent traversal")
	}
}
