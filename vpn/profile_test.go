package vpn

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = "client\ndev tun\nremote vpn.example.com 1194\nauth-user-pass\n"

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newProfileManager(t *testing.T) *ProfileManager {
	t.Helper()
	pm, err := NewProfileManager(filepath.Join(t.TempDir(), "config"))
	if err != nil {
		t.Fatalf("NewProfileManager() error = %v", err)
	}
	return pm
}

func TestProfileManager_AddAndFind(t *testing.T) {
	pm := newProfileManager(t)
	src := writeConfig(t, "work.ovpn", sampleConfig)

	p := &Profile{Name: "work", ConfigPath: src, Username: "alice"}
	if err := pm.Add(p); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if len(p.ID) != 36 {
		t.Errorf("ID = %q, want a UUID", p.ID)
	}
	if p.ConfigPath == src || filepath.Dir(p.ConfigPath) != filepath.Join(pm.configDir, "configs") {
		t.Errorf("ConfigPath = %v, want a private copy", p.ConfigPath)
	}
	if p.Created.IsZero() {
		t.Error("Created should be set")
	}

	byName, err := pm.Find("work")
	if err != nil || byName.ID != p.ID {
		t.Errorf("Find(name) = %v, %v", byName, err)
	}
	byID, err := pm.Find(p.ID)
	if err != nil || byID.Name != "work" {
		t.Errorf("Find(id) = %v, %v", byID, err)
	}
	if _, err := pm.Find("missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Find(missing) error = %v", err)
	}

	if err := pm.Add(&Profile{Name: "work", ConfigPath: src}); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate Add() error = %v", err)
	}
}

func TestProfileManager_Persistence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config")
	pm, err := NewProfileManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	p := &Profile{Name: "work", ConfigPath: writeConfig(t, "work.conf", sampleConfig)}
	if err := pm.Add(p); err != nil {
		t.Fatal(err)
	}
	if err := pm.SetDisabled(p.ID, true); err != nil {
		t.Fatalf("SetDisabled() error = %v", err)
	}

	reloaded, err := NewProfileManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reloaded.Get(p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Disabled || got.Name != "work" {
		t.Errorf("reloaded profile = %+v", got)
	}
}

func TestProfileManager_Remove(t *testing.T) {
	pm := newProfileManager(t)
	p := &Profile{Name: "work", ConfigPath: writeConfig(t, "work.ovpn", sampleConfig)}
	if err := pm.Add(p); err != nil {
		t.Fatal(err)
	}

	if err := pm.Remove(p.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(p.ConfigPath); !os.IsNotExist(err) {
		t.Error("Remove() should delete the copied config")
	}
	if len(pm.List()) != 0 {
		t.Error("List() should be empty")
	}
	if err := pm.Remove(p.ID); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("second Remove() error = %v", err)
	}
}

func TestValidateConfigFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
	}{
		{"valid ovpn", "a.ovpn", sampleConfig, false},
		{"valid conf", "a.conf", "remote host\n", false},
		{"wrong extension", "a.txt", sampleConfig, true},
		{"no directives", "a.ovpn", "dev tun\n", true},
		{"commented out", "a.ovpn", "# client\n; remote host\ndev tun\n", true},
		{"only inside inline block", "a.ovpn", "dev tun\n<ca>\nremote\n</ca>\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigFile(writeConfig(t, tt.file, tt.content))
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfigFile() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := validateConfigFile(t.TempDir()); err == nil {
		t.Error("directories must be rejected")
	}
}

func TestDirectives(t *testing.T) {
	cfg := "# comment\nclient\n  remote vpn.example.com 1194 udp\n<tls-auth>\nkey-direction 1\n</tls-auth>\nverb 3\n"
	got := directives([]byte(cfg))

	for _, name := range []string{"client", "remote", "tls-auth", "verb"} {
		if !got[name] {
			t.Errorf("directives() missing %q", name)
		}
	}
	for _, name := range []string{"#", "comment", "key-direction", "/tls-auth"} {
		if got[name] {
			t.Errorf("directives() should not contain %q", name)
		}
	}
}

func TestProfileManager_LookupsReturnCopies(t *testing.T) {
	pm := newProfileManager(t)
	p := &Profile{Name: "work", ConfigPath: writeConfig(t, "work.ovpn", sampleConfig)}
	if err := pm.Add(p); err != nil {
		t.Fatal(err)
	}

	got, err := pm.Get(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	got.Name = "changed"
	pm.List()[0].Disabled = true

	fresh, _ := pm.Get(p.ID)
	if fresh.Name != "work" || fresh.Disabled {
		t.Errorf("stored profile changed without Update: %+v", fresh)
	}

	if err := pm.Update(got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := pm.GetByName("changed"); err != nil {
		t.Errorf("GetByName() after Update error = %v", err)
	}
	if err := pm.Update(&Profile{ID: "nope"}); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Update(unknown) error = %v", err)
	}
}

func TestProfile_Validate(t *testing.T) {
	if err := (&Profile{ConfigPath: "x"}).Validate(); err == nil {
		t.Error("missing name should fail")
	}
	if err := (&Profile{Name: "x"}).Validate(); err == nil {
		t.Error("missing config path should fail")
	}
}
