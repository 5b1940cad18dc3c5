package auth

import (
	"errors"
	"testing"

	"github.com/dl-alexandre/ghmirror/internal/utils"
	"github.com/zalando/go-keyring"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	keyring.MockInit()
	t.Setenv(utils.GitHubTokenEnv, "")
	return NewManager(t.TempDir())
}

func TestManager_UsesKeyringWhenAvailable(t *testing.T) {
	mgr := newTestManager(t)
	if !mgr.UseKeyring() {
		t.Fatal("expected keyring storage with mock keyring")
	}
	if mgr.GetStorageBackend() != "system-keyring" {
		t.Errorf("backend = %q", mgr.GetStorageBackend())
	}
	if mgr.GetStorageWarning() != "" {
		t.Errorf("unexpected warning: %q", mgr.GetStorageWarning())
	}
}

func TestManager_ForceEncryptedFile(t *testing.T) {
	keyring.MockInit()
	mgr := NewManagerWithOptions(t.TempDir(), ManagerOptions{ForceEncryptedFile: true})
	if mgr.UseKeyring() {
		t.Fatal("expected file storage")
	}
	if mgr.GetStorageBackend() != "encrypted-file" {
		t.Errorf("backend = %q", mgr.GetStorageBackend())
	}

	if err := mgr.SaveToken("ci", "ghp_filetoken"); err != nil {
		t.Fatal(err)
	}
	stored, err := mgr.LoadToken("ci")
	if err != nil || stored.Token != "ghp_filetoken" {
		t.Fatalf("LoadToken = %+v, %v", stored, err)
	}
}

func TestManager_TokenLifecycle(t *testing.T) {
	mgr := newTestManager(t)

	if err := mgr.SaveToken("work", "  ghp_worktoken\n"); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	if err := mgr.SaveToken("default", "ghp_default"); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	stored, err := mgr.LoadToken("work")
	if err != nil {
		t.Fatalf("LoadToken failed: %v", err)
	}
	if stored.Token != "ghp_worktoken" {
		t.Errorf("token = %q, want trimmed value", stored.Token)
	}
	if stored.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	profiles, err := mgr.ListProfiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 2 || profiles[0] != "default" || profiles[1] != "work" {
		t.Errorf("profiles = %v", profiles)
	}

	if err := mgr.DeleteToken("work"); err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	if _, err := mgr.LoadToken("work"); !errors.Is(err, ErrNoToken) {
		t.Errorf("LoadToken after delete = %v, want ErrNoToken", err)
	}
	profiles, _ = mgr.ListProfiles()
	if len(profiles) != 1 || profiles[0] != "default" {
		t.Errorf("profiles after delete = %v", profiles)
	}

	if err := mgr.DeleteToken("work"); !errors.Is(err, ErrNoToken) {
		t.Errorf("second delete = %v, want ErrNoToken", err)
	}
}

func TestManager_SaveEmptyToken(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.SaveToken("default", "   "); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestManager_ResolveToken(t *testing.T) {
	mgr := newTestManager(t)

	token, source, err := mgr.ResolveToken("", "default")
	if err != nil || token != "" || source != SourceNone {
		t.Fatalf("anonymous resolve = %q, %q, %v", token, source, err)
	}

	if err := mgr.SaveToken("default", "ghp_stored"); err != nil {
		t.Fatal(err)
	}
	token, source, _ = mgr.ResolveToken("", "default")
	if token != "ghp_stored" || source != SourceStorage {
		t.Errorf("stored resolve = %q, %q", token, source)
	}

	t.Setenv(utils.GitHubTokenEnv, "ghp_env")
	token, source, _ = mgr.ResolveToken("", "default")
	if token != "ghp_env" || source != SourceEnv {
		t.Errorf("env resolve = %q, %q", token, source)
	}

	token, source, _ = mgr.ResolveToken("ghp_flag", "default")
	if token != "ghp_flag" || source != SourceFlag {
		t.Errorf("flag resolve = %q, %q", token, source)
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "*****"},
		{"ghp_abcdefgh1234", "ghp_********1234"},
	}
	for _, tt := range tests {
		if got := MaskToken(tt.in); got != tt.want {
			t.Errorf("MaskToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
