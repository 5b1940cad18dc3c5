package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestEncryptedFileStorage(t *testing.T) {
	tmpDir := t.TempDir()

	storage, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create encrypted storage: %v", err)
	}

	testData := []byte(`{"profile":"work","token":"ghp_example"}`)

	if err := storage.Save("work", testData); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	tokenFile := filepath.Join(tmpDir, "tokens", "work.enc")
	encryptedData, err := os.ReadFile(tokenFile)
	if err != nil {
		t.Fatalf("Failed to read encrypted file: %v", err)
	}
	if string(encryptedData) == string(testData) {
		t.Error("Data was not encrypted")
	}

	loaded, err := storage.Load("work")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(loaded) != string(testData) {
		t.Errorf("Loaded data doesn't match original. Got: %s, Want: %s", loaded, testData)
	}

	if err := storage.Delete("work"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if _, err := os.Stat(tokenFile); !os.IsNotExist(err) {
		t.Error("File was not deleted")
	}

	if _, err := storage.Load("work"); !errors.Is(err, ErrNoToken) {
		t.Errorf("Load after delete = %v, want ErrNoToken", err)
	}
	if err := storage.Delete("work"); !errors.Is(err, ErrNoToken) {
		t.Errorf("Delete after delete = %v, want ErrNoToken", err)
	}
}

func TestEncryptedFileStorage_KeyReused(t *testing.T) {
	tmpDir := t.TempDir()

	first, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Save("default", []byte("secret")); err != nil {
		t.Fatal(err)
	}

	second, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := second.Load("default")
	if err != nil {
		t.Fatalf("second storage could not decrypt: %v", err)
	}
	if string(loaded) != "secret" {
		t.Errorf("got %q, want %q", loaded, "secret")
	}
}

func TestEncryptedFileStorage_Tampered(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := storage.Save("default", []byte("secret")); err != nil {
		t.Fatal(err)
	}

	tokenFile := filepath.Join(tmpDir, "tokens", "default.enc")
	data, _ := os.ReadFile(tokenFile)
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(tokenFile, data, 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := storage.Load("default"); err == nil {
		t.Error("expected decryption failure for tampered file")
	}
}

func TestKeyringStorage(t *testing.T) {
	keyring.MockInit()
	storage := NewKeyringStorage("ghmirror-test")

	if _, err := storage.Load("default"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("Load of missing profile = %v, want ErrNoToken", err)
	}
	if err := storage.Save("default", []byte("payload")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := storage.Load("default")
	if err != nil || string(loaded) != "payload" {
		t.Fatalf("Load = %q, %v", loaded, err)
	}
	if err := storage.Delete("default"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if storage.Name() != "system-keyring" {
		t.Errorf("Name() = %q", storage.Name())
	}
}
