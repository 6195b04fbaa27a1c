package store

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCreds(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write creds: %v", err)
	}
	return path
}

func TestFileStoreResolve(t *testing.T) {
	path := writeCreds(t, `
access_token: tok-abc
profile:
  id: u1
  username: alice
  email: alice@example.com
`)
	id, err := NewFileStore(path).Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.UserID != "u1" || id.Username != "alice" || id.Token != "tok-abc" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestFileStoreUsernameFallback(t *testing.T) {
	path := writeCreds(t, `
access_token: tok-abc
profile:
  id: u1
  email: alice@example.com
`)
	id, err := NewFileStore(path).Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.Username != "alice@example.com" {
		t.Fatalf("username = %q, want email fallback", id.Username)
	}

	path = writeCreds(t, "access_token: tok-abc\n")
	id, err = NewFileStore(path).Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.Username != "Anonymous" {
		t.Fatalf("username = %q, want Anonymous", id.Username)
	}
}

// Resolve re-reads the file, so a token rotated between reconnects is
// picked up without restarting.
func TestFileStorePicksUpRotation(t *testing.T) {
	path := writeCreds(t, "access_token: tok-1\nprofile:\n  id: u1\n")
	s := NewFileStore(path)

	id, err := s.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.Token != "tok-1" {
		t.Fatalf("token = %q", id.Token)
	}

	if err := os.WriteFile(path, []byte("access_token: tok-2\nprofile:\n  id: u1\n"), 0o600); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	id, err = s.Resolve()
	if err != nil {
		t.Fatalf("resolve after rotation: %v", err)
	}
	if id.Token != "tok-2" {
		t.Fatalf("token = %q after rotation, want tok-2", id.Token)
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	if _, err := NewFileStore("/nonexistent/credentials.yaml").Resolve(); err == nil {
		t.Fatalf("missing file resolved")
	}
}
