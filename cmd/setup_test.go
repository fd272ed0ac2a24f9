package cmd

import (
	"os"
	"testing"
)

func TestWriteEnvFile(t *testing.T) {
	t.Chdir(t.TempDir())

	env := map[string]string{
		"TIKTOK_SCOPES":        "video.upload",
		"TIKTOK_CLIENT_KEY":    "key",
		"TIKTOK_REDIRECT_URI":  "http://localhost:3000/callback",
		"IGNORED":              "x",
		"TIKTOK_CLIENT_SECRET": "",
	}
	if err := writeEnvFile(env); err != nil {
		t.Fatalf("writeEnvFile() error = %v", err)
	}

	data, err := os.ReadFile(".env")
	if err != nil {
		t.Fatal(err)
	}
	want := "TIKTOK_CLIENT_KEY=key\nTIKTOK_REDIRECT_URI=http://localhost:3000/callback\nTIKTOK_SCOPES=video.upload\n"
	if string(data) != want {
		t.Errorf(".env = %q, want %q", data, want)
	}

	info, err := os.Stat(".env")
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf(".env mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestRequired(t *testing.T) {
	check := required("Client Key")
	if err := check("  "); err == nil {
		t.Error("required() accepted blank input")
	}
	if err := check("abc"); err != nil {
		t.Errorf("required() error = %v", err)
	}
}

func TestValidRedirectURI(t *testing.T) {
	if err := validRedirectURI(" http://localhost:3000/callback "); err != nil {
		t.Errorf("validRedirectURI() error = %v", err)
	}
	if err := validRedirectURI("callback"); err == nil {
		t.Error("validRedirectURI() accepted a URI without host")
	}
}
