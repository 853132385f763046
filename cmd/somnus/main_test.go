package main

import (
	"os"
	"strings"
	"testing"
)

func TestBuildOverrides(t *testing.T) {
	origPort := *serverPort
	origLevel := *logLevel
	origStorage := *storageType
	origDebug := *debugMode
	defer func() {
		*serverPort = origPort
		*logLevel = origLevel
		*storageType = origStorage
		*debugMode = origDebug
	}()

	*serverPort = 0
	*logLevel = ""
	*storageType = ""
	*debugMode = false

	if got := buildOverrides(); len(got) != 0 {
		t.Errorf("expected empty overrides, got %d items", len(got))
	}

	*serverPort = 9090
	*logLevel = "debug"
	*storageType = "memory"
	*debugMode = true

	overrides := buildOverrides()
	if len(overrides) != 4 {
		t.Errorf("expected 4 overrides, got %d", len(overrides))
	}
	if overrides["server.port"] != 9090 {
		t.Errorf("expected server.port=9090, got %v", overrides["server.port"])
	}
	if overrides["log.level"] != "debug" {
		t.Errorf("expected log.level=debug, got %v", overrides["log.level"])
	}
	if overrides["storage.type"] != "memory" {
		t.Errorf("expected storage.type=memory, got %v", overrides["storage.type"])
	}
	if overrides["app.debug"] != true {
		t.Errorf("expected app.debug=true, got %v", overrides["app.debug"])
	}
}

func TestPrintVersion(t *testing.T) {
	output := captureStdout(t, printVersion)

	for _, expected := range []string{"Somnus", "Version:", "Build Time:", "Git Commit:", "Go Version:"} {
		if !strings.Contains(output, expected) {
			t.Errorf("expected output to contain %q, got: %s", expected, output)
		}
	}
}

func TestPrintHelp(t *testing.T) {
	output := captureStdout(t, printHelp)

	for _, expected := range []string{"Somnus", "Usage:", "Options:", "Examples:"} {
		if !strings.Contains(output, expected) {
			t.Errorf("expected output to contain %q, got: %s", expected, output)
		}
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout

	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	return string(buf[:n])
}
