package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"voicebot/internal/config"
	"voicebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewLogger_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "voicebot.log")
	log, closeLog, err := newLogger(config.GeneralConfig{LogLevel: "debug", LogFormat: "json", LogFile: path})
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	log.Debug("hello", "k", "v")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("expected JSON record in log file, got %q", data)
	}
}

func TestRegisterTools_AllThree(t *testing.T) {
	logger = testLogger()
	reg, err := registerTools(config.Defaults())
	if err != nil {
		t.Fatalf("registerTools: %v", err)
	}
	want := []string{"get_weather", "search_google", "search_music"}
	got := reg.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if p := musicProviders(reg); len(p) != 0 {
		t.Fatalf("expected no music providers without credentials, got %v", p)
	}
}

func TestPrintTranscript(t *testing.T) {
	color.NoColor = true
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printTranscript(&buf, "alice", []domain.TranscriptEntry{
		{ID: 1, Text: "Salut", Role: domain.RoleUser, Timestamp: ts},
		{ID: 2, Text: "Bonjour !", Role: domain.RoleBot, Timestamp: ts},
	})

	out := buf.String()
	if !strings.Contains(out, "2026-03-01 09:30:00 alice: Salut") {
		t.Fatalf("missing user line in %q", out)
	}
	if !strings.Contains(out, "bot: Bonjour !") {
		t.Fatalf("missing bot line in %q", out)
	}
}

func TestPrintTranscript_Empty(t *testing.T) {
	var buf bytes.Buffer
	printTranscript(&buf, "bob", nil)
	if !strings.Contains(buf.String(), "No transcript for bob") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
