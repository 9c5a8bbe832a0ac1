package download_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adamwoolhether/fetcher/client/download"
)

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	path, err := download.Save(t.Context(), []byte("hello"), "report.csv", dir, nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if exp := filepath.Join(dir, "report.csv"); path != exp {
		t.Errorf("exp %q, got %q", exp, path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("exp %q, got %q", "hello", got)
	}
}

func TestSave_LargerThanOneChunk(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 10<<10)

	path, err := download.Save(t.Context(), data, "big.bin", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("exp %d bytes written intact, got %d", len(data), len(got))
	}
}

func TestFilename(t *testing.T) {
	now := time.UnixMilli(42)

	testCases := map[string]struct {
		name string
		exp  string
	}{
		"plain":     {name: "a.csv", exp: "a.csv"},
		"traversal": {name: "../../etc/passwd", exp: "passwd"},
		"dirOnly":   {name: "reports/", exp: "reports"},
		"empty":     {name: "", exp: "download-42"},
		"dot":       {name: ".", exp: "download-42"},
		"slash":     {name: "/", exp: "download-42"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			if got := download.Filename(tc.name, now); got != tc.exp {
				t.Errorf("exp %q, got %q", tc.exp, got)
			}
		})
	}
}

func TestSave_Checksum(t *testing.T) {
	data := []byte("checksum test data")
	sum := sha256.Sum256(data)
	want := hex.EncodeToString(sum[:])

	testCases := map[string]struct {
		expected string
		expErr   bool
	}{
		"match":     {expected: want},
		"upperCase": {expected: strings.ToUpper(want)},
		"mismatch":  {expected: strings.Repeat("0", 64), expErr: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			// The destination directory must not even be created on a mismatch.
			dir := filepath.Join(t.TempDir(), "out")

			_, err := download.Save(t.Context(), data, "c.bin", dir, nil, download.WithChecksum(sha256.New, tc.expected))
			if !tc.expErr {
				if err != nil {
					t.Fatalf("expected no error, got: %v", err)
				}
				return
			}

			if !errors.Is(err, download.ErrChecksumMismatch) {
				t.Fatalf("exp ErrChecksumMismatch, got: %v", err)
			}

			var dlErr *download.Error
			if !errors.As(err, &dlErr) || dlErr.Filename != "c.bin" {
				t.Errorf("exp *download.Error naming c.bin, got: %#v", err)
			}

			if _, err := os.Stat(dir); !os.IsNotExist(err) {
				t.Errorf("exp nothing written before verification, stat: %v", err)
			}
		})
	}
}

func TestSave_SkipExisting(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "keep.txt")
	if err := os.WriteFile(dest, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, err := download.Save(t.Context(), []byte("new"), "keep.txt", dir, nil, download.WithSkipExisting())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if path != dest {
		t.Errorf("exp %q, got %q", dest, path)
	}

	got, _ := os.ReadFile(dest)
	if string(got) != "original" {
		t.Errorf("exp existing file untouched, got %q", got)
	}
}

func TestSave_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	dir := t.TempDir()
	_, err := download.Save(ctx, []byte("data"), "c.bin", dir, nil)
	if !errors.Is(err, download.ErrDownloadCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("exp ErrDownloadCancelled wrapping context.Canceled, got: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("exp temp file removed, found %d entries", len(entries))
	}
}

func TestSave_Progress(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	data := bytes.Repeat([]byte("x"), 100<<10)
	if _, err := download.Save(t.Context(), data, "p.bin", t.TempDir(), logger, download.WithProgress()); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"blob saved", "file=p.bin", "progress=100.0%", "written=102400"} {
		if !strings.Contains(out, want) {
			t.Errorf("exp %q in progress log, got:\n%s", want, out)
		}
	}
}

func TestSave_NilData(t *testing.T) {
	if _, err := download.Save(t.Context(), nil, "x", t.TempDir(), nil); !errors.Is(err, download.ErrNoData) {
		t.Errorf("exp ErrNoData, got: %v", err)
	}
}

func TestSave_ChecksumOptionReused(t *testing.T) {
	data := []byte("same bytes")
	sum := sha256.Sum256(data)
	opt := download.WithChecksum(sha256.New, hex.EncodeToString(sum[:]))

	dir := t.TempDir()
	for _, name := range []string{"first.bin", "second.bin"} {
		if _, err := download.Save(t.Context(), data, name, dir, nil, opt); err != nil {
			t.Fatalf("saving %s: %v", name, err)
		}
	}
}

func TestWithChecksum_Validation(t *testing.T) {
	testCases := map[string]struct {
		newHash  func() hash.Hash
		expected string
	}{
		"nilHash":  {newHash: nil, expected: "00"},
		"empty":    {newHash: sha256.New, expected: ""},
		"notHex":   {newHash: sha256.New, expected: "zz"},
		"oddChars": {newHash: sha256.New, expected: "abc"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := download.Save(t.Context(), []byte("x"), "x", t.TempDir(), nil, download.WithChecksum(tc.newHash, tc.expected))
			if err == nil {
				t.Fatal("expected an option error")
			}
		})
	}
}
