package logutil

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenRotatorMovesOversizedLogAside(t *testing.T) {
	path := filepath.Join(t.TempDir(), LogFileName)
	if err := os.WriteFile(path, make([]byte, 101), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".1", []byte("older"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := OpenRotator(path, 100, 3)
	if err != nil {
		t.Fatalf("OpenRotator: %v", err)
	}
	defer r.Close()

	if st, err := os.Stat(path); err != nil || st.Size() != 0 {
		t.Errorf("fresh log expected, got %v", err)
	}
	if st, err := os.Stat(path + ".1"); err != nil || st.Size() != 101 {
		t.Errorf("archive .1 missing or wrong size: %v", err)
	}
	if data, err := os.ReadFile(path + ".2"); err != nil || string(data) != "older" {
		t.Errorf("archive .2 = %q, %v", data, err)
	}
}

func TestRotatorRotatesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", LogFileName)
	r, err := OpenRotator(path, 10, 2)
	if err != nil {
		t.Fatalf("OpenRotator: %v", err)
	}
	defer r.Close()

	for _, line := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		if _, err := r.Write([]byte(line)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	want := map[string]string{
		path:        "dddddddd\n",
		path + ".1": "cccccccc\n",
		path + ".2": "bbbbbbbb\n",
	}
	for p, content := range want {
		data, err := os.ReadFile(p)
		if err != nil || string(data) != content {
			t.Errorf("%s = %q, %v; want %q", filepath.Base(p), data, err, content)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("only two archives should be kept")
	}
}

func TestSmallLogIsNotRotated(t *testing.T) {
	path := filepath.Join(t.TempDir(), LogFileName)
	if err := os.WriteFile(path, []byte("line\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := OpenRotator(path, 100, 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Write([]byte("next\n")); err != nil {
		t.Fatal(err)
	}
	r.Close()
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("small log should not rotate")
	}
	if data, _ := os.ReadFile(path); string(data) != "line\nnext\n" {
		t.Errorf("log = %q", data)
	}
	if _, err := r.Write([]byte("late")); err == nil {
		t.Error("write after Close should fail")
	}
}

func TestSetupWritesToDir(t *testing.T) {
	dir := t.TempDir()
	defer log.SetOutput(os.Stderr)

	Setup(true, dir)
	log.Printf("session: recording started")
	Setup(false, dir)
	log.Printf("dropped")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "session: recording started") || bytes.Contains(data, []byte("dropped")) {
		t.Fatalf("log = %q", data)
	}
}
