package cmd

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"alice.jpg", true},
		{"people/Bob/IMG_0001.JPEG", true},
		{"scan.webp", true},
		{"notes.txt", false},
		{".hidden.jpg", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := isImageFile(tt.path); got != tt.want {
			t.Errorf("isImageFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestNameForFile(t *testing.T) {
	root := filepath.Join("data", "people")
	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(root, "Alice", "beach.jpg"), "Alice"},
		{filepath.Join(root, "Alice", "2024", "ski.jpg"), "Alice"},
		{filepath.Join(root, "Jan_Novak.jpg"), "Jan Novak"},
		{filepath.Join(root, "bob.png"), "bob"},
	}
	for _, tt := range tests {
		if got := nameForFile(root, tt.path); got != tt.want {
			t.Errorf("nameForFile(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCollectImportJobs(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("Alice/1.jpg")
	mustWrite("Alice/readme.md")
	mustWrite("Bob.png")

	jobs, err := collectImportJobs(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d: %+v", len(jobs), jobs)
	}
	if jobs[0].Name != "Alice" || jobs[1].Name != "Bob" {
		t.Errorf("unexpected names: %+v", jobs)
	}
}

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	var mu sync.Mutex
	fired := map[string]int{}
	done := make(chan struct{}, 10)
	d := newDebouncer(30*time.Millisecond, func(key string) {
		mu.Lock()
		fired[key]++
		mu.Unlock()
		done <- struct{}{}
	})
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Trigger("a.jpg")
		time.Sleep(5 * time.Millisecond)
	}
	d.Trigger("b.jpg")

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("debouncer did not fire")
		}
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired["a.jpg"] != 1 || fired["b.jpg"] != 1 {
		t.Errorf("expected one call per key, got %v", fired)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	called := make(chan struct{}, 1)
	d := newDebouncer(20*time.Millisecond, func(string) { called <- struct{}{} })

	d.Trigger("a.jpg")
	d.Stop()

	select {
	case <-called:
		t.Error("expected no call after Stop")
	case <-time.After(60 * time.Millisecond):
	}
}
