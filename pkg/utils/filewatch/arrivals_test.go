package filewatch_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poec-forensics/console/pkg/utils/filewatch"
)

func receive(t *testing.T, ch <-chan string, within time.Duration) (string, bool) {
	t.Helper()
	select {
	case p, ok := <-ch:
		return p, ok
	case <-time.After(within):
		return "", false
	}
}

func TestArrivals(t *testing.T) {
	t.Run("a created file arrives once it settles", func(t *testing.T) {
		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := filewatch.Arrivals(ctx, dir, 50*time.Millisecond, nil)
		if err != nil {
			t.Fatal(err)
		}

		file := filepath.Join(dir, "ledger.csv")
		if err := os.WriteFile(file, []byte("source,target,amount,timestamp\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		p, ok := receive(t, ch, 5*time.Second)
		if !ok {
			t.Fatal("file does not arrive")
		}
		if p != filepath.Clean(file) {
			t.Errorf("unexpected path: %s", p)
		}

		// written and created events are merged into one arrival.
		if p, ok := receive(t, ch, 300*time.Millisecond); ok {
			t.Errorf("arrives twice: %s", p)
		}
	})

	t.Run("files not matched are ignored", func(t *testing.T) {
		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := filewatch.Arrivals(ctx, dir, 10*time.Millisecond, func(p string) bool {
			return strings.HasSuffix(p, ".csv")
		})
		if err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(filepath.Join(dir, "note.txt"), []byte("memo"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "b.csv"), []byte("a,b\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		p, ok := receive(t, ch, 5*time.Second)
		if !ok || filepath.Base(p) != "b.csv" {
			t.Errorf("unexpected arrival: %s (%v)", p, ok)
		}
	})

	t.Run("when context is done, the channel is closed", func(t *testing.T) {
		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())

		ch, err := filewatch.Arrivals(ctx, dir, 10*time.Millisecond, nil)
		if err != nil {
			t.Fatal(err)
		}
		cancel()

		select {
		case _, ok := <-ch:
			if ok {
				t.Error("channel is not closed")
			}
		case <-time.After(5 * time.Second):
			t.Error("channel is not closed")
		}
	})

	t.Run("it fails for a directory not existing", func(t *testing.T) {
		if _, err := filewatch.Arrivals(context.Background(), filepath.Join(t.TempDir(), "nothing"), time.Second, nil); err == nil {
			t.Error("no error")
		}
	})
}
