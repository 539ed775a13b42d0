package recovery_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/wudi/pptxkit/recovery"
)

func TestRecoveryStrategies(t *testing.T) {
	boom := errors.New("unexpected EOF")
	loc := recovery.Location{Part: "ppt/slides/_rels/slide1.xml.rels", Component: "prune"}
	ctx := context.Background()

	t.Run("StrictStrategy", func(t *testing.T) {
		err := recovery.Resolve(recovery.NewStrictStrategy(), ctx, boom, loc)
		if !errors.Is(err, boom) {
			t.Fatalf("expected strict strategy to surface error, got %v", err)
		}
	})

	t.Run("LenientStrategy", func(t *testing.T) {
		rec := recovery.NewLenientStrategy()
		if err := recovery.Resolve(rec, ctx, boom, loc); err != nil {
			t.Fatalf("expected lenient strategy to continue, got %v", err)
		}
		errs := rec.Errors()
		if len(errs) != 1 {
			t.Fatalf("expected 1 recorded error, got %d", len(errs))
		}
		if !errors.Is(errs[0], boom) {
			t.Errorf("recorded error should wrap original: %v", errs[0])
		}
		if !strings.Contains(errs[0].Error(), loc.Part) {
			t.Errorf("recorded error should name the part: %v", errs[0])
		}
	})

	t.Run("NilStrategy", func(t *testing.T) {
		if err := recovery.Resolve(nil, ctx, boom, loc); err != nil {
			t.Fatalf("nil strategy should be lenient, got %v", err)
		}
	})
}

func TestLenientStrategyConcurrent(t *testing.T) {
	rec := recovery.NewLenientStrategy()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.OnError(context.Background(), errors.New("x"), recovery.Location{Component: "images"})
		}()
	}
	wg.Wait()
	if got := len(rec.Errors()); got != 16 {
		t.Fatalf("expected 16 errors, got %d", got)
	}
}
