package fn

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

func TestResult(t *testing.T) {
	ok := Ok(42)
	if !ok.IsOk() || ok.IsErr() {
		t.Fatal("Ok result misreports state")
	}
	if v, err := ok.Unwrap(); v != 42 || err != nil {
		t.Fatalf("Unwrap = (%d, %v)", v, err)
	}

	boom := errors.New("boom")
	bad := Err[int](boom)
	if bad.IsOk() {
		t.Fatal("Err result claims ok")
	}
	if _, err := bad.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("error lost: %v", err)
	}
	if got := bad.UnwrapOr(7); got != 7 {
		t.Fatalf("UnwrapOr = %d", got)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); r.IsErr() {
		t.Fatal("FromPair with nil error")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Fatal("FromPair with error")
	}
}

func TestCollect(t *testing.T) {
	all := Collect([]Result[int]{Ok(1), Ok(2)})
	if vs, _ := all.Unwrap(); len(vs) != 2 {
		t.Fatalf("Collect = %v", vs)
	}
	some := Collect([]Result[int]{Ok(1), Err[int](errors.New("x"))})
	if some.IsOk() {
		t.Fatal("Collect must fail on first error")
	}
}

func TestMapFilterReduce(t *testing.T) {
	doubled := Map([]int{1, 2, 3}, func(v int) int { return v * 2 })
	if doubled[2] != 6 {
		t.Fatalf("Map = %v", doubled)
	}

	even := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	if len(even) != 2 {
		t.Fatalf("Filter = %v", even)
	}

	sum := Reduce([]int{1, 2, 3}, 0, func(acc, v int) int { return acc + v })
	if sum != 6 {
		t.Fatalf("Reduce = %d", sum)
	}
}

func TestUnique(t *testing.T) {
	got := Unique([]string{"a", "b", "a", "c", "b"})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("Unique = %v", got)
	}
}

func TestThen(t *testing.T) {
	double := MapStage(func(v int) int { return v * 2 })
	str := MapStage(strconv.Itoa)
	stage := Then(double, str)

	r := stage(context.Background(), 21)
	if v, _ := r.Unwrap(); v != "42" {
		t.Fatalf("Then = %q", v)
	}

	boom := errors.New("boom")
	var failing Stage[int, int] = func(context.Context, int) Result[int] { return Err[int](boom) }
	called := false
	var after Stage[int, string] = func(_ context.Context, v int) Result[string] {
		called = true
		return Ok(strconv.Itoa(v))
	}
	r2 := Then(failing, after)(context.Background(), 1)
	if r2.IsOk() || called {
		t.Fatal("Then must short-circuit on error")
	}
}

func TestPipeline(t *testing.T) {
	inc := MapStage(func(v int) int { return v + 1 })
	r := Pipeline(inc, inc, inc)(context.Background(), 0)
	if v, _ := r.Unwrap(); v != 3 {
		t.Fatalf("Pipeline = %d", v)
	}
}

func TestTracedStage(t *testing.T) {
	stage := TracedStage("test", MapStage(func(v int) int { return v + 1 }))
	if v, _ := stage(context.Background(), 1).Unwrap(); v != 2 {
		t.Fatalf("TracedStage = %d", v)
	}
	failing := TracedStage("fail", Stage[int, int](func(context.Context, int) Result[int] {
		return Errf[int]("nope")
	}))
	if failing(context.Background(), 1).IsOk() {
		t.Fatal("TracedStage must pass errors through")
	}
}

func TestRetry(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}, func(context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Errf[int]("attempt %d", attempts)
		}
		return Ok(attempts)
	})
	if v, err := r.Unwrap(); err != nil || v != 3 {
		t.Fatalf("Retry = (%d, %v)", v, err)
	}

	r = Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}, func(context.Context) Result[int] {
		return Errf[int]("always")
	})
	if r.IsOk() {
		t.Fatal("Retry must fail after exhausting attempts")
	}
}

func TestRetry_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := Retry(ctx, RetryOpts{MaxAttempts: 10, InitialWait: 10 * time.Millisecond, MaxWait: time.Second}, func(context.Context) Result[int] {
		return Errf[int]("fail")
	})
	if _, err := r.Unwrap(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
