package errors

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestWrapPreservesTypedError(t *testing.T) {
	inner := New(KindNotFound, "artifact.get", "artifact missing")
	wrapped := Wrap(KindStorage, "service.stream", "stream failed", inner)

	if wrapped.Kind != KindNotFound {
		t.Fatalf("expected wrap to keep inner kind, got %s", wrapped.Kind)
	}
	if !IsKind(wrapped, KindNotFound) {
		t.Fatal("IsKind should match inner kind")
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(KindStorage, "op", "msg", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestIsKindWalksChain(t *testing.T) {
	base := New(KindCostExceeded, "cost.guard", "cap exceeded")
	chained := fmt.Errorf("outer context: %w", base)

	if !IsKind(chained, KindCostExceeded) {
		t.Fatal("expected kind match through fmt wrapping")
	}
	if IsKind(chained, KindRateLimit) {
		t.Fatal("unexpected kind match")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindCostExceeded: http.StatusBadRequest,
		KindNotFound:     http.StatusNotFound,
		KindCacheMiss:    http.StatusNotFound,
		KindRateLimit:    http.StatusTooManyRequests,
		KindProvider:     http.StatusInternalServerError,
		KindStorage:      http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := HTTPStatus(New(kind, "op", "msg")); got != want {
			t.Fatalf("kind %s: expected %d, got %d", kind, want, got)
		}
	}
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	err := RateLimited("quota.stream", "too many requests", 42*time.Second)
	if err.RetryAfter != 42*time.Second {
		t.Fatalf("unexpected retry-after: %v", err.RetryAfter)
	}
	if HTTPStatus(err) != http.StatusTooManyRequests {
		t.Fatal("expected 429")
	}
}
