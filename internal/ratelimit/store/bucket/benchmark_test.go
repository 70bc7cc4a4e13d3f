package bucket

import (
	"context"
	"fmt"
	"testing"
	"time"

	"truconn/internal/ratelimit/models"
)

var benchLimit = models.Limit{Requests: 1000, Window: time.Minute}

func BenchmarkAllow(b *testing.B) {
	store := New()
	ctx := context.Background()
	for b.Loop() {
		_, _ = store.Allow(ctx, "bench-key", benchLimit)
	}
}

func BenchmarkAllow_Parallel(b *testing.B) {
	store := New()
	ctx := context.Background()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = store.Allow(ctx, "bench-key", benchLimit)
		}
	})
}

// Many principals, one request each: dominated by map growth.
func BenchmarkAllow_HighCardinality(b *testing.B) {
	store := New()
	ctx := context.Background()
	for i := 0; b.Loop(); i++ {
		_, _ = store.Allow(ctx, fmt.Sprintf("ratelimit:citizen:%d:read", i), benchLimit)
	}
}
