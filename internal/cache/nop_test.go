package cache

import (
	"context"
	"testing"
)

func TestNopNeverHits(t *testing.T) {
	ctx := context.Background()
	var c Cache[[]int] = Nop[[]int]{}
	c.Set(ctx, "k", []int{1})
	if v, ok := c.Get(ctx, "k"); ok || v != nil {
		t.Fatalf("Get = %v, %v; want miss", v, ok)
	}
	c.Delete(ctx, "k")
	c.Clear(ctx)
}
