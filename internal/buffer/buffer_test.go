package buffer

import (
	"sync"
	"testing"
)

func TestBuffer_PrependAndSnapshot(t *testing.T) {
	b := New[int](5)

	for i := 1; i <= 3; i++ {
		b.Prepend(i)
	}

	if b.Len() != 3 {
		t.Errorf("expected len 3, got %d", b.Len())
	}

	snap := b.Snapshot()
	expected := []int{3, 2, 1}
	for i, v := range expected {
		if snap[i] != v {
			t.Errorf("snapshot[%d]: expected %d, got %d", i, v, snap[i])
		}
	}
}

func TestBuffer_Overflow(t *testing.T) {
	b := New[int](100)

	// 105 sequential insertions must leave exactly 100 entries with the
	// 105th at the head.
	for i := 1; i <= 105; i++ {
		b.Prepend(i)
	}

	if b.Len() != 100 {
		t.Errorf("expected len 100, got %d", b.Len())
	}

	head, ok := b.Head()
	if !ok || head != 105 {
		t.Errorf("expected head 105, got %d (ok=%v)", head, ok)
	}

	snap := b.Snapshot()
	if snap[len(snap)-1] != 6 {
		t.Errorf("expected oldest retained entry 6, got %d", snap[len(snap)-1])
	}
}

func TestBuffer_ReplaceTruncates(t *testing.T) {
	b := New[int](3)

	b.Replace([]int{9, 8, 7, 6, 5})

	if b.Len() != 3 {
		t.Errorf("expected len 3 after replace, got %d", b.Len())
	}

	snap := b.Snapshot()
	expected := []int{9, 8, 7}
	for i, v := range expected {
		if snap[i] != v {
			t.Errorf("snapshot[%d]: expected %d, got %d", i, v, snap[i])
		}
	}
}

func TestBuffer_ReplaceCopiesInput(t *testing.T) {
	b := New[int](5)

	src := []int{1, 2, 3}
	b.Replace(src)
	src[0] = 99

	snap := b.Snapshot()
	if snap[0] != 1 {
		t.Errorf("expected buffer isolated from caller slice, got %d", snap[0])
	}
}

func TestBuffer_HeadEmpty(t *testing.T) {
	b := New[int](5)

	if _, ok := b.Head(); ok {
		t.Error("expected no head on empty buffer")
	}
}

func TestBuffer_Concurrent(t *testing.T) {
	b := New[int](100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Prepend(id*100 + j)
			}
		}(i)
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = b.Snapshot()
				_, _ = b.Head()
			}
		}()
	}
	wg.Wait()

	if b.Len() != 100 {
		t.Errorf("expected len 100 after concurrent prepends, got %d", b.Len())
	}
}
