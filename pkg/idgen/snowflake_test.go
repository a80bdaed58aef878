package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestNextID_Unique(t *testing.T) {
	const n = 1000
	seen := make(map[int64]struct{}, n)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < n/10; j++ {
				id := NextID()
				mu.Lock()
				if _, ok := seen[id]; ok {
					t.Errorf("重复ID: %d", id)
				}
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestGenerateOrderNo(t *testing.T) {
	no := GenerateOrderNo()
	if !strings.HasPrefix(no, "ORD") {
		t.Errorf("订单号前缀错误: %s", no)
	}
	if len(no) != 3+14+8 {
		t.Errorf("订单号长度错误: %s", no)
	}
}

func TestGenerateTransactionNo(t *testing.T) {
	no := GenerateTransactionNo()
	if !strings.HasPrefix(no, "TXN") {
		t.Errorf("流水号前缀错误: %s", no)
	}
}
