package id

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen.Generate().String()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestTypedIDs(t *testing.T) {
	tests := []struct {
		id     string
		prefix string
	}{
		{NewPageID().String(), PagePrefix},
		{NewPromptID().String(), PromptPrefix},
		{NewBlobID().String(), BlobPrefix},
	}

	for _, tt := range tests {
		assert.True(t, strings.HasPrefix(tt.id, tt.prefix+"_"), tt.id)
		assert.True(t, Valid(tt.id, tt.prefix), tt.id)
	}
}

func TestValidRejects(t *testing.T) {
	assert.False(t, Valid("page_not-a-ulid", PagePrefix))
	assert.False(t, Valid(NewBlobID().String(), PagePrefix))
	assert.False(t, Valid("", PagePrefix))
}

func TestConcurrentGeneration(t *testing.T) {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[PageID]bool)
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := NewPageID()
				mu.Lock()
				ids[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1000)
}
