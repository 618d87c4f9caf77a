package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_Normalises(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Lenovo laptops", "nl2sql:lenovo laptops"},
		{"  LENOVO   laptops\t\n", "nl2sql:lenovo laptops"},
		{"Ｌｅｎｏｖｏ laptops", "nl2sql:lenovo laptops"},
		{"Straße", "nl2sql:strasse"},
		{"", "nl2sql:"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(tt.in), "Key(%q)", tt.in)
	}
}

func TestCache_GetPut(t *testing.T) {
	c := New[int]()

	_, ok := c.Get("who has lenovo?")
	assert.False(t, ok)

	c.Put("Who has Lenovo?", 7)
	v, ok := c.Get("who   has lenovo?")
	require.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestGetOrCompute(t *testing.T) {
	c := New[string]()
	calls := 0
	compute := func() (string, bool, error) {
		calls++
		return "result", true, nil
	}

	v, hit, err := c.GetOrCompute("q", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "result", v)

	v, hit, err = c.GetOrCompute("Q", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "result", v)
	assert.Equal(t, 1, calls)
}

func TestGetOrCompute_NotCacheable(t *testing.T) {
	c := New[string]()

	_, _, err := c.GetOrCompute("q", func() (string, bool, error) { return "empty", false, nil })
	require.NoError(t, err)
	assert.Zero(t, c.Len())

	boom := errors.New("boom")
	_, _, err = c.GetOrCompute("q", func() (string, bool, error) { return "", true, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := fmt.Sprintf("question %d", i%10)
			c.Put(q, i)
			c.Get(q)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, c.Len())
}
