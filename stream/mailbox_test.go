package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxPutTake(t *testing.T) {
	box := NewMailbox[int]()

	_, ok := box.Take()
	assert.False(t, ok)

	assert.False(t, box.Put(1))
	v, ok := box.Take()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// slot is empty again
	_, ok = box.Take()
	assert.False(t, ok)
}

func TestMailboxLatestWins(t *testing.T) {
	box := NewMailbox[int]()

	assert.False(t, box.Put(1))
	assert.True(t, box.Put(2)) // overwrites 1
	assert.True(t, box.Put(3)) // overwrites 2

	v, ok := box.Take()
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, uint64(2), box.Drops())
}

func TestMailboxNotifyCoalesces(t *testing.T) {
	box := NewMailbox[int]()

	box.Put(1)
	box.Put(2)
	box.Put(3)

	// several puts collapse into one pending signal
	<-box.Notify()
	select {
	case <-box.Notify():
		t.Fatal("expected a single coalesced notification")
	default:
	}

	v, ok := box.Take()
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestMailboxNotifyAfterTake(t *testing.T) {
	box := NewMailbox[string]()

	box.Put("a")
	<-box.Notify()
	v, _ := box.Take()
	assert.Equal(t, "a", v)

	box.Put("b")
	select {
	case <-box.Notify():
	default:
		t.Fatal("expected a notification for the new value")
	}
}
