package audit

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStampsTimestamp(t *testing.T) {
	l := NewLog(10, zerolog.Nop())
	l.Record(Entry{UserID: "u-1", Action: "item.create", Resource: "item-1", Result: ResultOK})

	got := l.Entries("", 0)
	require.Len(t, got, 1)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestEntriesNewestFirstAndFiltered(t *testing.T) {
	l := NewLog(10, zerolog.Nop())
	l.Record(Entry{UserID: "u-1", Action: "item.create", Result: ResultOK})
	l.Record(Entry{UserID: "u-2", Action: "item.delete", Result: ResultDenied})
	l.Record(Entry{UserID: "u-1", Action: "chat.post", Result: ResultOK})

	all := l.Entries("", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "chat.post", all[0].Action)

	mine := l.Entries("u-1", 0)
	require.Len(t, mine, 2)
	assert.Equal(t, "chat.post", mine[0].Action)
	assert.Equal(t, "item.create", mine[1].Action)
}

func TestCapEvictsOldest(t *testing.T) {
	l := NewLog(3, zerolog.Nop())
	for i := 0; i < 5; i++ {
		l.Record(Entry{UserID: "u-1", Action: fmt.Sprintf("a%d", i)})
	}

	assert.Equal(t, 3, l.Count())
	got := l.Entries("", 0)
	assert.Equal(t, "a4", got[0].Action)
	assert.Equal(t, "a2", got[2].Action)
}

func TestEntriesLimit(t *testing.T) {
	l := NewLog(10, zerolog.Nop())
	for i := 0; i < 5; i++ {
		l.Record(Entry{UserID: "u-1", Action: fmt.Sprintf("a%d", i)})
	}
	assert.Len(t, l.Entries("", 2), 2)
}
