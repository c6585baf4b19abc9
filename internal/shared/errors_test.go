package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := NewError(CodeUnbalancedJournal, "debits do not equal credits").
		WithDetail("difference", 10.0)

	require.True(t, errors.Is(err, NewError(CodeUnbalancedJournal, "")))
	require.False(t, errors.Is(err, NewError(CodeJournalNotFound, "")))

	wrapped := fmt.Errorf("posting failed: %w", err)
	require.Equal(t, CodeUnbalancedJournal, CodeOf(wrapped))
	require.Equal(t, 10.0, err.Details["difference"])
}

func TestNewPage(t *testing.T) {
	page := NewPage(10, 0, 25)
	require.True(t, page.HasMore)

	page = NewPage(10, 20, 25)
	require.False(t, page.HasMore)

	page = NewPage(0, -1, 5)
	require.Equal(t, 20, page.Limit)
	require.Equal(t, 0, page.Offset)
	require.False(t, page.HasMore)
}
