package accumulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageOf(start, size, total int) Page[int] {
	results := make([]int, 0, size)
	for i := start; i < start+size; i++ {
		results = append(results, i)
	}
	return Page[int]{Results: results, TotalCount: total}
}

func TestNew(t *testing.T) {
	a := New[int]()

	assert.Empty(t, a.Items())
	assert.Equal(t, 1, a.Page())
	assert.True(t, a.HasMore())
	assert.False(t, a.Loaded())
	assert.Equal(t, 1, a.NextPage())
}

func TestMerge_ScenarioHundredItems(t *testing.T) {
	a := New[int]()

	for page := 1; page <= 5; page++ {
		if page > 1 {
			require.NoError(t, a.AdvancePage())
		}
		a.Merge(pageOf((page-1)*20, 20, 100), page == 1)

		assert.Equal(t, page*20, a.Len())
		assert.Equal(t, page, a.Page())
		assert.Equal(t, page < 5, a.HasMore(), "page %d", page)
	}

	items := a.Items()
	for i, v := range items {
		require.Equal(t, i, v, "items must be the concatenation of pages in order")
	}
	assert.ErrorIs(t, a.AdvancePage(), ErrNoMorePages)
	assert.Equal(t, 5, a.Page())
}

func TestMerge_ZeroTotal(t *testing.T) {
	a := New[int]()
	a.Merge(Page[int]{TotalCount: 0}, true)

	assert.Empty(t, a.Items())
	assert.False(t, a.HasMore())
	assert.ErrorIs(t, a.AdvancePage(), ErrNoMorePages)
}

func TestMerge_FirstPageReplaces(t *testing.T) {
	a := New[int]()
	a.Merge(pageOf(0, 3, 10), true)
	a.Merge(pageOf(100, 2, 10), true)

	assert.Equal(t, []int{100, 101}, a.Items())
}

func TestMerge_ExcessItemsNotTruncated(t *testing.T) {
	a := New[int]()
	a.Merge(pageOf(0, 20, 30), true)
	require.True(t, a.HasMore())
	require.NoError(t, a.AdvancePage())

	a.Merge(pageOf(20, 20, 30), false)

	assert.Equal(t, 40, a.Len())
	assert.False(t, a.HasMore())
}

func TestMerge_NoDeduplication(t *testing.T) {
	a := New[int]()
	a.Merge(Page[int]{Results: []int{1, 2}, TotalCount: 10}, true)
	a.Merge(Page[int]{Results: []int{2, 3}, TotalCount: 10}, false)

	assert.Equal(t, []int{1, 2, 2, 3}, a.Items())
}

func TestHasMoreMatchesLength(t *testing.T) {
	tests := []struct {
		name  string
		pages []Page[int]
	}{
		{"under total", []Page[int]{pageOf(0, 5, 20)}},
		{"exact total", []Page[int]{pageOf(0, 5, 10), pageOf(5, 5, 10)}},
		{"total shrinks", []Page[int]{pageOf(0, 5, 20), pageOf(5, 5, 8)}},
		{"total grows", []Page[int]{pageOf(0, 5, 5), pageOf(5, 5, 50)}},
		{"empty later page", []Page[int]{pageOf(0, 5, 20), {TotalCount: 20}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New[int]()
			for i, p := range tt.pages {
				a.Merge(p, i == 0)
				assert.Equal(t, a.Len() < p.TotalCount, a.HasMore(), "after merge %d", i)
			}
		})
	}
}

func TestReset(t *testing.T) {
	a := New[int]()
	a.Merge(pageOf(0, 20, 100), true)
	require.NoError(t, a.AdvancePage())
	a.Merge(pageOf(20, 20, 100), false)

	a.Reset()

	s := a.Snapshot()
	assert.Empty(t, s.Items)
	assert.Equal(t, 1, s.Page)
	assert.True(t, s.HasMore)
	assert.False(t, a.Loaded())
}

func TestItemsReturnsCopy(t *testing.T) {
	a := New[int]()
	a.Merge(Page[int]{Results: []int{1, 2, 3}, TotalCount: 3}, true)

	items := a.Items()
	items[0] = 99

	assert.Equal(t, 1, a.Items()[0])
}

func TestNextPage(t *testing.T) {
	a := New[int]()
	assert.Equal(t, 1, a.NextPage())

	a.Merge(pageOf(0, 20, 100), true)
	assert.Equal(t, 2, a.NextPage())

	require.NoError(t, a.AdvancePage())
	a.Merge(pageOf(20, 20, 100), false)
	assert.Equal(t, 3, a.NextPage())
}
