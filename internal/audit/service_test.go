package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	rows []TimelineRow
}

func (f *fakeRepo) TimelineWindow(_ context.Context, _ TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	if offset >= len(f.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[offset:end], nil
}

func (f *fakeRepo) TimelineAll(_ context.Context, _ TimelineFilters) ([]TimelineRow, error) {
	return f.rows, nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, 0, n)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		rows = append(rows, TimelineRow{
			At:       base.Add(time.Duration(i) * time.Minute),
			ActorID:  int64(i + 1),
			Action:   "REPORT_SUBMIT",
			Entity:   "report",
			EntityID: "1",
		})
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	svc := NewService(&fakeRepo{rows: makeRows(25)})

	first, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, first.Rows, 20)
	require.True(t, first.Paging.HasNext)
	require.Equal(t, 2, first.Paging.NextPage)
	require.Zero(t, first.Paging.PrevPage)

	second, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, second.Rows, 5)
	require.False(t, second.Paging.HasNext)
	require.Equal(t, 1, second.Paging.PrevPage)
}

func TestTimelineClampsPageSize(t *testing.T) {
	svc := NewService(&fakeRepo{rows: makeRows(80)})

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 50)
}

func TestWriteCSV(t *testing.T) {
	rows := []TimelineRow{
		{
			At:       time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC),
			ActorID:  2,
			Action:   "REPORT_CLOSE",
			Entity:   "report",
			EntityID: "7",
			Meta:     map[string]any{"index": 1},
		},
	}
	data, err := WriteCSV(rows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "entity_id")
	require.Contains(t, lines[1], "REPORT_CLOSE")
	require.Contains(t, lines[1], `"{""index"":1}"`)
}
