package market

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawRow(t *testing.T, s string) []json.RawMessage {
	t.Helper()
	var row []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(s), &row))
	return row
}

func TestParseHistoricalRow(t *testing.T) {
	t.Parallel()

	row := rawRow(t, `[1688671200,"30306.1","30306.2","30305.7","30305.7","30306.1","3.39243896",23]`)
	c, err := ParseHistoricalRow(row)
	require.NoError(t, err)

	assert.Equal(t, int64(1688671200000), c.Timestamp)
	assert.Equal(t, 30306.1, c.Open)
	assert.Equal(t, 30306.2, c.High)
	assert.Equal(t, 30305.7, c.Low)
	assert.Equal(t, 30305.7, c.Close)
}

func TestParseHistoricalRowNumbers(t *testing.T) {
	t.Parallel()

	c, err := ParseHistoricalRow(rawRow(t, `[1688671200.5, 10, 12, 9, 11]`))
	require.NoError(t, err)
	assert.Equal(t, int64(1688671200500), c.Timestamp)
	assert.Equal(t, 12.0, c.High)
}

func TestParseHistoricalRowMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		row  string
	}{
		{"too short", `[1688671200,"1","2","0.5"]`},
		{"non numeric", `[1688671200,"abc","2","0.5","1"]`},
		{"bad time", `["soon","1","2","0.5","1"]`},
		{"invariant", `[1688671200,"1","2","3","1"]`},
		{"nan", `[1688671200,"NaN","2","0.5","1"]`},
		{"null field", `[1688671200,null,"2","0.5","1"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHistoricalRow(rawRow(t, tt.row))
			assert.True(t, errors.Is(err, ErrMalformedCandle), "got %v", err)
		})
	}
}

func TestParseHistoricalDropsBadRows(t *testing.T) {
	t.Parallel()

	var rows [][]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(`[
		[1000,"1","2","0.5","1.5"],
		[1060,"x","2","0.5","1.5"],
		[1120,"1.5","3","1","2"]
	]`), &rows))

	candles, errs := ParseHistorical(rows)
	assert.Len(t, candles, 2)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "row 1")
	assert.Equal(t, int64(1120000), candles[1].Timestamp)
}
