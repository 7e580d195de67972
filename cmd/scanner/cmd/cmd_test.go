package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hama-scanner/internal/model"
)

func TestReadBarsCSV(t *testing.T) {
	in := `timestamp,open,high,low,close,volume
1704067200000,1,2,0.5,1.5,10
2024-01-01T01:00:00Z,1.5,2.5,1,2,12
`
	bars, err := readBarsCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, int64(1704067200000), bars[0].Timestamp)
	assert.Equal(t, int64(1704070800000), bars[1].Timestamp)
	assert.Equal(t, 2.0, bars[1].Close)
}

func TestReadBarsCSV_Errors(t *testing.T) {
	tests := map[string]string{
		"bad number":  "1,a,2,3,4,5\n",
		"short row":   "1,2,3\n",
		"backwards":   "2000,1,1,1,1,1\n1000,1,1,1,1,1\n",
		"bad ts row2": "1000,1,1,1,1,1\nxx,1,1,1,1,1\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := readBarsCSV(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestParseGainers(t *testing.T) {
	list, err := parseGainers([]string{"solusdt=12.5", "DOGEUSDT=-1"}, model.MarketFutures)
	require.NoError(t, err)
	assert.Equal(t, []model.Gainer{
		{Symbol: "SOLUSDT", MarketType: model.MarketFutures, ChangePct: 12.5},
		{Symbol: "DOGEUSDT", MarketType: model.MarketFutures, ChangePct: -1},
	}, list)

	_, err = parseGainers([]string{"SOLUSDT"}, model.MarketSpot)
	assert.Error(t, err)
	_, err = parseGainers([]string{"SOLUSDT=x"}, model.MarketSpot)
	assert.Error(t, err)
}
