package stats

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportRowRecord(t *testing.T) {
	r := exportRow{
		Date:        "2026-03-15",
		ClientName:  "Acme, Inc.",
		AuthorName:  "Ana Reyes",
		Summary:     `Shipped the "beta" dashboard`,
		Hours:       2.5,
		Rate:        40,
		Currency:    "PHP",
		IsBlocked:   true,
		BlockerDetails: "waiting on API credentials",
	}

	rec := r.record()
	require.Len(t, rec, len(exportHeader))
	assert.Equal(t, "2026-03-15", rec[0])
	assert.Equal(t, "2.50", rec[4])
	assert.Equal(t, "40.00", rec[5])
	assert.Equal(t, "100.00", rec[6], "amount is hours times rate")
	assert.Equal(t, "yes", rec[8])

	// Commas and quotes in fields must survive a csv round trip.
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.Write(rec))
	w.Flush()
	require.NoError(t, w.Error())

	got, err := csv.NewReader(&buf).Read()
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestExportRowRecordUnblocked(t *testing.T) {
	rec := exportRow{Date: "2026-01-01", Hours: 8, Rate: 25}.record()
	assert.Equal(t, "no", rec[8])
	assert.Equal(t, "200.00", rec[6])
}
