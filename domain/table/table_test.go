package table

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPadsShortRecords(t *testing.T) {
	tbl, err := New(
		[]Column{{Name: "Brand", Type: ColumnTypeString}, {Name: "Qty", Type: ColumnTypeInt}},
		[]Record{{String("Acme")}, {String("Globex"), Int(3)}},
	)
	require.NoError(t, err)

	require.Equal(t, 2, tbl.Len())
	assert.Len(t, tbl.Records[0], 2)
	assert.True(t, tbl.Records[0][1].IsAbsent())

	v, ok := tbl.Get(1, "Qty")
	require.True(t, ok)
	assert.Equal(t, int64(3), v.IntVal)
}

func TestNewRejectsDuplicateColumns(t *testing.T) {
	_, err := New([]Column{{Name: "A"}, {Name: "A"}}, nil)
	assert.Error(t, err)
}

func TestNewRejectsWideRecords(t *testing.T) {
	_, err := New([]Column{{Name: "A"}}, []Record{{Int(1), Int(2)}})
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	tbl, err := New([]Column{{Name: "A"}}, []Record{{Int(1)}})
	require.NoError(t, err)

	clone := tbl.Clone()
	clone.Records[0][0] = Int(2)
	clone.Columns[0].Name = "B"

	assert.Equal(t, int64(1), tbl.Records[0][0].IntVal)
	assert.Equal(t, "A", tbl.Columns[0].Name)
}

func TestValueMissing(t *testing.T) {
	assert.True(t, Value{}.IsMissing())
	assert.True(t, Absent().IsMissing())
	assert.True(t, Float(math.NaN()).IsMissing())
	assert.True(t, Float(math.Inf(1)).IsMissing())
	assert.True(t, Float(math.Inf(-1)).IsMissing())
	assert.False(t, Float(0).IsMissing())
	assert.False(t, String("").IsMissing())
	assert.False(t, Int(0).IsMissing())
}

func TestMetadataFromTable(t *testing.T) {
	tbl, err := New(
		[]Column{{Name: "Brand"}, {Name: "Ship Date"}, {Name: "Qty"}},
		[]Record{{String("a")}, {String("b")}, {String("c")}},
	)
	require.NoError(t, err)

	at := time.Date(2024, 3, 5, 14, 2, 1, 123456000, time.Local)
	meta := NewMetadata(tbl, "book.xlsx", at)

	assert.Equal(t, 3, meta.TotalRecords)
	assert.Equal(t, []string{"Brand", "Ship Date", "Qty"}, meta.Columns)
	assert.Equal(t, "2024-03-05T14:02:01.123456", meta.GeneratedAtISO())
}
