package errcode

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedErr struct{ code int32 }

func (e codedErr) Error() string      { return fmt.Sprintf("native %d", e.code) }
func (e codedErr) NativeCode() int32 { return e.code }

func TestTableIsSortedAndDisjoint(t *testing.T) {
	require.NoError(t, ValidateTable(Categories()))
}

func TestValidateTableReportsEveryProblem(t *testing.T) {
	bad := []Category{
		{Name: "a", Min: 10, Max: 20},
		{Name: "b", Min: 15, Max: 30},
		{Name: "c", Min: 40, Max: 40},
	}

	err := ValidateTable(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"b"`)
	assert.Contains(t, err.Error(), `"c": empty range`)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code int64
		want Category
	}{
		{-1_000, System},
		{-299_999, System},
		{-300_000, UserInput},
		{-310_000, UserInput},
		{-510_002, FileDriver},
		{-818_000, Catalog},
		{818_000, Catalog},
		{-885_000, RDA},
		{-890_000, Ticket},
		{-910_000, Misc},
		{-926_000, Auth},
		{-1_102_000, RuleEngine},
		{-1_650_000, Scripting},
		{-2_050_000, NetCDF},
		{-2_150_000, SSL},
		{0, Unknown},
		{-999, Unknown},
		{-1_800_000, Unknown},
		{-9_000_000, Unknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.code))
		})
	}
}

func TestClassifyAgreesWithLinearScan(t *testing.T) {
	linear := func(code int64) Category {
		for _, c := range Categories() {
			if c.Contains(code) {
				return c
			}
		}
		return Unknown
	}

	for code := int64(0); code < 2_300_000; code += 997 {
		require.Equal(t, linear(code), Classify(-code), "code %d", code)
	}
}

func TestCodeMatches(t *testing.T) {
	err := fmt.Errorf("open: %w", codedErr{code: -818_000})

	assert.True(t, CatNoAccessPermission.Matches(err))
	assert.False(t, CatUnknownFile.Matches(err))
	assert.True(t, MatchesAny(err, CatUnknownFile, CatNoAccessPermission))
	assert.False(t, CatNoAccessPermission.Matches(fmt.Errorf("plain")))
	assert.False(t, CatNoAccessPermission.Matches(nil))
}

func TestLookup(t *testing.T) {
	c, ok := Lookup(-818_000)
	require.True(t, ok)
	assert.Equal(t, "CAT_NO_ACCESS_PERMISSION", c.Name())
	assert.Equal(t, Catalog, c.Category())

	c, ok = Lookup(818_000)
	require.True(t, ok)
	assert.Equal(t, CatNoAccessPermission, c)

	_, ok = Lookup(-123)
	assert.False(t, ok)
	assert.Equal(t, "UNKNOWN(-123)", Code(-123).Name())
}
