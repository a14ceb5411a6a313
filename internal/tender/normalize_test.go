package tender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	now := time.Date(2026, time.February, 4, 10, 30, 0, 0, time.UTC)

	raw := map[string]any{
		"bidNtceNo":   "20260200123",
		"bidNtceOrd":  "00",
		"bidNtceNm":   "고양시 도로 보수공사",
		"ntceInsttNm": "고양시청",
		"dmndInsttNm": "고양시 덕양구청",
		"bidNtceDt":   "2026-02-04 09:00:00",
		"opengDt":     "2026-02-11 10:00:00",
		"bscAmt":      "1,000,000",
		"presmptPrce": float64(900000),
	}

	td, ok := Normalize(raw, now)
	require.True(t, ok)

	assert.Equal(t, "20260200123-00", td.BidNo)
	assert.Equal(t, "고양시 도로 보수공사", *td.Title)
	assert.Equal(t, "고양시청", *td.Agency)
	assert.Equal(t, "고양시 덕양구청", *td.DemandOrg)
	assert.Equal(t, "2026-02-04", td.AnnouncedDate())
	assert.Equal(t, "2026-02-11 10:00:00", *td.OpenAt)
	require.NotNil(t, td.BaseAmount)
	assert.Equal(t, float64(1000000), *td.BaseAmount)
	require.NotNil(t, td.EstimatedPrice)
	assert.Equal(t, float64(900000), *td.EstimatedPrice)
	// budget prefers the base amount
	assert.Equal(t, float64(1000000), *td.Budget)
	assert.Equal(t, SourceG2B, *td.Source)
	assert.Equal(t, "20260200123", *td.BidNtceNo)
	assert.Equal(t, "00", *td.BidNtceOrd)
	assert.NotEmpty(t, td.Raw)
	assert.Equal(t, now, td.UpdatedAt)
}

func TestNormalize_NoOrdinal(t *testing.T) {
	td, ok := Normalize(map[string]any{"bidNtceNo": "2026001"}, time.Now())
	require.True(t, ok)
	assert.Equal(t, "2026001", td.BidNo)
	assert.Nil(t, td.BidNtceOrd)
}

func TestNormalize_DropsUnkeyedItems(t *testing.T) {
	_, ok := Normalize(map[string]any{"bidNtceNm": "제목만 있는 공고"}, time.Now())
	assert.False(t, ok)

	_, ok = Normalize(map[string]any{"bidNtceNo": "   "}, time.Now())
	assert.False(t, ok)
}

func TestNormalize_CaseInsensitiveKeys(t *testing.T) {
	td, ok := Normalize(map[string]any{
		"BIDNTCENO": "2026002",
		"BidNtceNm": "대소문자 혼용",
	}, time.Now())
	require.True(t, ok)
	assert.Equal(t, "2026002", td.BidNo)
	assert.Equal(t, "대소문자 혼용", *td.Title)
}

func TestNormalize_EstimatedOnlyBudget(t *testing.T) {
	td, ok := Normalize(map[string]any{
		"bidNtceNo":   "2026003",
		"presmptPrce": "500,000",
	}, time.Now())
	require.True(t, ok)
	assert.Nil(t, td.BaseAmount)
	require.NotNil(t, td.Budget)
	assert.Equal(t, float64(500000), *td.Budget)
}

func TestParseAmount(t *testing.T) {
	v := ParseAmount("1,234,500")
	require.NotNil(t, v)
	assert.Equal(t, float64(1234500), *v)

	v = ParseAmount(float64(42))
	require.NotNil(t, v)
	assert.Equal(t, float64(42), *v)

	v = ParseAmount(" 10000 ")
	require.NotNil(t, v)
	assert.Equal(t, float64(10000), *v)

	assert.Nil(t, ParseAmount(""))
	assert.Nil(t, ParseAmount("abc"))
	assert.Nil(t, ParseAmount(nil))
	assert.Nil(t, ParseAmount(map[string]any{}))
}

func TestDateOnly(t *testing.T) {
	d := DateOnly("2026-02-04 23:51:00")
	require.NotNil(t, d)
	assert.Equal(t, "2026-02-04", d.Format("2006-01-02"))

	d = DateOnly("20260204")
	require.NotNil(t, d)
	assert.Equal(t, "2026-02-04", d.Format("2006-01-02"))

	d = DateOnly("202602042351")
	require.NotNil(t, d)
	assert.Equal(t, "2026-02-04", d.Format("2006-01-02"))

	assert.Nil(t, DateOnly("04/02/2026"))
	assert.Nil(t, DateOnly(""))
	assert.Nil(t, DateOnly(nil))
}

func TestNormalizeStamp(t *testing.T) {
	assert.Equal(t, "2026-02-04 23:51:00", NormalizeStamp("202602042351"))
	assert.Equal(t, "2026-02-04 23:51:09", NormalizeStamp("20260204235109"))
	// already separated or unrecognized input passes through
	assert.Equal(t, "2026-02-04 23:51:00", NormalizeStamp("2026-02-04 23:51:00"))
	assert.Equal(t, "n/a", NormalizeStamp("n/a"))
}
