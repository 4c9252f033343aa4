package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRow() map[string]interface{} {
	row := map[string]interface{}{
		"listing_id":          int64(7),
		"stock_id":            41,
		"make":                "Toyota",
		"model":               "Camry",
		"price":               18000,
		"year":                2020,
		"transmission":        "Automatic",
		"mileage":             45000,
		"e_color":             "White",
		"i_color":             "Black",
		"body":                "Sedan",
		"fuel":                "Gasoline",
		"seats":               5,
		"doors":               4,
		"engine":              "2.5L I4",
		"vin":                 "4T1B11HK5LU000000",
		"safety":              "Certified",
		"description":         "One owner",
		"financing_available": true,
		"sold":                false,
		"weekly_special":      false,
		"created_at":          time.Unix(1700000000, 0).UTC(),
		"updated_at":          time.Unix(1700000100, 0).UTC(),
	}
	for n := 1; n <= MaxImageSlots; n++ {
		row[ImageColumn(n)] = nil
	}
	row["image1"] = "https://abc.supabase.co/storage/v1/object/public/car-images/cars/7/image1.jpg"
	return row
}

func TestColumnMappingRoundTrip(t *testing.T) {
	row := sampleRow()
	assert.Equal(t, row, ToColumns(FromColumns(row)))

	view := FromColumns(row)
	assert.Equal(t, view, FromColumns(ToColumns(view)))
}

func TestColumnMapping_DocumentedPairs(t *testing.T) {
	view := FromColumns(map[string]interface{}{
		"e_color":             "Red",
		"i_color":             "Tan",
		"financing_available": true,
		"weekly_special":      true,
		"stock_id":            3,
	})
	assert.Equal(t, "Red", view["eColor"])
	assert.Equal(t, "Tan", view["iColor"])
	assert.Equal(t, true, view["financingAvailable"])
	assert.Equal(t, true, view["weeklySpecial"])
	assert.Equal(t, 3, view["stockId"])
}

func TestColumnMapping_DropsUnknownKeys(t *testing.T) {
	cols := ToColumns(map[string]interface{}{"make": "Honda", "bogus": 1, "e_color": "Red"})
	assert.Equal(t, map[string]interface{}{"make": "Honda"}, cols)
}

func TestFieldsAreOneToOne(t *testing.T) {
	seenJSON := map[string]bool{}
	seenCol := map[string]bool{}
	for _, f := range Fields {
		require.False(t, seenJSON[f.JSON], f.JSON)
		require.False(t, seenCol[f.Column], f.Column)
		seenJSON[f.JSON] = true
		seenCol[f.Column] = true
	}
	assert.Len(t, Fields, 23+MaxImageSlots)
}

func TestCoerce(t *testing.T) {
	price, _ := FieldByJSON("price")
	v, err := price.Coerce(float64(18000))
	require.NoError(t, err)
	assert.Equal(t, 18000, v)

	v, err = price.Coerce("18000")
	require.NoError(t, err)
	assert.Equal(t, 18000, v)

	_, err = price.Coerce(18000.5)
	assert.ErrorIs(t, err, ErrInvalidFieldValue)

	_, err = price.Coerce(true)
	assert.ErrorIs(t, err, ErrInvalidFieldValue)

	for _, huge := range []float64{1e300, -1e300, math.Inf(1), math.NaN(), float64(math.MaxInt)} {
		_, err = price.Coerce(huge)
		assert.ErrorIs(t, err, ErrInvalidFieldValue, huge)
	}
	v, err = price.Coerce(float64(math.MinInt))
	require.NoError(t, err)
	assert.Equal(t, math.MinInt, v)

	sold, _ := FieldByJSON("sold")
	v, err = sold.Coerce("true")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	mk, _ := FieldByJSON("make")
	_, err = mk.Coerce(map[string]interface{}{})
	assert.ErrorIs(t, err, ErrInvalidFieldValue)
}

func TestCarImages(t *testing.T) {
	var c Car
	c.SetImage(3, "https://x/3.jpg")
	c.SetImage(20, "https://x/20.jpg")
	c.SetImage(21, "ignored")

	assert.Equal(t, "https://x/3.jpg", c.Image(3))
	require.NotNil(t, c.Image3)
	assert.Equal(t, map[int]string{3: "https://x/3.jpg", 20: "https://x/20.jpg"}, c.Images())
	assert.Equal(t, map[int]bool{3: true, 20: true}, c.OccupiedSlots())

	c.SetImage(3, "")
	assert.Nil(t, c.Image3)
	assert.Equal(t, "", c.Image(3))

	view := c.View()
	assert.Nil(t, view["image3"])
	assert.Equal(t, "https://x/20.jpg", view["image20"])
}
