package domain

import (
	"fmt"
	"reflect"
	"time"
)

// MaxImageSlots is the number of image columns on a car row (image1..image20).
const MaxImageSlots = 20

// Car is one vehicle listing. Columns are snake_case; the API speaks camelCase (see fields.go).
type Car struct {
	ListingID          int64     `gorm:"column:listing_id;primaryKey;autoIncrement" json:"listingId"`
	StockID            int       `gorm:"column:stock_id;index" json:"stockId"`
	Make               string    `gorm:"column:make;not null" json:"make"`
	Model              string    `gorm:"column:model;not null" json:"model"`
	Price              int       `gorm:"column:price;not null" json:"price"`
	Year               int       `gorm:"column:year;not null" json:"year"`
	Transmission       string    `gorm:"column:transmission" json:"transmission"`
	Mileage            int       `gorm:"column:mileage" json:"mileage"`
	EColor             string    `gorm:"column:e_color" json:"eColor"`
	IColor             string    `gorm:"column:i_color" json:"iColor"`
	Body               string    `gorm:"column:body" json:"body"`
	Fuel               string    `gorm:"column:fuel" json:"fuel"`
	Seats              int       `gorm:"column:seats" json:"seats"`
	Doors              int       `gorm:"column:doors" json:"doors"`
	Engine             string    `gorm:"column:engine" json:"engine"`
	VIN                string    `gorm:"column:vin" json:"vin"`
	Safety             string    `gorm:"column:safety;default:'Certified'" json:"safety"`
	Description        string    `gorm:"column:description" json:"description"`
	FinancingAvailable bool      `gorm:"column:financing_available;not null;default:false" json:"financingAvailable"`
	Sold               bool      `gorm:"column:sold;not null;default:false" json:"sold"`
	WeeklySpecial      bool      `gorm:"column:weekly_special;not null;default:false;index" json:"weeklySpecial"`
	Image1             *string   `gorm:"column:image1" json:"image1"`
	Image2             *string   `gorm:"column:image2" json:"image2"`
	Image3             *string   `gorm:"column:image3" json:"image3"`
	Image4             *string   `gorm:"column:image4" json:"image4"`
	Image5             *string   `gorm:"column:image5" json:"image5"`
	Image6             *string   `gorm:"column:image6" json:"image6"`
	Image7             *string   `gorm:"column:image7" json:"image7"`
	Image8             *string   `gorm:"column:image8" json:"image8"`
	Image9             *string   `gorm:"column:image9" json:"image9"`
	Image10            *string   `gorm:"column:image10" json:"image10"`
	Image11            *string   `gorm:"column:image11" json:"image11"`
	Image12            *string   `gorm:"column:image12" json:"image12"`
	Image13            *string   `gorm:"column:image13" json:"image13"`
	Image14            *string   `gorm:"column:image14" json:"image14"`
	Image15            *string   `gorm:"column:image15" json:"image15"`
	Image16            *string   `gorm:"column:image16" json:"image16"`
	Image17            *string   `gorm:"column:image17" json:"image17"`
	Image18            *string   `gorm:"column:image18" json:"image18"`
	Image19            *string   `gorm:"column:image19" json:"image19"`
	Image20            *string   `gorm:"column:image20" json:"image20"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Car) TableName() string {
	return "cars"
}

// Image returns the URL stored in slot n (1-based), or "" when the slot is empty.
func (c *Car) Image(n int) string {
	p := c.imageField(n)
	if p == nil || p.IsNil() {
		return ""
	}
	return p.Elem().String()
}

// SetImage writes slot n. An empty url clears the slot.
func (c *Car) SetImage(n int, url string) {
	p := c.imageField(n)
	if p == nil {
		return
	}
	if url == "" {
		p.Set(reflect.Zero(p.Type()))
		return
	}
	p.Set(reflect.ValueOf(&url))
}

// Images returns populated slots keyed by slot number.
func (c *Car) Images() map[int]string {
	out := make(map[int]string)
	for n := 1; n <= MaxImageSlots; n++ {
		if u := c.Image(n); u != "" {
			out[n] = u
		}
	}
	return out
}

// OccupiedSlots returns the set of slot numbers holding an image.
func (c *Car) OccupiedSlots() map[int]bool {
	out := make(map[int]bool)
	for n := range c.Images() {
		out[n] = true
	}
	return out
}

func (c *Car) imageField(n int) *reflect.Value {
	if n < 1 || n > MaxImageSlots {
		return nil
	}
	v := reflect.ValueOf(c).Elem().FieldByName(fmt.Sprintf("Image%d", n))
	return &v
}

// Columns snapshots the row as a column-name map (the shape the record store speaks).
func (c *Car) Columns() map[string]interface{} {
	cols := map[string]interface{}{
		"listing_id":          c.ListingID,
		"stock_id":            c.StockID,
		"make":                c.Make,
		"model":               c.Model,
		"price":               c.Price,
		"year":                c.Year,
		"transmission":        c.Transmission,
		"mileage":             c.Mileage,
		"e_color":             c.EColor,
		"i_color":             c.IColor,
		"body":                c.Body,
		"fuel":                c.Fuel,
		"seats":               c.Seats,
		"doors":               c.Doors,
		"engine":              c.Engine,
		"vin":                 c.VIN,
		"safety":              c.Safety,
		"description":         c.Description,
		"financing_available": c.FinancingAvailable,
		"sold":                c.Sold,
		"weekly_special":      c.WeeklySpecial,
		"created_at":          c.CreatedAt,
		"updated_at":          c.UpdatedAt,
	}
	for n := 1; n <= MaxImageSlots; n++ {
		if u := c.Image(n); u != "" {
			cols[ImageColumn(n)] = u
		} else {
			cols[ImageColumn(n)] = nil
		}
	}
	return cols
}

// View is the camelCase representation served by the API.
func (c *Car) View() map[string]interface{} {
	return FromColumns(c.Columns())
}

// ImageColumn is the column (and JSON key) for slot n.
func ImageColumn(n int) string {
	return fmt.Sprintf("image%d", n)
}
