package directory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"courier-dispatch/internal/geo"
)

// Row is one line of a menu CSV: restaurant, item, price_eur, latitude,
// longitude. The same file feeds both the standalone CSV directory and the
// Postgres importer.
type Row struct {
	Restaurant string
	Item       string
	PriceEUR   float64
	Lat        float64
	Lon        float64
}

// ReadRows parses a menu CSV with a header line. Rows with a missing name,
// missing item, or unparseable coordinates are skipped, not fatal.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty csv")
	}

	col := map[string]int{}
	for i, name := range records[0] {
		col[name] = i
	}
	for _, required := range []string{"restaurant", "item", "latitude", "longitude"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("csv missing column %q", required)
		}
	}

	var rows []Row
	for _, rec := range records[1:] {
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		name := get("restaurant")
		item := get("item")
		if name == "" || item == "" {
			continue
		}
		lat, errLat := strconv.ParseFloat(get("latitude"), 64)
		lon, errLon := strconv.ParseFloat(get("longitude"), 64)
		if errLat != nil || errLon != nil {
			continue
		}
		price, _ := strconv.ParseFloat(get("price_eur"), 64)
		rows = append(rows, Row{Restaurant: name, Item: item, PriceEUR: price, Lat: lat, Lon: lon})
	}
	return rows, nil
}

func ReadRowsFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRows(f)
}

// CSV is an in-memory Directory built from a menu file. The first occurrence
// of a restaurant name wins its coordinates.
type CSV struct {
	order  []Restaurant
	coords map[string]geo.Point
	menus  map[string][]string
}

func NewCSV(rows []Row) *CSV {
	c := &CSV{coords: make(map[string]geo.Point), menus: make(map[string][]string)}
	for _, row := range rows {
		key := NormalizeName(row.Restaurant)
		if _, seen := c.coords[key]; !seen {
			c.coords[key] = geo.Point{Lat: row.Lat, Lon: row.Lon}
			c.order = append(c.order, Restaurant{Name: row.Restaurant, Pos: geo.Point{Lat: row.Lat, Lon: row.Lon}})
		}
		c.menus[key] = append(c.menus[key], row.Item)
	}
	return c
}

func LoadCSV(path string) (*CSV, error) {
	rows, err := ReadRowsFile(path)
	if err != nil {
		return nil, err
	}
	return NewCSV(rows), nil
}

func (c *CSV) Lookup(_ context.Context, name string) (geo.Point, bool, error) {
	p, ok := c.coords[NormalizeName(name)]
	return p, ok, nil
}

func (c *CSV) Restaurants(_ context.Context) ([]Restaurant, error) {
	out := make([]Restaurant, len(c.order))
	copy(out, c.order)
	return out, nil
}

func (c *CSV) Menu(_ context.Context, name string) ([]string, error) {
	items := c.menus[NormalizeName(name)]
	out := make([]string, len(items))
	copy(out, items)
	return out, nil
}
