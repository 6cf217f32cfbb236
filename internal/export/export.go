// Package export renders a route's orders as a spreadsheet-friendly CSV or
// as JSON.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"routedesk/internal/model"
	"routedesk/internal/urgency"
)

// BOM makes spreadsheet tools read the file as UTF-8.
const BOM = "\ufeff"

var ErrNoOrders = errors.New("no orders to export")

// Header is the CSV column row.
var Header = []string{
	"מספר",
	"שם לקוח",
	"טלפון",
	"כתובת",
	"עיר",
	"סטטוס",
	"ימים מאז יצירה",
}

// DefaultFilename is route-<UTC date>.<ext>.
func DefaultFilename(now time.Time, ext string) string {
	return fmt.Sprintf("route-%s.%s", now.UTC().Format(time.DateOnly), ext)
}

// Row renders the order at 0-based position i. Unparsable created dates
// leave the age column empty.
func Row(s urgency.Scorer, i int, o model.Order) []string {
	age := ""
	if days, ok := s.DaysSince(o.Created); ok {
		age = strconv.Itoa(days)
	}
	status := ""
	if o.OrderStatus != "" {
		status = o.OrderStatus.Label()
	}
	return []string{
		strconv.Itoa(i + 1),
		o.CustomerName,
		o.Phone,
		o.Address,
		o.City,
		status,
		age,
	}
}

// WriteCSV writes the BOM, the header and one row per order. Every cell is
// quoted and lines are separated by a bare newline.
func WriteCSV(w io.Writer, s urgency.Scorer, orders []model.Order) error {
	if len(orders) == 0 {
		return ErrNoOrders
	}
	var buf bytes.Buffer
	buf.WriteString(BOM)
	writeLine(&buf, Header)
	for i, o := range orders {
		buf.WriteByte('\n')
		writeLine(&buf, Row(s, i, o))
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func writeLine(buf *bytes.Buffer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(c, `"`, `""`))
		buf.WriteByte('"')
	}
}

// WriteJSON writes the orders as an indented JSON array.
func WriteJSON(w io.Writer, orders []model.Order) error {
	if len(orders) == 0 {
		return ErrNoOrders
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(orders)
}

// RouteOrders lists the orders behind a route's stops in stop order. Stops
// whose order is no longer known are rendered from the stop itself.
func RouteOrders(r model.ApprovedRoute, known []model.Order) []model.Order {
	byID := model.IndexOrders(known)
	out := make([]model.Order, 0, len(r.Stops))
	for _, st := range r.Stops {
		if o, ok := byID[st.ID]; ok {
			out = append(out, o)
			continue
		}
		out = append(out, model.Order{
			ID:           st.ID,
			CustomerName: st.CustomerName,
			Address:      st.Address,
			City:         st.City,
			Phone:        st.Phone,
		})
	}
	return out
}
