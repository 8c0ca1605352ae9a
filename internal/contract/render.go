package contract

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/Domenick1991/artbooking/internal/service/booking"
)

var documentTemplate = template.Must(template.New("contract").Funcs(template.FuncMap{
	"money": func(cents int64, currency string) string {
		return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
	},
	// Signatures arrive as data URIs or uploaded image links.
	"signature": func(src string) template.URL {
		if strings.HasPrefix(src, "data:image/") || strings.HasPrefix(src, "https://") {
			return template.URL(src)
		}
		return ""
	},
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Performance contract {{.DocumentID}}</title></head>
<body>
<h1>Performance contract</h1>
<p>Document: {{.DocumentID}}</p>
<table>
<tr><th>Client</th><td>{{.Booking.ClientID}} ({{.Booking.ContactName}}, {{.Booking.ContactEmail}})</td></tr>
<tr><th>Artist</th><td>{{.Booking.ArtistID}}</td></tr>
<tr><th>Event</th><td>{{.Booking.EventType}} {{.Booking.EventDetails}}</td></tr>
<tr><th>Location</th><td>{{.Booking.Location}}</td></tr>
<tr><th>Starts</th><td>{{.Booking.StartTime.Format "2006-01-02 15:04 MST"}}</td></tr>
<tr><th>Ends</th><td>{{.Booking.EndTime.Format "2006-01-02 15:04 MST"}}</td></tr>
<tr><th>Wage</th><td>{{money .Booking.WageCents .Booking.Currency}}</td></tr>
<tr><th>Advance</th><td>{{money .Booking.AdvanceCents .Booking.Currency}}</td></tr>
</table>
<h2>Signatures</h2>
<p>Client: <img alt="client signature" src="{{signature .ClientSignature}}"></p>
<p>Artist: <img alt="artist signature" src="{{signature .ArtistSignature}}"></p>
<p>Signed {{.SignedAt.Format "2006-01-02 15:04 MST"}}</p>
</body>
</html>
`))

// RenderHTML produces the printable contract document.
func RenderHTML(doc booking.ContractDocument) ([]byte, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render contract %s: %w", doc.DocumentID, err)
	}
	return buf.Bytes(), nil
}
