package render

import (
	"html"
	"html/template"
	"strings"
	"time"

	"github.com/BearBump/TrackView/internal/models"
)

const (
	badgeBase = "badge"

	// Placeholder shown when a status is empty.
	EmptyLabel = "—"

	NoEventsText = "Событий пока нет"

	DisplayLayout = "02.01.2006 15:04"
)

var badgeClasses = map[string]string{
	models.ShipmentStatusCreated:   "badge badge-created",
	models.ShipmentStatusEnRoute:   "badge badge-en_route",
	models.ShipmentStatusDelivered: "badge badge-delivered",
	models.ShipmentStatusProblem:   "badge badge-problem",
}

var statusLabels = map[string]string{
	models.ShipmentStatusCreated:   "Создан",
	models.ShipmentStatusEnRoute:   "В пути",
	models.ShipmentStatusDelivered: "Доставлен",
	models.ShipmentStatusProblem:   "Проблема",
}

// StatusBadgeClass maps a status or event type to CSS classes. Matching is
// case-insensitive. Anything mentioning "route" is shown as en route, even
// when it is not an exact status name.
func StatusBadgeClass(status string) string {
	s := strings.ToLower(status)
	if c, ok := badgeClasses[s]; ok {
		return c
	}
	if strings.Contains(s, "route") {
		return badgeClasses[models.ShipmentStatusEnRoute]
	}
	return badgeBase
}

// StatusLabel is total: unknown statuses are shown as is, empty ones as a dash.
func StatusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	if status != "" {
		return status
	}
	return EmptyLabel
}

func Escape(s string) string {
	return html.EscapeString(s)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Renderer turns shipments into display strings and HTML in a fixed time zone.
type Renderer struct {
	loc *time.Location
}

func New(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc}
}

// FormatTimestamp parses an ISO-8601 timestamp and formats it as a short
// date and time. Empty or unparsable input yields "".
func (r *Renderer) FormatTimestamp(iso string) string {
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return ""
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, iso); err == nil {
			return r.FormatTime(t)
		}
	}
	return ""
}

func (r *Renderer) FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(r.loc).Format(DisplayLayout)
}

// RenderTimeline renders events in the given order, one line each. Every
// interpolated value is HTML-escaped.
func (r *Renderer) RenderTimeline(events []*models.ShipmentEvent) template.HTML {
	var b strings.Builder
	b.WriteString(`<ul class="timeline">`)
	n := 0
	for _, e := range events {
		if e == nil {
			continue
		}
		n++
		b.WriteString(`<li class="timeline-item"><span class="`)
		b.WriteString(Escape(StatusBadgeClass(e.EventType)))
		b.WriteString(`">`)
		b.WriteString(Escape(StatusLabel(e.EventType)))
		b.WriteString(`</span>`)
		if e.Note != nil && *e.Note != "" {
			b.WriteString(` <span class="timeline-note">`)
			b.WriteString(Escape(*e.Note))
			b.WriteString(`</span>`)
		}
		b.WriteString(` <time class="timeline-time">`)
		b.WriteString(Escape(r.FormatTime(e.CreatedAt)))
		b.WriteString(`</time></li>`)
	}
	if n == 0 {
		b.WriteString(`<li class="timeline-empty">`)
		b.WriteString(Escape(NoEventsText))
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul>`)
	return template.HTML(b.String())
}

// ShipmentView is the display model of one shipment card.
type ShipmentView struct {
	ID           string        `json:"id"`
	TrackCode    string        `json:"track_code"`
	CustomerName string        `json:"customer_name,omitempty"`
	Status       string        `json:"status"`
	StatusLabel  string        `json:"status_label"`
	BadgeClass   string        `json:"badge_class"`
	CreatedAt    string        `json:"created_at"`
	Timeline     template.HTML `json:"timeline"`
}

func (r *Renderer) Shipment(s *models.Shipment, events []*models.ShipmentEvent) ShipmentView {
	status := models.CurrentStatus(s, events)
	v := ShipmentView{
		Status:      status,
		StatusLabel: StatusLabel(status),
		BadgeClass:  StatusBadgeClass(status),
		Timeline:    r.RenderTimeline(events),
	}
	if s != nil {
		v.ID = s.ID
		v.TrackCode = s.TrackCode
		v.CreatedAt = r.FormatTime(s.CreatedAt)
		if s.CustomerName != nil {
			v.CustomerName = *s.CustomerName
		}
	}
	return v
}

// Card renders a complete shipment card fragment, used by the live stream.
func (r *Renderer) Card(v ShipmentView) template.HTML {
	var b strings.Builder
	b.WriteString(`<article class="shipment" data-shipment-id="`)
	b.WriteString(Escape(v.ID))
	b.WriteString(`"><header><span class="track-code">`)
	b.WriteString(Escape(v.TrackCode))
	b.WriteString(`</span> <span class="`)
	b.WriteString(Escape(v.BadgeClass))
	b.WriteString(`">`)
	b.WriteString(Escape(v.StatusLabel))
	b.WriteString(`</span></header>`)
	if v.CustomerName != "" {
		b.WriteString(`<p class="customer">`)
		b.WriteString(Escape(v.CustomerName))
		b.WriteString(`</p>`)
	}
	if v.CreatedAt != "" {
		b.WriteString(`<p class="created">`)
		b.WriteString(Escape(v.CreatedAt))
		b.WriteString(`</p>`)
	}
	b.WriteString(string(v.Timeline))
	b.WriteString(`</article>`)
	return template.HTML(b.String())
}
