package ics

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"schedsync/internal/category"
	"schedsync/internal/event"
	appLog "schedsync/internal/log"
)

const productID = "-//schedsync//schedule export//KO"

// dateLayouts are tried in order when reading the service's start/end
// strings. Date-only values produce all-day events.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

const dateOnly = "2006-01-02"

// ExportOptions controls how cached events are rendered as iCalendar.
type ExportOptions struct {
	// Name becomes the calendar's display name.
	Name string
	// Location is the zone for floating start/end values. Nil means time.Local.
	Location *time.Location
	// Registry labels events with their category, if set.
	Registry *category.Registry
	// Now stamps DTSTAMP. Zero means time.Now().
	Now time.Time
}

// Export writes events as a single VCALENDAR. Events whose start cannot be
// read are skipped and counted in the returned value.
func Export(w io.Writer, events []event.Event, opts ExportOptions) (skipped int, err error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRTimezone(opts.Location.String())
	if opts.Name != "" {
		cal.SetName(opts.Name)
	}

	for _, ev := range events {
		if err := addEvent(cal, ev, opts); err != nil {
			skipped++
			appLog.Error("ics export: event skipped", err, "no", derefInt(ev.No))
			continue
		}
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return skipped, fmt.Errorf("ics export: write: %w", err)
	}
	return skipped, nil
}

func addEvent(cal *ical.Calendar, ev event.Event, opts ExportOptions) error {
	if ev.Start == nil || *ev.Start == "" {
		return errors.New("missing start")
	}
	start, allDay, err := parseWhen(*ev.Start, opts.Location)
	if err != nil {
		return err
	}

	end := start
	if ev.End != nil && *ev.End != "" {
		if end, _, err = parseWhen(*ev.End, opts.Location); err != nil {
			return err
		}
	}
	// A date-only end on the day of a timed start parses to midnight.
	if end.Before(start) {
		end = start
	}

	ve := cal.AddEvent(eventUID(ev))
	ve.SetDtStampTime(opts.Now.UTC())

	if allDay {
		ve.SetAllDayStartAt(start)
		// DTEND is exclusive for all-day events.
		ve.SetAllDayEndAt(end.AddDate(0, 0, 1))
	} else {
		ve.SetStartAt(start)
		ve.SetEndAt(end)
	}

	if ev.Title != nil {
		ve.SetSummary(*ev.Title)
	}
	if loc := route(ev); loc != "" {
		ve.SetLocation(loc)
	}
	if desc := text(ev.Content); desc != "" {
		ve.SetDescription(desc)
	}
	if cat, ok := ev.Category(); ok && opts.Registry != nil {
		if c, ok := opts.Registry.Lookup(cat); ok {
			ve.AddProperty(ical.ComponentPropertyCategories, c.Label)
			if c.Color != "" {
				ve.AddProperty(ical.ComponentPropertyColor, c.Color)
			}
		}
	}
	return nil
}

func parseWhen(s string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateOnly, s, loc); err == nil {
		return t, true, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized time %q", s)
}

// eventUID is stable for events that carry a sequence number so that
// re-exports update rather than duplicate entries in subscribers.
func eventUID(ev event.Event) string {
	no, ok := ev.Key()
	if !ok {
		return uuid.NewString() + "@schedsync"
	}
	owner := "unknown"
	if ev.ID != nil && *ev.ID != "" {
		owner = ev.ID.String()
	}
	return "sch-" + strconv.FormatInt(no, 10) + "-" + owner + "@schedsync"
}

func route(ev event.Event) string {
	var from, to string
	if ev.StartArea != nil {
		from = *ev.StartArea
	}
	if ev.EndArea != nil {
		to = *ev.EndArea
	}
	switch {
	case from != "" && to != "":
		return from + " → " + to
	case from != "":
		return from
	default:
		return to
	}
}

// text renders a pass-through wire value for a text property.
func text(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func derefInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
