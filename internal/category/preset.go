package category

import "fmt"

const (
	PresetSchedule = "schedule"
	PresetCalendar = "calendar"
)

// scheduleCategories is the set used by the schedule service (meals,
// exercise, routes).
var scheduleCategories = []Category{
	{Color: "success", Label: "일정", Value: 1},
	{Color: "error", Label: "아침", Value: 2},
	{Color: "warning", Label: "점심", Value: 3},
	{Color: "", Label: "저녁", Value: 4},
	{Color: "info", Label: "운동", Value: 5},
	{Color: "secondary", Label: "경로", Value: 6},
}

var calendarCategories = []Category{
	{Color: "error", Label: "Personal", Value: 1},
	{Color: "primary", Label: "Business", Value: 2},
	{Color: "warning", Label: "Family", Value: 3},
	{Color: "success", Label: "Holiday", Value: 4},
	{Color: "info", Label: "ETC", Value: 5},
}

// Schedule returns the default schedule registry.
func Schedule() *Registry {
	return mustNew(scheduleCategories)
}

// Calendar returns the generic calendar registry.
func Calendar() *Registry {
	return mustNew(calendarCategories)
}

// Preset returns a registry by name. An empty name selects the schedule set.
func Preset(name string) (*Registry, error) {
	switch name {
	case "", PresetSchedule:
		return Schedule(), nil
	case PresetCalendar:
		return Calendar(), nil
	default:
		return nil, fmt.Errorf("category: unknown preset %q", name)
	}
}

func mustNew(cats []Category) *Registry {
	r, err := New(cats)
	if err != nil {
		panic(err)
	}
	return r
}
