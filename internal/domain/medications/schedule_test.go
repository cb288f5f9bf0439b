package medications

import (
	"testing"
	"time"
)

func TestDailyTarget_Fixed(t *testing.T) {
	m := Medication{
		ScheduleType: ScheduleFixed,
		FixedTimes:   []string{"08:00", "20:00"},
	}
	if got := DailyTarget(m); got != 2 {
		t.Fatalf("expected target 2, got %d", got)
	}
}

func TestDailyTarget_MealRelative(t *testing.T) {
	m := Medication{
		ScheduleType: ScheduleMealRelative,
		MealTriggers: []MealTrigger{
			{Meal: MealBreakfast, Timing: TimingBefore},
			{Meal: MealLunch, Timing: TimingAfter},
			{Meal: MealDinner, Timing: TimingAfter},
		},
	}
	if got := DailyTarget(m); got != 3 {
		t.Fatalf("expected target 3, got %d", got)
	}
}

func TestDailyTarget_NeverZero(t *testing.T) {
	// Configuración vacía (no debería pasar validación, pero el target
	// nunca puede ser 0 para no romper el cálculo de progreso).
	if got := DailyTarget(Medication{ScheduleType: ScheduleFixed}); got != 1 {
		t.Fatalf("expected floor 1, got %d", got)
	}
	if got := DailyTarget(Medication{ScheduleType: ScheduleMealRelative}); got != 1 {
		t.Fatalf("expected floor 1, got %d", got)
	}
}

func TestDueTimes_FixedSchedule(t *testing.T) {
	m := Medication{
		ScheduleType: ScheduleFixed,
		FixedTimes:   []string{"08:00", "20:30"},
	}
	day := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	due := DueTimes(m, day)
	if len(due) != 2 {
		t.Fatalf("expected 2 due times, got %d", len(due))
	}
	if due[0].Hour() != 8 || due[0].Minute() != 0 {
		t.Fatalf("expected first due 08:00, got %v", due[0])
	}
	if due[1].Hour() != 20 || due[1].Minute() != 30 {
		t.Fatalf("expected second due 20:30, got %v", due[1])
	}
	if due[0].Day() != day.Day() {
		t.Fatalf("due times must be anchored to the given day")
	}
}

func TestDueTimes_MealRelative_Empty(t *testing.T) {
	m := Medication{
		ScheduleType: ScheduleMealRelative,
		MealTriggers: []MealTrigger{{Meal: MealLunch, Timing: TimingBefore}},
	}
	if got := DueTimes(m, time.Now()); len(got) != 0 {
		t.Fatalf("meal_relative has no clock due times, got %d", len(got))
	}
}

func TestHasMealTrigger(t *testing.T) {
	m := Medication{
		ScheduleType: ScheduleMealRelative,
		MealTriggers: []MealTrigger{{Meal: MealLunch, Timing: TimingBefore}},
	}
	if !HasMealTrigger(m, MealLunch, TimingBefore) {
		t.Fatalf("expected trigger (lunch, before)")
	}
	if HasMealTrigger(m, MealLunch, TimingAfter) {
		t.Fatalf("unexpected trigger (lunch, after)")
	}
	if HasMealTrigger(m, MealDinner, TimingBefore) {
		t.Fatalf("unexpected trigger (dinner, before)")
	}
}

func TestValidClockTime(t *testing.T) {
	valid := []string{"00:00", "08:00", "23:59", " 12:30 "}
	for _, s := range valid {
		if !ValidClockTime(s) {
			t.Fatalf("expected %q valid", s)
		}
	}

	invalid := []string{"", "24:00", "12:60", "8", "ocho", "12:3x", "-1:00"}
	for _, s := range invalid {
		if ValidClockTime(s) {
			t.Fatalf("expected %q invalid", s)
		}
	}
}
