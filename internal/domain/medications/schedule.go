package medications

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DailyTarget devuelve cuántas tomas completan el día para el medicamento,
// en función de su configuración actual de horario.
// Mínimo 1 para no dividir por cero al calcular progreso.
func DailyTarget(m Medication) int {
	var n int
	switch m.ScheduleType {
	case ScheduleMealRelative:
		n = len(m.MealTriggers)
	default:
		n = len(m.FixedTimes)
	}
	if n < 1 {
		return 1
	}
	return n
}

// DueTimes devuelve los instantes del día `day` en que vence cada toma fija.
// Para horarios meal_relative no hay instantes de reloj; devuelve vacío.
func DueTimes(m Medication, day time.Time) []time.Time {
	if m.ScheduleType != ScheduleFixed {
		return nil
	}
	out := make([]time.Time, 0, len(m.FixedTimes))
	for _, ft := range m.FixedTimes {
		hh, mm, err := ParseClockTime(ft)
		if err != nil {
			continue
		}
		out = append(out, time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, day.Location()))
	}
	return out
}

// HasMealTrigger indica si el medicamento tiene un disparador (comida, timing).
func HasMealTrigger(m Medication, meal Meal, timing MealTiming) bool {
	for _, t := range m.MealTriggers {
		if t.Meal == meal && t.Timing == timing {
			return true
		}
	}
	return false
}

// ParseClockTime valida y descompone un "HH:MM" de reloj de pared.
func ParseClockTime(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h, m, nil
}

// ValidClockTime es el predicado de ParseClockTime.
func ValidClockTime(s string) bool {
	_, _, err := ParseClockTime(s)
	return err == nil
}
