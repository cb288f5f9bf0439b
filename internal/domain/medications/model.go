package medications

import "time"

// ScheduleType define cómo se anclan las tomas del medicamento.
// @Enum fixed, meal_relative
type ScheduleType string

const (
	ScheduleFixed        ScheduleType = "fixed"
	ScheduleMealRelative ScheduleType = "meal_relative"
)

// Meal define las comidas soportadas como disparador.
// @Enum breakfast, lunch, dinner
type Meal string

const (
	MealBreakfast Meal = "breakfast"
	MealLunch     Meal = "lunch"
	MealDinner    Meal = "dinner"
)

// MealTiming indica si la toma va antes o después de la comida.
type MealTiming string

const (
	TimingBefore MealTiming = "before"
	TimingAfter  MealTiming = "after"
)

// MealTrigger es un par (comida, antes/después).
type MealTrigger struct {
	Meal   Meal
	Timing MealTiming
}

// Medication representa un medicamento registrado por el usuario.
// Invariante: según ScheduleType, solo uno de FixedTimes / MealTriggers
// está poblado; el otro se ignora.
type Medication struct {
	ID          string
	OwnerUserID string

	Name         string
	Dosage       string
	Frequency    string // texto libre: "cada 12h"
	Instructions string

	ScheduleType ScheduleType
	FixedTimes   []string // "HH:MM", orden de entrada
	MealTriggers []MealTrigger

	CreatedAt time.Time
	UpdatedAt time.Time
}
