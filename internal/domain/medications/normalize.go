package medications

import (
	"context"
	"strings"
)

// Defaults para sugerencias incompletas. La extracción por IA es entrada
// no confiable: se normaliza con valores seguros, nunca se rechaza.
const (
	PlaceholderName  = "Medicamento sin nombre"
	DefaultDosage    = "Según indicación"
	DefaultFixedTime = "08:00"
)

// Suggestion es el registro flojamente tipado que devuelve el extractor de
// recetas (OCR / IA). Cualquier campo puede venir vacío o inválido.
type Suggestion struct {
	Name         string
	Dosage       string
	Frequency    string
	Instructions string

	FixedTimes []string
	Meals      []SuggestedTrigger
}

// SuggestedTrigger llega como strings crudos del servicio externo.
type SuggestedTrigger struct {
	Meal   string
	Timing string
}

// Normalize convierte una sugerencia en un CreateInput válido.
// Horario vacío o inválido => fixed con una sola toma a las 08:00.
func Normalize(sug Suggestion) CreateInput {
	in := CreateInput{
		Name:         strings.TrimSpace(sug.Name),
		Dosage:       strings.TrimSpace(sug.Dosage),
		Frequency:    strings.TrimSpace(sug.Frequency),
		Instructions: strings.TrimSpace(sug.Instructions),
	}
	if in.Name == "" {
		in.Name = PlaceholderName
	}
	if in.Dosage == "" {
		in.Dosage = DefaultDosage
	}

	// Se prefieren horas fijas si vienen; si no, disparadores de comida.
	// Lo que no valide se descarta en silencio.
	times := make([]string, 0, len(sug.FixedTimes))
	for _, raw := range dedupeTimes(sug.FixedTimes) {
		if ValidClockTime(raw) {
			times = append(times, raw)
		}
	}
	if len(times) > 0 {
		in.ScheduleType = ScheduleFixed
		in.FixedTimes = times
		return in
	}

	triggers := make([]MealTrigger, 0, len(sug.Meals))
	for _, st := range sug.Meals {
		t := MealTrigger{
			Meal:   Meal(strings.ToLower(strings.TrimSpace(st.Meal))),
			Timing: MealTiming(strings.ToLower(strings.TrimSpace(st.Timing))),
		}
		if validMeal(t.Meal) && validTiming(t.Timing) {
			triggers = append(triggers, t)
		}
	}
	if len(triggers) > 0 {
		in.ScheduleType = ScheduleMealRelative
		in.MealTriggers = dedupeTriggers(triggers)
		return in
	}

	in.ScheduleType = ScheduleFixed
	in.FixedTimes = []string{DefaultFixedTime}
	return in
}

// ImportSuggestions normaliza y da de alta cada sugerencia.
// Una sugerencia que falle al persistir no aborta el resto.
func (s *Service) ImportSuggestions(ctx context.Context, ownerUserID string, sugs []Suggestion) ([]Medication, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return nil, ErrInvalidInput
	}

	out := make([]Medication, 0, len(sugs))
	for _, sug := range sugs {
		m, err := s.Create(ctx, ownerUserID, Normalize(sug))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
