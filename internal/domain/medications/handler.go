package medications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"medication-tracker/internal/domain/caregivers"
	"medication-tracker/internal/middleware"
	"medication-tracker/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

// PrescriptionExtractor es el colaborador de IA que convierte el texto de una
// receta en sugerencias. Su salida es entrada no confiable: siempre pasa por
// Normalize antes de persistir. Puede ser nil (endpoint deshabilitado).
type PrescriptionExtractor interface {
	ExtractPrescription(ctx context.Context, prescriptionText string) ([]Suggestion, error)
}

func RegisterRoutes(r chi.Router, svc *Service, grantsSvc *caregivers.Service, extractor PrescriptionExtractor, caps capabilities.Resolver) {
	r.Route("/medications", func(mr chi.Router) {
		mr.Post("/", createMedicationHandler(svc))
		mr.Get("/", listMedicationsHandler(svc))

		mr.Post("/import", importSuggestionsHandler(svc))
		mr.Post("/extract", extractPrescriptionHandler(svc, extractor, caps))

		// Detalle (owner o cuidador con meds:read)
		mr.Get("/{medID}", getMedicationHandler(svc, grantsSvc))

		// Editar / borrar (owner o cuidador con meds:write)
		mr.Patch("/{medID}", updateMedicationHandler(svc, grantsSvc))
		mr.Delete("/{medID}", deleteMedicationHandler(svc, grantsSvc))
	})

	// Medicamentos de un paciente que me compartió su tracking
	r.Get("/patients/{patientID}/medications", listPatientMedicationsHandler(svc, grantsSvc))
}

type mealTriggerPayload struct {
	Meal   string `json:"meal" enums:"breakfast,lunch,dinner"`
	Timing string `json:"timing" enums:"before,after"`
}

type createMedicationRequest struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Instructions string `json:"instructions"`

	ScheduleType string               `json:"schedule_type" enums:"fixed,meal_relative"`
	FixedTimes   []string             `json:"fixed_times"` // "HH:MM"
	MealTriggers []mealTriggerPayload `json:"meal_triggers"`
}

type medicationResponse struct {
	ID           string               `json:"id"`
	OwnerUserID  string               `json:"owner_user_id"`
	Name         string               `json:"name"`
	Dosage       string               `json:"dosage"`
	Frequency    string               `json:"frequency"`
	Instructions string               `json:"instructions"`
	ScheduleType ScheduleType         `json:"schedule_type"`
	FixedTimes   []string             `json:"fixed_times,omitempty"`
	MealTriggers []mealTriggerPayload `json:"meal_triggers,omitempty"`
	DailyTarget  int                  `json:"daily_target"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

type updateMedicationRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name         *string `json:"name"`
	Dosage       *string `json:"dosage"`
	Frequency    *string `json:"frequency"`
	Instructions *string `json:"instructions"`

	// Para cambiar horario se manda schedule_type + el campo que corresponda.
	ScheduleType *string              `json:"schedule_type"`
	FixedTimes   []string             `json:"fixed_times"`
	MealTriggers []mealTriggerPayload `json:"meal_triggers"`
}

type suggestionPayload struct {
	Name         string               `json:"name"`
	Dosage       string               `json:"dosage"`
	Frequency    string               `json:"frequency"`
	Instructions string               `json:"instructions"`
	FixedTimes   []string             `json:"fixed_times"`
	Meals        []mealTriggerPayload `json:"meals"`
}

// createMedicationHandler godoc
// @Summary Registrar medicamento
// @Description Alta manual de un medicamento con horario fijo o relativo a comidas. Autenticación: `X-Debug-User-ID` (dev) o `Authorization: Bearer <token>` (prod).
// @Tags medications
// @Accept json
// @Produce json
// @Param payload body createMedicationRequest true "Datos del medicamento"
// @Success 201 {object} medicationResponse
// @Failure 400 {string} string "invalid json / horario inválido"
// @Failure 401 {string} string "unauthorized"
// @Router /medications [post]
func createMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Create(r.Context(), claims.UserID, CreateInput{
			Name:         req.Name,
			Dosage:       req.Dosage,
			Frequency:    req.Frequency,
			Instructions: req.Instructions,
			ScheduleType: ScheduleType(req.ScheduleType),
			FixedTimes:   req.FixedTimes,
			MealTriggers: toTriggers(req.MealTriggers),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, toMedicationResponse(m))
	}
}

func listMedicationsHandler(svc *Service) http.HandlerFunc {
	// Owner-only (los cuidadores usan /patients/{patientID}/medications)
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]medicationResponse, 0, len(items))
		for _, m := range items {
			out = append(out, toMedicationResponse(m))
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func getMedicationHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medID := chi.URLParam(r, "medID")
		m, err := svc.GetByID(r.Context(), medID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		// Owner bypass; cuidador requiere meds:read
		if m.OwnerUserID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), m.OwnerUserID, claims.UserID)
			if err != nil || !caregivers.HasScope(g, caregivers.ScopeMedsRead) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		writeJSON(w, http.StatusOK, toMedicationResponse(m))
	}
}

func updateMedicationHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medID := chi.URLParam(r, "medID")
		current, err := svc.GetByID(r.Context(), medID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		if current.OwnerUserID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), current.OwnerUserID, claims.UserID)
			if err != nil || !caregivers.HasScope(g, caregivers.ScopeMedsWrite) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		var req updateMedicationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		in := UpdateInput{
			Name:         req.Name,
			Dosage:       req.Dosage,
			Frequency:    req.Frequency,
			Instructions: req.Instructions,
			FixedTimes:   req.FixedTimes,
			MealTriggers: toTriggers(req.MealTriggers),
		}
		if req.ScheduleType != nil {
			st := ScheduleType(*req.ScheduleType)
			in.ScheduleType = &st
		}

		updated, err := svc.Update(r.Context(), medID, in)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrNotFound):
				http.Error(w, "medication not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, toMedicationResponse(updated))
	}
}

// deleteMedicationHandler quita el medicamento de la lista. Su historial en
// el ledger se conserva.
func deleteMedicationHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medID := chi.URLParam(r, "medID")
		m, err := svc.GetByID(r.Context(), medID)
		if err != nil {
			// Borrar algo inexistente degrada a no-op.
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if m.OwnerUserID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), m.OwnerUserID, claims.UserID)
			if err != nil || !caregivers.HasScope(g, caregivers.ScopeMedsWrite) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		if err := svc.Delete(r.Context(), medID); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// importSuggestionsHandler godoc
// @Summary Importar sugerencias de medicamentos
// @Description Ingesta de registros flojamente tipados (salida de IA). Se normalizan con defaults seguros; un horario vacío o inválido queda como fixed 08:00.
// @Tags medications
// @Accept json
// @Produce json
// @Param payload body []suggestionPayload true "Sugerencias"
// @Success 201 {array} medicationResponse
// @Router /medications/import [post]
func importSuggestionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req []suggestionPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		created, err := svc.ImportSuggestions(r.Context(), claims.UserID, toSuggestions(req))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]medicationResponse, 0, len(created))
		for _, m := range created {
			out = append(out, toMedicationResponse(m))
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

type extractRequest struct {
	PrescriptionText string `json:"prescription_text"`
}

// extractPrescriptionHandler manda el texto de la receta al extractor de IA
// y da de alta las sugerencias normalizadas. Gated por plan
// (ai:extract_prescription) cuando hay resolver configurado.
func extractPrescriptionHandler(svc *Service, extractor PrescriptionExtractor, caps capabilities.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if extractor == nil {
			http.Error(w, "extraction not configured", http.StatusServiceUnavailable)
			return
		}

		if caps != nil {
			allowed, err := caps.Has(r.Context(), claims.UserID, capabilities.CapExtractPrescription)
			if err != nil || !allowed {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.PrescriptionText) == "" {
			http.Error(w, "prescription_text required", http.StatusBadRequest)
			return
		}

		sugs, err := extractor.ExtractPrescription(r.Context(), req.PrescriptionText)
		if err != nil {
			http.Error(w, "extraction failed", http.StatusBadGateway)
			return
		}

		created, err := svc.ImportSuggestions(r.Context(), claims.UserID, sugs)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]medicationResponse, 0, len(created))
		for _, m := range created {
			out = append(out, toMedicationResponse(m))
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func listPatientMedicationsHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	// Cuidador con grant activo + meds:read
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		if patientID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), patientID, claims.UserID)
			if err != nil || !caregivers.HasScope(g, caregivers.ScopeMedsRead) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		items, err := svc.ListByOwner(r.Context(), patientID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]medicationResponse, 0, len(items))
		for _, m := range items {
			out = append(out, toMedicationResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toMedicationResponse(m Medication) medicationResponse {
	return medicationResponse{
		ID:           m.ID,
		OwnerUserID:  m.OwnerUserID,
		Name:         m.Name,
		Dosage:       m.Dosage,
		Frequency:    m.Frequency,
		Instructions: m.Instructions,
		ScheduleType: m.ScheduleType,
		FixedTimes:   m.FixedTimes,
		MealTriggers: fromTriggers(m.MealTriggers),
		DailyTarget:  DailyTarget(m),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toTriggers(in []mealTriggerPayload) []MealTrigger {
	out := make([]MealTrigger, 0, len(in))
	for _, t := range in {
		out = append(out, MealTrigger{
			Meal:   Meal(strings.ToLower(strings.TrimSpace(t.Meal))),
			Timing: MealTiming(strings.ToLower(strings.TrimSpace(t.Timing))),
		})
	}
	return out
}

func fromTriggers(in []MealTrigger) []mealTriggerPayload {
	if len(in) == 0 {
		return nil
	}
	out := make([]mealTriggerPayload, 0, len(in))
	for _, t := range in {
		out = append(out, mealTriggerPayload{Meal: string(t.Meal), Timing: string(t.Timing)})
	}
	return out
}

func toSuggestions(in []suggestionPayload) []Suggestion {
	out := make([]Suggestion, 0, len(in))
	for _, p := range in {
		sug := Suggestion{
			Name:         p.Name,
			Dosage:       p.Dosage,
			Frequency:    p.Frequency,
			Instructions: p.Instructions,
			FixedTimes:   p.FixedTimes,
		}
		for _, m := range p.Meals {
			sug.Meals = append(sug.Meals, SuggestedTrigger{Meal: m.Meal, Timing: m.Timing})
		}
		out = append(out, sug)
	}
	return out
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para no crear helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
