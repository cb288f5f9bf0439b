package doses

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"medication-tracker/internal/domain/caregivers"
	"medication-tracker/internal/domain/medications"
	"medication-tracker/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, medsSvc *medications.Service, grantsSvc *caregivers.Service) {
	r.Route("/medications/{medID}/doses", func(dr chi.Router) {
		dr.Post("/", recordDoseHandler(svc, medsSvc, grantsSvc))
		dr.Get("/", listDosesByMedicationHandler(svc, medsSvc, grantsSvc))

		// Deshacer la última toma de hoy
		dr.Delete("/last", undoDoseHandler(svc, medsSvc, grantsSvc))
	})

	r.Get("/medications/{medID}/adherence", getAdherenceHandler(svc, medsSvc, grantsSvc))

	// Historial del dueño, más reciente primero
	r.Get("/doses", listMyDosesHandler(svc))

	// Panel del día: cada medicamento con su adherencia recalculada
	r.Get("/me/adherence", myAdherenceHandler(svc, medsSvc))
	r.Get("/patients/{patientID}/adherence", patientAdherenceHandler(svc, medsSvc, grantsSvc))
}

type recordDoseRequest struct {
	Note string `json:"note"` // contexto libre; default "Manual"
}

type adherenceResponse struct {
	Taken     int  `json:"taken"`
	Target    int  `json:"target"`
	Completed bool `json:"completed"`
}

type entryResponse struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medication_id"`
	MedName      string    `json:"med_name"`
	TakenAt      time.Time `json:"taken_at"`
	Status       Status    `json:"status"`
	Note         string    `json:"note"`
}

type recordDoseResponse struct {
	Recorded  bool              `json:"recorded"`
	Entry     *entryResponse    `json:"entry,omitempty"`
	Adherence adherenceResponse `json:"adherence"`
}

type undoDoseResponse struct {
	Undone    bool              `json:"undone"`
	Adherence adherenceResponse `json:"adherence"`
}

type medicationAdherenceResponse struct {
	MedicationID string            `json:"medication_id"`
	Name         string            `json:"name"`
	Adherence    adherenceResponse `json:"adherence"`
}

// recordDoseHandler godoc
// @Summary Registrar una toma
// @Description Agrega una entrada taken al ledger y devuelve la adherencia recalculada del día. Un medID inexistente degrada a no-op (recorded=false), nunca a error duro. El dueño siempre puede registrar; un cuidador necesita grant activo con scope `doses:record`.
// @Tags doses
// @Accept json
// @Produce json
// @Param medID path string true "ID del medicamento"
// @Param payload body recordDoseRequest false "Contexto de la toma"
// @Success 200 {object} recordDoseResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /medications/{medID}/doses [post]
func recordDoseHandler(svc *Service, medsSvc *medications.Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medID := chi.URLParam(r, "medID")

		med, err := medsSvc.GetByID(r.Context(), medID)
		if err != nil {
			// Degrada silencioso: estado sin cambios, sin error.
			writeJSON(w, http.StatusOK, recordDoseResponse{Recorded: false})
			return
		}

		if med.OwnerUserID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), med.OwnerUserID, claims.UserID)
			if err != nil || !caregivers.HasScope(g, caregivers.ScopeDosesRecord) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		var req recordDoseRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req) // body opcional
		}

		res, err := svc.Record(r.Context(), medID, req.Note)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := recordDoseResponse{
			Recorded:  res.Recorded,
			Adherence: toAdherenceResponse(res.Adherence),
		}
		if res.Recorded {
			e := toEntryResponse(res.Entry)
			out.Entry = &e
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func undoDoseHandler(svc *Service, medsSvc *medications.Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medID := chi.URLParam(r, "medID")

		med, err := medsSvc.GetByID(r.Context(), medID)
		if err != nil {
			writeJSON(w, http.StatusOK, undoDoseResponse{Undone: false})
			return
		}

		if med.OwnerUserID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), med.OwnerUserID, claims.UserID)
			if err != nil || !caregivers.HasScope(g, caregivers.ScopeDosesRecord) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		res, err := svc.Undo(r.Context(), medID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, undoDoseResponse{
			Undone:    res.Undone,
			Adherence: toAdherenceResponse(res.Adherence),
		})
	}
}

func getAdherenceHandler(svc *Service, medsSvc *medications.Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medID := chi.URLParam(r, "medID")
		med, err := medsSvc.GetByID(r.Context(), medID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		if med.OwnerUserID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), med.OwnerUserID, claims.UserID)
			if err != nil || !caregivers.HasScope(g, caregivers.ScopeDosesRead) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		a, err := svc.Status(r.Context(), medID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toAdherenceResponse(a))
	}
}

func listDosesByMedicationHandler(svc *Service, medsSvc *medications.Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medID := chi.URLParam(r, "medID")
		med, err := medsSvc.GetByID(r.Context(), medID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		if med.OwnerUserID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), med.OwnerUserID, claims.UserID)
			if err != nil || !caregivers.HasScope(g, caregivers.ScopeDosesRead) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		items, err := svc.HistoryByMedication(r.Context(), medID, parseLimit(r))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]entryResponse, 0, len(items))
		for _, e := range items {
			out = append(out, toEntryResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listMyDosesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.History(r.Context(), claims.UserID, parseLimit(r))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]entryResponse, 0, len(items))
		for _, e := range items {
			out = append(out, toEntryResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func myAdherenceHandler(svc *Service, medsSvc *medications.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		writeAdherenceBoard(w, r, svc, medsSvc, claims.UserID)
	}
}

func patientAdherenceHandler(svc *Service, medsSvc *medications.Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		if patientID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), patientID, claims.UserID)
			if err != nil || !caregivers.HasScope(g, caregivers.ScopeDosesRead) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		writeAdherenceBoard(w, r, svc, medsSvc, patientID)
	}
}

func writeAdherenceBoard(w http.ResponseWriter, r *http.Request, svc *Service, medsSvc *medications.Service, ownerID string) {
	meds, err := medsSvc.ListByOwner(r.Context(), ownerID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	statuses, err := svc.StatusFor(r.Context(), meds)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]medicationAdherenceResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, medicationAdherenceResponse{
			MedicationID: st.Medication.ID,
			Name:         st.Medication.Name,
			Adherence:    toAdherenceResponse(st.Adherence),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func toAdherenceResponse(a Adherence) adherenceResponse {
	return adherenceResponse{Taken: a.Taken, Target: a.Target, Completed: a.Completed}
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:           e.ID,
		MedicationID: e.MedicationID,
		MedName:      e.MedName,
		TakenAt:      e.TakenAt,
		Status:       e.Status,
		Note:         e.Note,
	}
}

func parseLimit(r *http.Request) int {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para no crear helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
