package router

import (
	"database/sql"
	_ "embed"
	"net/http"
	"os"

	"medication-tracker/internal/adapters/notify/console"
	mem "medication-tracker/internal/adapters/storage/memory"
	pg "medication-tracker/internal/adapters/storage/postgres"
	"medication-tracker/internal/domain/caregivers"
	"medication-tracker/internal/domain/doses"
	"medication-tracker/internal/domain/meals"
	"medication-tracker/internal/domain/medications"
	"medication-tracker/internal/middleware"
	"medication-tracker/internal/platform/logger"
	"medication-tracker/internal/ports/auth"
	"medication-tracker/internal/ports/capabilities"
	"medication-tracker/internal/ports/notify"
	"medication-tracker/internal/reminders"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed openapi.json
var openAPISpec []byte

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Extractor de recetas; nil => endpoint /medications/extract deshabilitado.
	Extractor medications.PrescriptionExtractor

	// Gate de capabilities de plan; nil => extract sin gate.
	Capabilities capabilities.Resolver

	// Canal de recordatorios; nil => log estructurado.
	Notifier notify.Notifier

	Log       logger.Logger
	Reminders reminders.Config
}

// NewRouter arma el handler HTTP y el scheduler de recordatorios.
// El caller es dueño del ciclo de vida del scheduler (Start/Stop).
func NewRouter(opts Options) (http.Handler, *reminders.Scheduler) {
	log := opts.Log
	if log == nil {
		log = logger.NewFromEnv()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/docs/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(openAPISpec)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/openapi.json"),
	))

	var (
		medRepo    medications.Repository
		doseRepo   doses.Repository
		mealRepo   meals.Repository
		grantsRepo caregivers.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			} else {
				log.Warn("postgres unavailable, using in-memory storage", map[string]any{"err": err.Error()})
			}
		}
	}

	if db != nil {
		medRepo = pg.NewMedicationsRepo(db)
		doseRepo = pg.NewDosesRepo(db)
		mealRepo = pg.NewMealsRepo(db)
		grantsRepo = pg.NewCaregiversRepo(db)
	} else {
		medRepo = mem.NewMedicationRepo()
		doseRepo = mem.NewDoseRepo()
		mealRepo = mem.NewMealRepo()
		grantsRepo = mem.NewCaregiversRepo()
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = console.New(log)
	}

	// Services por módulo. El recorder y el scheduler se necesitan mutuamente:
	// primero el recorder sin listener, después el scheduler, y se conectan.
	dosesSvc := doses.NewService(doseRepo, medRepo, nil)
	scheduler := reminders.NewScheduler(opts.Reminders, medRepo, dosesSvc, notifier, log)
	dosesSvc.SetListener(scheduler)

	medsSvc := medications.NewService(medRepo, scheduler)
	mealsSvc := meals.NewService(mealRepo, scheduler)
	grantsSvc := caregivers.NewService(grantsRepo)

	// Rutas por módulo
	medications.RegisterRoutes(r, medsSvc, grantsSvc, opts.Extractor, opts.Capabilities)
	doses.RegisterRoutes(r, dosesSvc, medsSvc, grantsSvc)
	meals.RegisterRoutes(r, mealsSvc)
	caregivers.RegisterRoutes(r, grantsSvc)
	reminders.RegisterRoutes(r, scheduler)

	return r, scheduler
}
