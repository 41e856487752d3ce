package routes

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minjaecho/defectwatch-backend/api/controllers"
	"github.com/minjaecho/defectwatch-backend/api/middleware"
	"github.com/minjaecho/defectwatch-backend/internal/defects"
	"github.com/minjaecho/defectwatch-backend/internal/dispatch"
	"github.com/minjaecho/defectwatch-backend/pkg/config"
	"github.com/minjaecho/defectwatch-backend/pkg/db"
	"github.com/minjaecho/defectwatch-backend/pkg/logger"
	pkgredis "github.com/minjaecho/defectwatch-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on. Optional
// collaborators may be nil; the affected routes answer with a dependency
// error instead of panicking.
type RouterParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DBPinger   db.Pinger
	Redis      *pkgredis.Client
	Defects    defects.Service
	Dispatch   dispatch.Service
	Enqueuer   controllers.Enqueuer
	Uploader   controllers.ObjectUploader
	Metrics    prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var redisPinger pkgredis.Pinger
	var idempotencyStore pkgredis.IdempotencyStore
	if params.Redis != nil {
		redisPinger = params.Redis
		idempotencyStore = params.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DBPinger, redisPinger))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Post("/defect-info", controllers.IngestDefect(params.Defects, params.Enqueuer, logg))
		r.Route("/defects", func(r chi.Router) {
			r.Get("/", controllers.ListDefects(params.Defects, logg))
			r.Get("/{defectId}", controllers.GetDefect(params.Defects, logg))
			r.Post("/{defectId}/status", controllers.ChangeDefectStatus(params.Dispatch, logg))
			r.Post("/{defectId}/followup", controllers.DefectFollowup(params.Dispatch, logg))
			r.Post("/{defectId}/schedule", controllers.ScheduleDefectRepair(params.Dispatch, logg))
		})

		r.Post("/upload-img-dev", controllers.UploadImageDev(cfg.Upload, logg))
		r.Post("/upload-img", controllers.UploadImage(params.Uploader, cfg.Upload, logg))
	})

	mountStaticData(r, cfg.Upload)

	return r
}

// mountStaticData serves dev uploads back at the static mount so image
// refs stored by /upload-img-dev resolve.
func mountStaticData(r chi.Router, cfg config.UploadConfig) {
	mount := cfg.StaticMount
	if mount == "" || cfg.DataDir == "" {
		return
	}
	if !strings.HasPrefix(mount, "/") {
		mount = "/" + mount
	}
	mount = strings.TrimSuffix(mount, "/")

	root := http.Dir(filepath.Clean(cfg.DataDir))
	r.Handle(mount+"/*", http.StripPrefix(mount+"/", http.FileServer(root)))
}
