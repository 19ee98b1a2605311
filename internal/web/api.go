package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phuslu/log"

	"nuha.dev/safetracker/internal/ingest"
	"nuha.dev/safetracker/internal/query"
	"nuha.dev/safetracker/internal/reading"
	"nuha.dev/safetracker/internal/util"
)

type ApiConfig struct {
	ListenAddr string
}

type Api struct {
	r      chi.Router
	s      *http.Server
	config *ApiConfig
	log    log.Logger
	ing    *ingest.Service
	qry    *query.Service
}

// mirrors the body size limit the reporting firmware was built against
const maxBodySize = 1 << 20

type errResponse struct {
	Error string `json:"error"`
}

func NewApi(ing *ingest.Service, qry *query.Service, config *ApiConfig) *Api {
	api := &Api{config: config, ing: ing, qry: qry}
	api.log = log.DefaultLogger
	api.log.Context = log.NewContext(nil).Str("module", "api-server").Value()
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Recoverer)

	r.Post("/api/location", api.postLocation)
	r.Get("/api/locations/recent", api.getRecent)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	api.r = r
	s := &http.Server{
		Addr:           api.config.ListenAddr,
		Handler:        api.r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	api.s = s
	return api
}

func (api *Api) Run() {
	api.log.Info().Msgf("starting api-server on : %s", api.s.Addr)
	err := api.s.ListenAndServe()
	if err != nil {
		api.log.Error().Err(err).Msg("")
		panic(err)
	}
}

// Handler exposes the router, mainly for tests.
func (api *Api) Handler() http.Handler {
	return api.r
}

func (api *Api) postLocation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		util.JsonWrite(w, http.StatusRequestEntityTooLarge, errResponse{Error: "payload too large"})
		return
	}
	rec, err := api.ing.Ingest(r.Context(), body)
	if err != nil {
		if errors.Is(err, reading.ErrInvalidCoordinates) {
			util.JsonWrite(w, http.StatusBadRequest, errResponse{Error: "invalid latitude/longitude"})
		} else if errors.Is(err, reading.ErrBadPayload) {
			util.JsonWrite(w, http.StatusBadRequest, errResponse{Error: "malformed payload"})
		} else {
			util.JsonWrite(w, http.StatusInternalServerError, errResponse{Error: err.Error()})
		}
		return
	}
	util.JsonWrite(w, http.StatusOK, rec)
}

func (api *Api) getRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	recs, err := api.qry.ListRecent(r.Context(), limit)
	if err != nil {
		util.JsonWrite(w, http.StatusInternalServerError, errResponse{Error: "failed to fetch locations"})
		return
	}
	util.JsonWrite(w, http.StatusOK, recs)
}
