package api

import (
	"time"

	"github.com/gorilla/mux"
)

// Handlers groups everything the router serves.
type Handlers struct {
	System    *SystemHandler
	Calc      *CalcHandler
	Projects  *ProjectsHandler
	Session   *SessionHandler
	Share     *ShareHandler
	Narrative *NarrativeHandler
	Admin     *AdminHandler
}

func SetupRoutes(h Handlers, version, buildTime string, timeout time.Duration) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(TimeoutMiddleware(timeout))

	// Open endpoints
	r.HandleFunc("/version", h.System.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", h.System.HealthHandler).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/calc/amount", h.Calc.Amount).Methods("POST")
	v1.HandleFunc("/calc/advice", h.Calc.Advice).Methods("POST")

	v1.HandleFunc("/projects", h.Projects.List).Methods("GET")
	v1.HandleFunc("/projects", h.Projects.Save).Methods("POST")
	v1.HandleFunc("/projects/import", h.Projects.Import).Methods("POST")
	v1.HandleFunc("/projects/{id}", h.Projects.Get).Methods("GET")
	v1.HandleFunc("/projects/{id}", h.Projects.Delete).Methods("DELETE")
	v1.HandleFunc("/projects/{id}/file", h.Projects.File).Methods("GET")
	v1.HandleFunc("/projects/{id}/workbook", h.Projects.Workbook).Methods("GET")
	v1.HandleFunc("/projects/{id}/narrative", h.Projects.Narrative).Methods("POST")

	v1.HandleFunc("/session", h.Session.Get).Methods("GET")
	v1.HandleFunc("/session", h.Session.Update).Methods("PUT")
	v1.HandleFunc("/session/save", h.Session.Save).Methods("POST")
	v1.HandleFunc("/session/reset", h.Session.Reset).Methods("POST")
	v1.HandleFunc("/session/recover", h.Session.Recover).Methods("POST")
	v1.HandleFunc("/session/open/{id}", h.Session.Open).Methods("POST")

	v1.HandleFunc("/draft", h.Session.DraftStatus).Methods("GET")
	v1.HandleFunc("/draft", h.Session.DiscardDraft).Methods("DELETE")

	v1.HandleFunc("/share", h.Share.Encode).Methods("POST")
	v1.HandleFunc("/share/decode", h.Share.Decode).Methods("POST")

	v1.HandleFunc("/narrative", h.Narrative.Generate).Methods("POST")
	v1.HandleFunc("/jobs/dead-letters", h.Narrative.DeadLetters).Methods("GET")
	v1.HandleFunc("/jobs/{id:[0-9]+}", h.Narrative.Job).Methods("GET")

	admin := v1.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/schemas", h.Admin.ListSchemas).Methods("GET")
	admin.HandleFunc("/schemas/reload", h.Admin.ReloadSchemas).Methods("POST")
	admin.HandleFunc("/schemas/{version:.+}", h.Admin.PutSchema).Methods("PUT")
	admin.HandleFunc("/templates", h.Admin.ListTemplates).Methods("GET")
	admin.HandleFunc("/templates/{name}/{version}", h.Admin.PutTemplate).Methods("PUT")

	return r
}
