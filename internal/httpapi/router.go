package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"rfpquote/internal/catalog"
	"rfpquote/internal/config"
	"rfpquote/internal/matching"
	"rfpquote/internal/pipeline"
	"rfpquote/internal/pricing"
	"rfpquote/internal/storage"
)

const maxBodyBytes = 1 << 20

// Server holds the dependencies shared by the handlers. Handlers read the reference
// snapshot once per request.
type Server struct {
	cfg      config.Config
	db       *storage.DB
	sync     *catalog.SyncService
	matcher  *matching.Matcher
	calc     *pricing.Calculator
	analyzer *pipeline.Analyzer
	logger   zerolog.Logger
	now      func() time.Time
}

func NewServer(cfg config.Config, db *storage.DB, sync *catalog.SyncService, calc *pricing.Calculator, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		db:       db,
		sync:     sync,
		matcher:  matching.NewMatcher(cfg),
		calc:     calc,
		analyzer: pipeline.NewAnalyzer(db, sync.Holder(), calc, cfg),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(Recover(s.logger))
	r.Use(RequestID())
	r.Use(Logging(s.logger))
	r.Use(CORS(s.cfg.AllowOrigins))
	r.Use(LimitBytes(maxBodyBytes))

	r.Get("/health", s.health)

	r.Route("/api", func(api chi.Router) {
		api.Route("/catalog", func(c chi.Router) {
			c.Get("/", s.listCatalog)
			c.Post("/search", s.searchCatalog)
			c.Post("/compare", s.compareProducts)
			c.Post("/upload", s.uploadCatalog)
			c.Get("/{sku}", s.getProduct)
			c.Put("/{sku}", s.putProduct)
			c.Delete("/{sku}", s.deleteProduct)
		})

		api.Post("/match", s.match)
		api.Post("/quote", s.quote)

		api.Route("/test-pricing", func(t chi.Router) {
			t.Get("/", s.listTests)
			t.Get("/{name}", s.getTest)
			t.Put("/{name}", s.putTest)
			t.Delete("/{name}", s.deleteTest)
		})

		api.Get("/discount-tiers", s.listTiers)
		api.Put("/discount-tiers", s.putTiers)

		api.Route("/rfps", func(rf chi.Router) {
			rf.Get("/", s.listRFPs)
			rf.Post("/", s.createRFP)
			rf.Get("/scan", s.scanRFPs)
			rf.Get("/prioritized", s.prioritizeRFPs)
			rf.Get("/{id}", s.getRFP)
			rf.Post("/{id}/analyze", s.analyzeRFP)
		})

		api.Post("/chat", s.chat)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(r.Body)
}
