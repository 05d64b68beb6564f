// Package web is the REST surface of the shop: health, metrics, PIN login
// and CRUD-ish endpoints over the store services. The voice websocket is
// mounted here but implemented in internal/adapters/voice.
package web

import (
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"kirana-voice/internal/core"
	webui "kirana-voice/web"
)

// Deps wires the handler to the store services and the voice channel.
type Deps struct {
	Customers core.CustomerService
	Products  core.ProductService
	Invoices  core.InvoiceService
	Ledger    core.LedgerService
	Reminders core.ReminderService
	Summary   core.SummaryService

	// Voice is the websocket session controller; nil disables /ws/voice.
	Voice http.Handler

	JWTSecret      string
	OperatorPIN    string
	AdminPIN       string
	AllowedOrigins string
	Location       *time.Location
	Log            zerolog.Logger
}

// Handler holds the services behind the chi router.
type Handler struct {
	customers core.CustomerService
	products  core.ProductService
	invoices  core.InvoiceService
	ledger    core.LedgerService
	reminders core.ReminderService
	summary   core.SummaryService

	jwtSecret   string
	operatorPIN string
	adminPIN    string
	validate    *validator.Validate
	loc         *time.Location
	log         zerolog.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(deps Deps) http.Handler {
	staticFS, err := fs.Sub(webui.Static, "static")
	if err != nil {
		panic("web/static embed sub-FS failed: " + err.Error())
	}

	loc := deps.Location
	if loc == nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}

	h := &Handler{
		customers:   deps.Customers,
		products:    deps.Products,
		invoices:    deps.Invoices,
		ledger:      deps.Ledger,
		reminders:   deps.Reminders,
		summary:     deps.Summary,
		jwtSecret:   deps.JWTSecret,
		operatorPIN: deps.OperatorPIN,
		adminPIN:    deps.AdminPIN,
		validate:    validator.New(),
		loc:         loc,
		log:         deps.Log.With().Str("component", "web").Logger(),
	}

	fileServer := http.FileServer(http.FS(staticFS))

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.log))
	r.Use(Recoverer(h.log))
	r.Use(CORS(deps.AllowedOrigins))

	// Public
	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/v1/auth/login", h.login)

	// Voice console (static SPA)
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		req.URL.Path = "/"
		fileServer.ServeHTTP(w, req)
	})
	r.Get("/static/*", http.StripPrefix("/static", fileServer).ServeHTTP)

	// Websocket upgrade; the token rides the query string.
	if deps.Voice != nil {
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Handle("/ws/voice", deps.Voice)
		})
	}

	// Protected JSON API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/customers/search", h.searchCustomers)
		r.Get("/customers/{id}", h.getCustomer)
		r.Post("/customers", h.createCustomer)

		r.Get("/products", h.listProducts)
		r.Post("/products", h.createProduct)
		r.Get("/products/low-stock", h.lowStock)

		r.Get("/invoices", h.listInvoices)
		r.Post("/invoices", h.createInvoice)
		r.Post("/invoices/{id}/cancel", h.cancelInvoice)

		r.Post("/ledger/payment", h.recordPayment)
		r.Post("/ledger/credit", h.addCredit)
		r.Get("/ledger/{customerID}", h.customerLedger)

		r.Get("/reminders", h.listReminders)
		r.Post("/reminders", h.createReminder)
		r.Post("/reminders/{id}/cancel", h.cancelReminder)

		r.Get("/summary/daily", h.dailySummary)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// idParam parses the named chi URL parameter as an int64 id.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
