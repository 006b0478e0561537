package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pairchat/internal/auth"
	"pairchat/internal/dispatch"
	"pairchat/internal/hub"
	"pairchat/internal/media"
	"pairchat/internal/store"
	"pairchat/internal/unread"
)

type Server struct {
	hub          *hub.Hub
	log          *zap.Logger
	pushBuffer   int
	writeTimeout time.Duration

	handler *Handler
	authn   auth.Authenticator
	authOpt auth.Options

	uploadsDir string
	uploadsURL string
}

type Options struct {
	Store        store.Store
	Users        store.UserDirectory
	Unread       *unread.Service
	Dispatch     *dispatch.Dispatcher
	Hub          *hub.Hub
	Media        media.Store
	Authn        auth.Authenticator
	AuthOpt      auth.Options
	Log          *zap.Logger
	PushBuffer   int
	WriteTimeout time.Duration
	SendRPS      float64
	SendBurst    int
	UploadsDir   string
	UploadsURL   string
}

func NewServer(opt Options) *Server {
	if opt.PushBuffer <= 0 {
		opt.PushBuffer = 256
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = 5 * time.Second
	}
	return &Server{
		hub:          opt.Hub,
		log:          opt.Log,
		pushBuffer:   opt.PushBuffer,
		writeTimeout: opt.WriteTimeout,
		authn:        opt.Authn,
		authOpt:      opt.AuthOpt,
		uploadsDir:   opt.UploadsDir,
		uploadsURL:   opt.UploadsURL,
		handler: &Handler{
			store:    opt.Store,
			users:    opt.Users,
			unread:   opt.Unread,
			dispatch: opt.Dispatch,
			media:    opt.Media,
			limiter:  newSendLimiter(opt.SendRPS, opt.SendBurst),
			log:      opt.Log,
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Handle("/metrics", promhttp.Handler())
	if s.uploadsDir != "" && s.uploadsURL != "" {
		fs := http.StripPrefix(s.uploadsURL+"/", http.FileServer(http.Dir(s.uploadsDir)))
		r.Get(s.uploadsURL+"/*", fs.ServeHTTP)
	}

	authed := auth.Middleware(s.authn, s.authOpt)

	r.Group(func(r chi.Router) {
		r.Use(authed)
		r.Get("/ws", s.serveWS)

		r.Route("/api", func(r chi.Router) {
			r.Get("/contacts", s.handler.listContacts)
			r.Route("/messages/{peerID}", func(r chi.Router) {
				r.Get("/", s.handler.listMessages)
				r.Post("/", s.handler.sendMessage)
				r.Get("/unread", s.handler.unreadCount)
				r.Patch("/read", s.handler.markRead)
			})
		})
	})

	return r
}
