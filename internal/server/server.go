// Package server wires the stores, domain services and HTTP routes together.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/ourslists/internal/backup"
	"github.com/dukerupert/ourslists/internal/clock"
	"github.com/dukerupert/ourslists/internal/docstore"
	"github.com/dukerupert/ourslists/internal/grocery"
	"github.com/dukerupert/ourslists/internal/handler"
	"github.com/dukerupert/ourslists/internal/middleware"
	"github.com/dukerupert/ourslists/internal/notify"
	"github.com/dukerupert/ourslists/internal/obligation"
	"github.com/dukerupert/ourslists/internal/project"
	"github.com/dukerupert/ourslists/internal/push"
	"github.com/dukerupert/ourslists/internal/store"
	ws "github.com/dukerupert/ourslists/internal/websocket"
)

type Options struct {
	// DB holds every table. It is required even with a document store.
	DB *sql.DB
	// Docs, when set, stores obligations, purchase history and tickets.
	Docs     *docstore.Store
	Clock    clock.Clock
	FireHour int
	Location *time.Location
	Push     push.Config
	Backup   backup.Config
	// BackupDest is where snapshots go. Nil disables backups.
	BackupDest backup.Destination
	Logger     *slog.Logger
}

type Server struct {
	db          *sql.DB
	docs        *docstore.Store
	clock       clock.Clock
	hub         *ws.Hub
	engine      *notify.Engine
	dispatcher  *notify.Dispatcher
	recorder    *obligation.Recorder
	projects    *project.Service
	deliverer   *push.Deliverer
	spaces      *store.SpaceStore
	rateLimiter *middleware.RateLimiter
	backups     *backup.Manager

	spaceH      *handler.SpaceHandler
	obligationH *handler.ObligationHandler
	groceryH    *handler.GroceryHandler
	projectH    *handler.ProjectHandler
	pushH       *handler.PushHandler
	backupH     *handler.BackupHandler
	logger      *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewSystem(opts.Location)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	hub := ws.NewHub(logger)
	engine := notify.NewEngine(64)

	var (
		obligations obligation.Repository     = store.NewObligationStore(opts.DB)
		purchases   grocery.HistoryRepository = store.NewPurchaseStore(opts.DB)
		tickets     notify.TicketStore        = store.NewTicketStore(opts.DB)
	)
	if opts.Docs != nil {
		obligations, purchases, tickets = opts.Docs, opts.Docs, opts.Docs
	}

	dispatcher := notify.NewDispatcher(tickets, engine, clk, opts.FireHour, loc, logger)
	projects := project.NewService(store.NewProjectStore(opts.DB), dispatcher, clk, hub, logger)
	recorder := obligation.NewRecorder(obligations, projects, dispatcher, clk, hub, logger)
	history := grocery.NewHistory(purchases, clk, logger)
	lists := grocery.NewLists(store.NewGroceryStore(opts.DB), history, clk, hub, logger)

	pushStore := store.NewPushStore(opts.DB)
	var sender push.Sender
	svc := push.NewService(opts.Push)
	if svc.Enabled() {
		sender = svc
	} else {
		logger.Warn("VAPID keys not configured, push notifications disabled")
	}

	var docs backup.Docs
	if opts.Docs != nil {
		docs = opts.Docs
	}
	backups := backup.NewManager(opts.Backup, opts.DB, docs, opts.BackupDest, clk, logger.With("component", "backup"))

	spaces := store.NewSpaceStore(opts.DB)
	return &Server{
		db:          opts.DB,
		docs:        opts.Docs,
		clock:       clk,
		hub:         hub,
		engine:      engine,
		dispatcher:  dispatcher,
		recorder:    recorder,
		projects:    projects,
		deliverer:   push.NewDeliverer(sender, pushStore, dispatcher, logger),
		spaces:      spaces,
		rateLimiter: middleware.NewRateLimiter(clk),
		backups:     backups,
		spaceH:      handler.NewSpaceHandler(spaces, clk, logger.With("component", "space")),
		obligationH: handler.NewObligationHandler(recorder, logger.With("component", "obligation")),
		groceryH:    handler.NewGroceryHandler(lists, history, logger.With("component", "grocery")),
		projectH:    handler.NewProjectHandler(projects, logger.With("component", "project")),
		pushH:       handler.NewPushHandler(pushStore, svc.VAPIDPublicKey(), clk, logger.With("component", "push_handler")),
		backupH:     handler.NewBackupHandler(backups, logger.With("component", "backup_handler")),
		logger:      logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	api := http.NewServeMux()
	s.registerRoutes(api)
	keyFunc := func(r *http.Request) string { return middleware.RealIP(r) }
	mux.Handle("/api/", middleware.RateLimit(s.rateLimiter, keyFunc, 120, time.Minute)(middleware.Identify(api)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Spaces
	mux.HandleFunc("POST /api/spaces", s.spaceH.Create)
	mux.HandleFunc("GET /api/spaces", s.spaceH.List)
	mux.HandleFunc("POST /api/spaces/{space_id}/reschedule", s.obligationH.Reschedule)

	// Chores and reminders
	mux.HandleFunc("POST /api/spaces/{space_id}/obligations", s.obligationH.Create)
	mux.HandleFunc("GET /api/spaces/{space_id}/obligations", s.obligationH.List)
	mux.HandleFunc("GET /api/obligations/{id}", s.obligationH.Get)
	mux.HandleFunc("PUT /api/obligations/{id}", s.obligationH.Update)
	mux.HandleFunc("DELETE /api/obligations/{id}", s.obligationH.Delete)
	mux.HandleFunc("POST /api/obligations/{id}/done", s.obligationH.Done)
	mux.HandleFunc("POST /api/obligations/{id}/snooze", s.obligationH.Snooze)
	mux.HandleFunc("POST /api/obligations/{id}/pause", s.obligationH.Pause)
	mux.HandleFunc("POST /api/obligations/{id}/resume", s.obligationH.Resume)
	mux.HandleFunc("PUT /api/obligations/{id}/schedule", s.obligationH.EditSchedule)
	mux.HandleFunc("GET /api/obligations/{id}/history", s.obligationH.History)

	// Grocery
	mux.HandleFunc("POST /api/spaces/{space_id}/grocery-lists", s.groceryH.CreateList)
	mux.HandleFunc("GET /api/spaces/{space_id}/grocery-lists", s.groceryH.Lists)
	mux.HandleFunc("DELETE /api/grocery-lists/{id}", s.groceryH.DeleteList)
	mux.HandleFunc("GET /api/grocery-lists/{id}/items", s.groceryH.ListItems)
	mux.HandleFunc("POST /api/grocery-lists/{id}/items", s.groceryH.CreateItem)
	mux.HandleFunc("POST /api/grocery-lists/{id}/clear-checked", s.groceryH.ClearChecked)
	mux.HandleFunc("PUT /api/grocery-items/{id}", s.groceryH.UpdateItem)
	mux.HandleFunc("DELETE /api/grocery-items/{id}", s.groceryH.DeleteItem)
	mux.HandleFunc("POST /api/grocery-items/{id}/check", s.groceryH.Check)
	mux.HandleFunc("GET /api/spaces/{space_id}/purchases/frequent", s.groceryH.Frequent)
	mux.HandleFunc("GET /api/spaces/{space_id}/purchases/recent", s.groceryH.Recent)
	mux.HandleFunc("GET /api/grocery/categorize", s.groceryH.Categorize)
	mux.HandleFunc("GET /api/grocery/categories", s.groceryH.Categories)

	// Projects
	mux.HandleFunc("POST /api/spaces/{space_id}/projects", s.projectH.CreateProject)
	mux.HandleFunc("GET /api/spaces/{space_id}/projects", s.projectH.Projects)
	mux.HandleFunc("POST /api/projects/{id}/archive", s.projectH.Archive)
	mux.HandleFunc("DELETE /api/projects/{id}", s.projectH.DeleteProject)
	mux.HandleFunc("GET /api/projects/{id}/tasks", s.projectH.ListTasks)
	mux.HandleFunc("POST /api/projects/{id}/tasks", s.projectH.CreateTask)
	mux.HandleFunc("PUT /api/tasks/{id}/due", s.projectH.SetDue)
	mux.HandleFunc("POST /api/tasks/{id}/toggle", s.projectH.ToggleTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.projectH.DeleteTask)

	// Push notifications
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("DELETE /api/push/subscriptions", s.pushH.Unsubscribe)
	mux.HandleFunc("POST /api/spaces/{space_id}/push/subscriptions", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/spaces/{space_id}/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/spaces/{space_id}/push/preferences", s.pushH.GetPreferences)
	mux.HandleFunc("PUT /api/spaces/{space_id}/push/preferences", s.pushH.UpdatePreference)

	// Backups
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("POST /api/backups", s.backupH.Create)
	mux.HandleFunc("GET /api/backups/status", s.backupH.Status)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"pending_tickets": s.engine.Pending(),
		"ws_clients":      s.hub.ClientCount(),
		"backup":          s.backups.Status().State,
	})
}

// SpaceIDs returns every space known to either store.
func (s *Server) SpaceIDs(ctx context.Context) ([]string, error) {
	ids, err := s.spaces.IDs(ctx)
	if err != nil {
		return nil, err
	}
	if s.docs != nil {
		more, err := s.docs.SpaceIDs(ctx)
		if err != nil {
			return nil, err
		}
		ids = append(ids, more...)
		slices.Sort(ids)
		ids = slices.Compact(ids)
	}
	return ids, nil
}

// RescheduleAll rebuilds the notification tickets of every space. Failures
// in one space do not stop the others.
func (s *Server) RescheduleAll(ctx context.Context) error {
	ids, err := s.SpaceIDs(ctx)
	if err != nil {
		return fmt.Errorf("list spaces: %w", err)
	}
	var errs []error
	for _, id := range ids {
		if err := s.recorder.ReloadSpace(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("space %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Run restores pending tickets, then serves HTTP on addr and runs the
// notification engine and deliverer until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	restored, err := s.dispatcher.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore tickets: %w", err)
	}
	s.logger.Info("tickets restored", "count", restored)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.engine.Run(ctx)
	})
	g.Go(func() error {
		return s.deliverer.Run(ctx, s.engine.C())
	})
	g.Go(func() error {
		if err := s.RescheduleAll(ctx); err != nil {
			s.logger.Warn("initial reschedule", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.backups.Run(ctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s.rateLimiter.Cleanup()
			}
		}
	})
	g.Go(func() error {
		s.logger.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Backups returns the snapshot manager.
func (s *Server) Backups() *backup.Manager {
	return s.backups
}
