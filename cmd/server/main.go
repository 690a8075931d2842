package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	"github.com/mirahq/mira/internal/config"
	"github.com/mirahq/mira/internal/domain"
	"github.com/mirahq/mira/internal/handler"
	"github.com/mirahq/mira/internal/migrations"
	"github.com/mirahq/mira/internal/repository"
	"github.com/mirahq/mira/internal/service"
	"github.com/mirahq/mira/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sqlx.Connect("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrations.Apply(context.Background(), db.DB); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	issueRepo := repository.NewIssueRepository(db)
	sprintRepo := repository.NewSprintRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	labelRepo := repository.NewLabelRepository(db)

	// Services.
	hub := ws.NewHub()
	authService := service.NewAuthService(userRepo, service.AuthConfig{
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		GitHubClientID:     cfg.GitHubClientID,
		GitHubClientSecret: cfg.GitHubClientSecret,
		JWTSecret:          cfg.JWTSecret,
		FrontendURL:        cfg.FrontendURL,
	})
	notificationService := service.NewNotificationService(notificationRepo, hub)
	projectService := service.NewProjectService(projectRepo, userRepo)
	issueService := service.NewIssueService(issueRepo, projectRepo, sprintRepo, historyRepo, projectService)
	sprintService := service.NewSprintService(sprintRepo, issueRepo, historyRepo, projectRepo, projectService, notificationService)
	commentService := service.NewCommentService(commentRepo, issueRepo, projectRepo, projectService)
	teamService := service.NewTeamService(teamRepo, userRepo, notificationService)
	labelService := service.NewLabelService(labelRepo, issueRepo, projectRepo, projectService)
	reminderService := service.NewReminderService(issueRepo, notificationService)

	// Handlers.
	validator := handler.NewAppValidator()
	authHandler := handler.NewAuthHandler(authService)
	projectHandler := handler.NewProjectHandler(projectService, validator)
	issueHandler := handler.NewIssueHandler(issueService, validator)
	sprintHandler := handler.NewSprintHandler(sprintService, validator)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	commentHandler := handler.NewCommentHandler(commentService, validator)
	teamHandler := handler.NewTeamHandler(teamService, validator)
	labelHandler := handler.NewLabelHandler(labelService, validator)
	wsHandler := handler.NewWSHandler(authService, hub)

	router := newRouter(cfg, authService, authHandler, projectHandler, issueHandler,
		sprintHandler, notificationHandler, commentHandler, teamHandler, labelHandler, wsHandler)

	// Daily due-date reminder sweep.
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.ReminderSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := reminderService.Run(ctx, domain.Today()); err != nil {
			slog.Error("reminder sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminder sweep: %w", err)
	}
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
	}

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func newRouter(
	cfg config.Config,
	authService *service.AuthService,
	auth *handler.AuthHandler,
	projects *handler.ProjectHandler,
	issues *handler.IssueHandler,
	sprints *handler.SprintHandler,
	notifications *handler.NotificationHandler,
	comments *handler.CommentHandler,
	teams *handler.TeamHandler,
	labels *handler.LabelHandler,
	wsh *handler.WSHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(handler.RequestID)
	r.Use(handler.Logger)
	r.Use(handler.Recover)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/google", auth.GoogleRedirect)
			r.Get("/google/callback", auth.GoogleCallback)
			r.Get("/github", auth.GitHubRedirect)
			r.Get("/github/callback", auth.GitHubCallback)
			r.Post("/refresh", auth.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(handler.JWTAuth(authService))
				r.Get("/me", auth.Me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(handler.JWTAuth(authService))

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projects.List)
				r.Post("/", projects.Create)

				r.Route("/{projectKey}", func(r chi.Router) {
					r.Get("/", projects.Get)
					r.Patch("/", projects.Update)
					r.Delete("/", projects.Delete)

					r.Route("/members", func(r chi.Router) {
						r.Get("/", projects.Members)
						r.Post("/", projects.AddMember)
						r.Delete("/{userID}", projects.RemoveMember)
					})

					r.Get("/backlog", issues.Backlog)

					r.Route("/labels", func(r chi.Router) {
						r.Get("/", labels.List)
						r.Post("/", labels.Create)
						r.Delete("/{labelID}", labels.Delete)
					})

					r.Route("/issues", func(r chi.Router) {
						r.Get("/", issues.List)
						r.Post("/", issues.Create)

						r.Route("/{issueKey}", func(r chi.Router) {
							r.Get("/", issues.Get)
							r.Patch("/", issues.Update)
							r.Delete("/", issues.Delete)
							r.Post("/move", issues.Move)
							r.Get("/history", issues.History)

							r.Route("/comments", func(r chi.Router) {
								r.Get("/", comments.List)
								r.Post("/", comments.Create)
								r.Patch("/{commentID}", comments.Update)
								r.Delete("/{commentID}", comments.Delete)
							})

							r.Route("/labels", func(r chi.Router) {
								r.Get("/", labels.ListByIssue)
								r.Post("/{labelID}", labels.Assign)
								r.Delete("/{labelID}", labels.Unassign)
							})
						})
					})

					r.Route("/sprints", func(r chi.Router) {
						r.Get("/", sprints.List)
						r.Post("/", sprints.Create)
						r.Post("/next", sprints.CreateNext)

						r.Route("/{sprintID}", func(r chi.Router) {
							r.Get("/", sprints.Get)
							r.Patch("/", sprints.Update)
							r.Post("/start", sprints.Start)
							r.Post("/complete", sprints.Complete)
							r.Get("/summary", sprints.Summary)
							r.Get("/burndown", sprints.Burndown)
						})
					})
				})
			})

			r.Route("/teams", func(r chi.Router) {
				r.Get("/", teams.List)
				r.Post("/", teams.Create)

				r.Route("/invitations", func(r chi.Router) {
					r.Get("/", teams.MyInvitations)
					r.Post("/{invitationID}/accept", teams.AcceptInvitation)
					r.Post("/{invitationID}/decline", teams.DeclineInvitation)
				})

				r.Route("/{teamID}", func(r chi.Router) {
					r.Get("/", teams.Get)
					r.Patch("/", teams.Update)
					r.Delete("/", teams.Delete)
					r.Post("/leave", teams.Leave)
					r.Post("/invitations", teams.Invite)

					r.Route("/members", func(r chi.Router) {
						r.Get("/", teams.Members)
						r.Patch("/{userID}/role", teams.UpdateMemberRole)
						r.Delete("/{userID}", teams.RemoveMember)
					})
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notifications.List)
				r.Get("/unread-count", notifications.UnreadCount)
				r.Post("/{notificationID}/read", notifications.MarkRead)
				r.Post("/read-all", notifications.MarkAllRead)
			})
		})

		r.Get("/ws", wsh.Serve)
	})

	return r
}
