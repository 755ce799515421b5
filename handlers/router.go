package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"achievementsAPI/internal/live"
	"achievementsAPI/middleware"
	"achievementsAPI/services"
)

type Services struct {
	Progress     *services.ProgressService
	Categories   *services.CategoryService
	Achievements *services.AchievementService
	Rewards      *services.RewardService
	Stats        *services.StatsService
}

// RouterOptions carries the optional operational pieces. Nil fields leave the
// matching route or middleware out.
type RouterOptions struct {
	Registry       *live.Registry
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
	Metrics        http.Handler
	Pprof          http.Handler
}

func NewRouter(svc Services, opts RouterOptions) *mux.Router {
	progressHandler := NewProgressHandler(svc.Progress)
	categoryHandler := NewCategoryHandler(svc.Categories)
	achievementHandler := NewAchievementHandler(svc.Achievements)
	rewardHandler := NewRewardHandler(svc.Rewards)
	statsHandler := NewStatsHandler(svc.Stats)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	// Push channels are long lived and stay outside the rate limiter.
	if opts.Registry != nil {
		eventsHandler := NewEventsHandler(opts.Registry, opts.AllowedOrigins)
		r.HandleFunc("/api/achievements-events", eventsHandler.Stream).Methods("GET")
		r.HandleFunc("/api/achievements-events", eventsHandler.Preflight).Methods("OPTIONS")
		r.HandleFunc("/api/achievements-ws", eventsHandler.WebSocket).Methods("GET")
	}

	standardRouter := r.PathPrefix("/").Subrouter()
	if opts.RateLimiter != nil {
		standardRouter.Use(opts.RateLimiter.Middleware)
	}
	standardRouter.Use(middleware.MonitorMiddleware)

	if opts.Metrics != nil {
		standardRouter.Handle("/metrics", opts.Metrics).Methods("GET")
	}
	if opts.Pprof != nil {
		standardRouter.PathPrefix("/debug/pprof/").Handler(opts.Pprof)
	}

	standardRouter.HandleFunc("/health", statsHandler.Health).Methods("GET")
	standardRouter.HandleFunc("/health/db", statsHandler.DatabaseHealth).Methods("GET")
	standardRouter.HandleFunc("/api/stats", statsHandler.GetStats).Methods("GET")

	standardRouter.HandleFunc("/categories", categoryHandler.ListCategories).Methods("GET")
	standardRouter.HandleFunc("/categories", categoryHandler.CreateCategory).Methods("POST")
	standardRouter.HandleFunc("/categories/{id}", categoryHandler.GetCategory).Methods("GET")
	standardRouter.HandleFunc("/categories/{id}", categoryHandler.UpdateCategory).Methods("PATCH", "PUT")
	standardRouter.HandleFunc("/categories/{id}", categoryHandler.DeleteCategory).Methods("DELETE")

	standardRouter.HandleFunc("/achievements", achievementHandler.ListAchievements).Methods("GET")
	standardRouter.HandleFunc("/achievements", achievementHandler.CreateAchievement).Methods("POST")
	standardRouter.HandleFunc("/achievements/{id}", achievementHandler.GetAchievement).Methods("GET")
	standardRouter.HandleFunc("/achievements/{id}", achievementHandler.UpdateAchievement).Methods("PATCH", "PUT")
	standardRouter.HandleFunc("/achievements/{id}", achievementHandler.DeleteAchievement).Methods("DELETE")

	standardRouter.HandleFunc("/rewards", rewardHandler.ListRewards).Methods("GET")
	standardRouter.HandleFunc("/rewards", rewardHandler.CreateReward).Methods("POST")
	standardRouter.HandleFunc("/rewards/{id}", rewardHandler.GetReward).Methods("GET")
	standardRouter.HandleFunc("/rewards/{id}", rewardHandler.UpdateReward).Methods("PATCH", "PUT")
	standardRouter.HandleFunc("/rewards/{id}", rewardHandler.DeleteReward).Methods("DELETE")

	standardRouter.HandleFunc("/progress", progressHandler.ListProgress).Methods("GET")
	standardRouter.HandleFunc("/progress", progressHandler.CreateProgress).Methods("POST")
	standardRouter.HandleFunc("/progress/user/{userId}", progressHandler.ListUserProgress).Methods("GET")
	standardRouter.HandleFunc("/progress/user/{userId}/{achievementId}", progressHandler.GetUserAchievementProgress).Methods("GET")
	standardRouter.HandleFunc("/progress/{id}", progressHandler.GetProgress).Methods("GET")
	standardRouter.HandleFunc("/progress/{id}", progressHandler.UpdateProgress).Methods("PATCH", "PUT")
	standardRouter.HandleFunc("/progress/{id}", progressHandler.DeleteProgress).Methods("DELETE")

	return r
}
