package router

import (
	"log/slog"
	"net/http"

	"contesthub/internal/apierror"
	"contesthub/internal/config"
	"contesthub/internal/handlers"
	"contesthub/internal/identity"
	"contesthub/internal/idempotency"
	"contesthub/internal/metrics"
	"contesthub/internal/middleware"
	"contesthub/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps 路由需要的全部依赖，由 main 组装。
type Deps struct {
	Config      *config.Config
	Logger      *slog.Logger
	Votes       *services.VoteLedger
	Comments    *services.CommentStore
	Identity    identity.Provider
	Idempotency idempotency.Store
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Checkers    []handlers.Checker
}

// New 创建 gin 引擎并挂好中间件和路由。
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		apierror.Abort(c, http.StatusNotFound, apierror.CodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		apierror.Abort(c, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	// Setup Sessions（外部登录页写入 user_id，这里只读）
	store := cookie.NewStore([]byte(d.Config.Auth.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   d.Config.Env == config.EnvProd,
		SameSite: http.SameSiteLaxMode,
	})

	r.Use(
		middleware.RequestID(),
		middleware.Logging(d.Logger),
		middleware.Recover(),
		middleware.Metrics(d.Metrics),
		middleware.Timeout(d.Config.Timeouts.Request),
		sessions.Sessions(d.Config.Auth.SessionName, store),
		middleware.LoadIdentity(d.Identity),
	)

	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Handlers
	voteHandler := handlers.NewVoteHandler(d.Votes)
	commentHandler := handlers.NewCommentHandler(d.Comments)
	healthHandler := handlers.NewHealthHandler(d.Checkers...)

	// 运维 (Operational)
	r.GET("/livez", healthHandler.Live)    // 存活
	r.GET("/healthz", healthHandler.Ready) // 就绪：DB / Redis
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// 公共路由 (Public Routes)
	r.GET("/votes/count", voteHandler.Count)     // 作品票数
	r.GET("/comments/list", commentHandler.List) // 顶层评论分页

	idem := func(action string, resource middleware.ResourceFunc) gin.HandlerFunc {
		return middleware.Idempotent(d.Idempotency, action, resource)
	}

	// 受保护路由 (Protected Routes)
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/votes/status", voteHandler.Status) // 当前用户是否已投票
		authorized.POST("/votes", idem("vote.cast", handlers.SubmissionFromQuery), voteHandler.Cast)
		authorized.DELETE("/votes", idem("vote.cancel", handlers.SubmissionFromQuery), voteHandler.Cancel)

		authorized.POST("/comments", idem("comment.create", handlers.SubmissionFromBody), commentHandler.Create)
		authorized.PUT("/comments/:id", idem("comment.update", handlers.CommentFromParam), commentHandler.Update)
		authorized.DELETE("/comments/:id", idem("comment.delete", handlers.CommentFromParam), commentHandler.Delete)
	}
}
