// Package web assembles the viewer360 HTTP server: routing, middleware, the
// session store and the background job scheduler.
package web

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/viewer360/viewer360/config"
	"github.com/viewer360/viewer360/database"
	"github.com/viewer360/viewer360/logger"
	"github.com/viewer360/viewer360/storage"
	"github.com/viewer360/viewer360/util/common"
	"github.com/viewer360/viewer360/web/cache"
	"github.com/viewer360/viewer360/web/controller"
	"github.com/viewer360/viewer360/web/entity"
	"github.com/viewer360/viewer360/web/job"
	"github.com/viewer360/viewer360/web/locale"
	"github.com/viewer360/viewer360/web/middleware"
	"github.com/viewer360/viewer360/web/service"
	"github.com/viewer360/viewer360/web/session"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

// Server is the viewer360 web server with its controllers and scheduled jobs.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	index    *controller.IndexController
	panorama *controller.PanoramaController
	marker   *controller.MarkerController
	vote     *controller.VoteController
	admin    *controller.AdminController

	settingService service.SettingService

	cron *cron.Cron
}

func NewServer() *Server {
	service.FlushIdentities()
	return &Server{}
}

func (s *Server) newSessionStore(secret []byte) sessions.Store {
	if config.UseRedisSessions() && cache.GetClient() != nil {
		logger.Info("sessions stored in Redis")
		return cache.NewRedisStore(cache.GetClient(), secret)
	}
	return cookie.NewStore(secret)
}

// initRouter registers middleware, static uploads and controllers.
func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()

	webDomain, err := s.settingService.GetWebDomain()
	if err != nil {
		return nil, err
	}
	if webDomain != "" {
		engine.Use(middleware.DomainValidatorMiddleware(webDomain))
	}

	secret, err := s.settingService.GetSecret()
	if err != nil {
		return nil, err
	}
	basePath, err := s.settingService.GetBasePath()
	if err != nil {
		return nil, err
	}
	perMinute, err := s.settingService.GetRateLimitPerMinute()
	if err != nil {
		return nil, err
	}

	uploads := basePath + storage.UploadsDir
	// images and audio are already compressed
	engine.Use(gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{uploads + "/"}),
	))

	store := s.newSessionStore(secret)
	store.Options(sessions.Options{
		Path:     basePath,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	engine.Use(sessions.Sessions(session.CookieName, store))
	engine.Use(locale.LocalizerMiddleware())
	engine.Use(middleware.IdentityMiddleware())

	rateLimit := middleware.DefaultRateLimitConfig()
	rateLimit.RequestsPerMinute = perMinute
	rateLimit.SkipPaths = []string{uploads + "/"}
	engine.Use(middleware.RateLimitMiddleware(rateLimit))

	engine.Static(uploads, filepath.Join(config.GetUploadDir(), storage.UploadsDir))

	g := engine.Group(basePath)
	s.index = controller.NewIndexController(g)

	api := g.Group("/api")
	s.panorama = controller.NewPanoramaController(api)
	s.marker = controller.NewMarkerController(api)
	s.vote = controller.NewVoteController(api)
	s.admin = controller.NewAdminController(api)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, entity.Msg{Msg: locale.I18n(c, "notFound")})
	})

	return engine, nil
}

// startTask schedules the background jobs.
func (s *Server) startTask() {
	if database.IsSQLite() {
		if _, err := s.cron.AddJob("@hourly", job.NewCheckpointJob()); err != nil {
			logger.Warning("add checkpoint job failed:", err)
		}
	}

	runtime, err := s.settingService.GetOrphanCleanupCron()
	if err != nil {
		logger.Warning("read orphan cleanup schedule failed:", err)
		return
	}
	if runtime == "" {
		return
	}
	if _, err := s.cron.AddJob(runtime, job.NewOrphanCleanupJob()); err != nil {
		logger.Errorf("Add OrphanCleanupJob error[%s], Runtime[%s] invalid", err, runtime)
		return
	}
	logger.Infof("orphan cleanup scheduled at %s", runtime)
}

// Handler builds the routed engine without listening; used by tests.
func (s *Server) Handler() (http.Handler, error) {
	return s.initRouter()
}

func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	loc, err := s.settingService.GetTimeLocation()
	if err != nil {
		return err
	}
	s.cron = cron.New(cron.WithLocation(loc), cron.WithSeconds())
	s.cron.Start()

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	listen, err := s.settingService.GetListen()
	if err != nil {
		return err
	}
	port, err := s.settingService.GetPort()
	if err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(listen, strconv.Itoa(port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	logger.Info("Web server running HTTP on", listener.Addr())

	s.listener = listener
	s.httpServer = &http.Server{Handler: engine}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("web server stopped:", err)
		}
	}()

	s.startTask()
	return nil
}

// Stop shuts down the HTTP server and the scheduler.
func (s *Server) Stop() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	var err1, err2 error
	if s.httpServer != nil {
		err1 = s.httpServer.Shutdown(context.Background())
	}
	if s.listener != nil {
		err2 = s.listener.Close()
		if err1 == nil && err2 != nil && errors.Is(err2, net.ErrClosed) {
			err2 = nil
		}
	}
	return common.Combine(err1, err2)
}
