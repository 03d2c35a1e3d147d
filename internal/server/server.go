package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"anoa.com/studyhub/internal/broadcast"
	amqpTransport "anoa.com/studyhub/internal/broadcast/amqp"
	"anoa.com/studyhub/internal/broadcast/memory"
	redisTransport "anoa.com/studyhub/internal/broadcast/redis"
	"anoa.com/studyhub/internal/config"
	"anoa.com/studyhub/internal/middleware"
	"anoa.com/studyhub/pkg/logger"

	activityHttp "anoa.com/studyhub/internal/modules/activity/delivery/http"
	activityRepo "anoa.com/studyhub/internal/modules/activity/repository"
	activityService "anoa.com/studyhub/internal/modules/activity/service"

	friendHttp "anoa.com/studyhub/internal/modules/friendship/delivery/http"
	friendRepo "anoa.com/studyhub/internal/modules/friendship/repository"
	friendService "anoa.com/studyhub/internal/modules/friendship/service"

	groupHttp "anoa.com/studyhub/internal/modules/group/delivery/http"
	groupRepo "anoa.com/studyhub/internal/modules/group/repository"
	groupService "anoa.com/studyhub/internal/modules/group/service"

	memberRepo "anoa.com/studyhub/internal/modules/membership/repository"
	memberService "anoa.com/studyhub/internal/modules/membership/service"

	messageHttp "anoa.com/studyhub/internal/modules/message/delivery/http"
	messageRepo "anoa.com/studyhub/internal/modules/message/repository"
	messageService "anoa.com/studyhub/internal/modules/message/service"

	notiHttp "anoa.com/studyhub/internal/modules/notification/delivery/http"
	notifRepo "anoa.com/studyhub/internal/modules/notification/repository"
	notifService "anoa.com/studyhub/internal/modules/notification/service"

	reactionHttp "anoa.com/studyhub/internal/modules/reaction/delivery/http"
	reactionRepo "anoa.com/studyhub/internal/modules/reaction/repository"
	reactionService "anoa.com/studyhub/internal/modules/reaction/service"

	realtimeHttp "anoa.com/studyhub/internal/modules/realtime/delivery/http"

	unreadHttp "anoa.com/studyhub/internal/modules/unread/delivery/http"
	unreadRepo "anoa.com/studyhub/internal/modules/unread/repository"
	unreadService "anoa.com/studyhub/internal/modules/unread/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	cfg         *config.Config
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
	router      *broadcast.Router
	amqp        *amqpTransport.Transport
	log         zerolog.Logger
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	log := logger.Component("server")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		log.Info().Msg("connected to redis")
	}

	s := &Server{cfg: cfg, db: db, redisClient: redisClient, log: log}

	transport, subscriber, err := s.setupTransports()
	if err != nil {
		s.closeClients()
		return nil, err
	}
	s.router = broadcast.NewRouter(transport, broadcast.Options{
		Timeout:   cfg.BroadcastTimeout,
		QueueSize: cfg.BroadcastQueueSize,
	}, logger.Component("broadcast"))

	// Unread counts
	var countCache unreadService.CountCache = unreadService.NewNopCountCache()
	if redisClient != nil && cfg.UnreadCacheTTL > 0 {
		countCache = unreadService.NewRedisCountCache(redisClient, cfg.UnreadCacheTTL)
	}
	unreadRepository := unreadRepo.NewUnreadRepository(db)
	unreadSvc := unreadService.NewUnreadService(unreadRepository, countCache, logger.Component("unread"))
	unreadHandler := unreadHttp.NewUnreadHandler(unreadSvc)

	// Membership
	membershipRepository := memberRepo.NewMembershipRepository(db)
	authority := memberService.NewAuthority(membershipRepository)

	// Notifications
	notificationRepository := notifRepo.NewNotificationRepository(db)
	notificationStore := notifService.NewNotificationStore(notificationRepository, unreadSvc)
	dispatcher := notifService.NewDispatcher(authority, notificationStore, s.router, unreadSvc, logger.Component("dispatcher"))
	notificationHandler := notiHttp.NewNotificationHandler(notificationStore)

	// Activity
	activityRepository := activityRepo.NewActivityRepository(db)
	activitySvc := activityService.NewActivityService(activityRepository)
	activityHandler := activityHttp.NewActivityHandler(activitySvc)

	// Groups
	groupRepository := groupRepo.NewGroupRepository(db)
	groupSvc := groupService.NewGroupService(db, groupRepository, authority, notificationStore, dispatcher)
	groupHandler := groupHttp.NewGroupHandler(groupSvc)

	// Messages
	messageRepository := messageRepo.NewMessageRepository(db)
	messageSvc := messageService.NewMessageService(db, messageRepository, authority, dispatcher)
	messageHandler := messageHttp.NewMessageHandler(messageSvc)

	// Reactions
	reactionRepository := reactionRepo.NewReactionRepository(db)
	reactionSvc := reactionService.NewReactionService(db, reactionRepository, messageRepository, authority, dispatcher,
		reactionService.NewCountsCache(redisClient), logger.Component("reaction"))
	reactionHandler := reactionHttp.NewReactionHandler(reactionSvc)

	// Friends
	friendRepository := friendRepo.NewFriendshipRepository(db)
	friendSvc := friendService.NewFriendshipService(db, friendRepository, dispatcher)
	friendHandler := friendHttp.NewFriendshipHandler(friendSvc)

	realtimeHandler := realtimeHttp.NewRealtimeHandler(authority, subscriber, logger.Component("realtime"))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	setupCORS(engine, cfg.AllowedOrigins)

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logger.Component("http")))

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		// Notification routes
		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/read", notificationHandler.MarkRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllRead)

		protected.GET("/unread-counts", unreadHandler.GetCounts)
		protected.GET("/activity", activityHandler.GetFeed)

		// Group routes
		protected.POST("/groups", groupHandler.CreateGroup)
		protected.GET("/groups", groupHandler.ListMyGroups)
		protected.PATCH("/groups/:group_id", groupHandler.EditGroup)
		protected.DELETE("/groups/:group_id", groupHandler.DeleteGroup)
		protected.GET("/groups/:group_id/members", groupHandler.ListMembers)
		protected.POST("/groups/:group_id/join-requests", groupHandler.SubmitJoinRequest)
		protected.GET("/groups/:group_id/join-requests", groupHandler.ListJoinRequests)
		protected.POST("/groups/:group_id/leave", groupHandler.Leave)
		protected.DELETE("/groups/:group_id/members/:user_id", groupHandler.RemoveMember)
		protected.PUT("/groups/:group_id/members/:user_id/rank", groupHandler.SetRank)
		protected.POST("/join-requests/:request_id/approve", groupHandler.ApproveJoinRequest)
		protected.POST("/join-requests/:request_id/reject", groupHandler.RejectJoinRequest)
		protected.POST("/groups/:group_id/invites", groupHandler.CreateInvite)
		protected.GET("/groups/:group_id/invites", groupHandler.ListInvites)
		protected.POST("/invites/:invite_id/deactivate", groupHandler.DeactivateInvite)
		protected.POST("/invite/:token", groupHandler.JoinByToken)
		protected.POST("/join-code", groupHandler.JoinByCode)

		// Group message routes
		protected.POST("/groups/:group_id/messages", messageHandler.SendGroupMessage)
		protected.GET("/groups/:group_id/messages", messageHandler.ListGroupMessages)
		protected.PUT("/group-messages/:message_id", messageHandler.EditGroupMessage)
		protected.DELETE("/group-messages/:message_id", messageHandler.DeleteGroupMessage)

		// Private chat routes
		protected.POST("/chats/start/:user_id", messageHandler.StartChat)
		protected.GET("/chats/:chat_id/messages", messageHandler.ListPrivateMessages)
		protected.POST("/chats/:chat_id/messages", messageHandler.SendPrivateMessage)
		protected.POST("/chats/:chat_id/read", messageHandler.MarkChatRead)

		// Reaction routes
		protected.POST("/reactions", reactionHandler.ToggleReaction)
		protected.GET("/reactions", reactionHandler.GetReactions)

		// Friend routes
		protected.GET("/friends", friendHandler.ListFriends)
		protected.GET("/friends/requests", friendHandler.ListIncoming)
		protected.POST("/friends/requests", friendHandler.SendRequest)
		protected.POST("/friends/requests/:request_id/accept", friendHandler.Accept)
		protected.POST("/friends/requests/:request_id/decline", friendHandler.Decline)
		protected.DELETE("/friends/:user_id", friendHandler.Remove)
		protected.POST("/friends/:user_id/block", friendHandler.Block)

		protected.GET("/realtime/ws", realtimeHandler.HandleWebSocket)
	}

	s.engine = engine
	return s, nil
}

// setupTransports builds the publish side from BROADCAST_TRANSPORTS. Live
// subscriptions read from Redis when it is enabled, otherwise from the
// in-process hub.
func (s *Server) setupTransports() (broadcast.Transport, broadcast.Subscriber, error) {
	var (
		transports broadcast.Multi
		hub        *memory.Hub
		redisSub   *redisTransport.Transport
	)

	names := s.cfg.BroadcastTransports
	if len(names) == 0 {
		names = []string{"memory"}
	}
	for _, name := range names {
		switch name {
		case "memory":
			hub = memory.NewHub()
			transports = append(transports, hub)
		case "redis":
			if s.redisClient == nil {
				return nil, nil, errors.New("redis transport requires REDIS_URL")
			}
			redisSub = redisTransport.NewTransport(s.redisClient, logger.Component("broadcast.redis"))
			transports = append(transports, redisSub)
		case "amqp":
			if s.cfg.AMQPURL == "" {
				return nil, nil, errors.New("amqp transport requires AMQP_URL")
			}
			t, err := amqpTransport.Dial(s.cfg.AMQPURL, s.cfg.AMQPExchange, logger.Component("broadcast.amqp"))
			if err != nil {
				return nil, nil, err
			}
			s.amqp = t
			transports = append(transports, t)
		default:
			return nil, nil, fmt.Errorf("unknown broadcast transport %q", name)
		}
	}

	s.log.Info().Strs("transports", names).Msg("broadcast transports ready")

	switch {
	case redisSub != nil:
		return transports, redisSub, nil
	case hub != nil:
		return transports, hub, nil
	}
	// AMQP has no subscriber side here.
	hub = memory.NewHub()
	return append(transports, hub), hub, nil
}

// Run serves until ctx is cancelled, then drains the broadcast queue and
// releases the transports.
func (s *Server) Run(ctx context.Context) error {
	routerCtx, stopRouter := context.WithCancel(context.Background())
	defer stopRouter()
	go s.router.Run(routerCtx)

	srv := &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutting down")
	case err := <-errCh:
		runErr = fmt.Errorf("server exited with error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error().Err(err).Msg("http shutdown")
	}

	s.router.Close()
	s.closeClients()
	return runErr
}

func (s *Server) closeClients() {
	if s.amqp != nil {
		if err := s.amqp.Close(); err != nil {
			s.log.Warn().Err(err).Msg("closing amqp transport")
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn().Err(err).Msg("closing redis client")
		}
	}
}

func setupCORS(engine *gin.Engine, allowedOrigins string) {
	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
