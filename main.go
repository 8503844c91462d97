// File: voicebook/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicebook/config"
	"voicebook/cron"
	"voicebook/database"
	calendarRepo "voicebook/database/repository/calendar"
	"voicebook/handlers"
	"voicebook/middleware"
	"voicebook/models"
	"voicebook/routes"
	"voicebook/services/call"
	"voicebook/services/dialogue"
	"voicebook/services/fields"
	ai "voicebook/services/intelligence"
	"voicebook/services/notification"
	"voicebook/services/scheduling"
	"voicebook/services/speech"
	"voicebook/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	cal, err := config.AppConfig.BusinessCalendar()
	if err != nil {
		logger.Fatal("main: invalid business calendar", zap.Error(err))
	}
	defaultLang, ok := models.ParseLanguage(config.AppConfig.DefaultLanguage)
	if !ok {
		defaultLang = models.LanguageFrench
	}

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	health := map[string]utils.Pinger{}
	var (
		repo      calendarRepo.CalendarRepository
		lock      scheduling.CommitLock
		snapshots call.SnapshotStore
		notifier  = &notification.DefaultNotificationService{
			Topic:    config.AppConfig.FirebaseTopic,
			LeadTime: config.AppConfig.ReminderLead(),
		}
		worker *asynq.Server
	)

	switch config.AppConfig.CalendarBackend {
	case "memory":
		logger.Warn("main: using the in-memory calendar; bookings are lost on restart")
		repo = calendarRepo.NewMemoryCalendarRepo()
		lock = scheduling.NewLocalCommitLock()
	default:
		mongoClient, err := database.InitDB(rootCtx)
		if err != nil {
			logger.Fatal("main: mongo", zap.Error(err))
		}
		defer mongoClient.Disconnect(context.Background())
		mongoRepo := calendarRepo.NewMongoCalendarRepo(database.Database())
		if err := mongoRepo.EnsureIndexes(rootCtx); err != nil {
			logger.Fatal("main: failed to create calendar indexes", zap.Error(err))
		}
		repo = mongoRepo
		health["mongo"] = database.MongoPinger{Client: mongoClient}

		utils.InitRedis()
		lock = scheduling.NewRedisCommitLock(utils.GetLockClient())
		snapshots = ai.NewRedisContextStore(utils.GetSessionCacheClient(), config.AppConfig.SessionTTL())
		health["redis"] = utils.RedisPinger{Client: utils.GetSessionCacheClient()}

		queue := asynq.NewClient(cron.RedisOpt())
		defer queue.Close()
		inspector := asynq.NewInspector(cron.RedisOpt())
		defer inspector.Close()
		notifier.Queue = queue
		notifier.Inspector = inspector
		worker = cron.InitReminderWorker(notifier)
	}

	if config.AppConfig.FirebaseCredentialsFile != "" {
		fcm, err := utils.FirebaseInit(rootCtx)
		if err != nil {
			logger.Warn("main: push notifications disabled", zap.Error(err))
		} else {
			notifier.Push = fcm
		}
	}

	parser := fields.Parser{Catalogue: cal.ServiceTypes, Location: cal.Loc()}
	resolver := &scheduling.DefaultResolver{
		Calendar:     cal,
		Store:        repo,
		Parser:       parser,
		Lock:         lock,
		Confirmation: notifier,
		Cancellation: notifier,
	}

	var prompts dialogue.PromptGenerator = dialogue.StaticPrompts{}
	if key := config.AppConfig.GeminiAPIKey; key != "" {
		gemini, err := ai.NewGeminiClient(rootCtx, key, config.AppConfig.GeminiModel)
		if err != nil {
			logger.Warn("main: Gemini unavailable, using static prompts", zap.Error(err))
		} else {
			defer gemini.Close()
			prompts = ai.NewGeminiPromptGenerator(gemini)
		}
	}

	var stt handlers.Transcriber
	if creds := config.AppConfig.GoogleServiceAccountFile; creds != "" {
		transcriber, closeSTT, err := speech.NewGoogleTranscriber(rootCtx, creds)
		if err != nil {
			logger.Warn("main: speech recognition disabled", zap.Error(err))
		} else {
			defer closeSTT()
			stt = transcriber
		}
	}

	calls := call.NewManager(call.Config{
		Calendar:        cal,
		Resolver:        resolver,
		Parser:          parser,
		Prompts:         prompts,
		Snapshots:       snapshots,
		DefaultLanguage: defaultLang,
		MaxRetries:      config.AppConfig.MaxFieldRetries,
		SampleInterval:  config.AppConfig.TurnSampleInterval(),
	})

	utils.StartHealthMonitor(rootCtx, health, 30*time.Second)

	businessHandler := handlers.NewBusinessHandler(cal, repo, calls)
	appointmentHandler := handlers.NewAppointmentHandler(resolver, repo)
	callHandler := handlers.NewCallHandler(calls, stt)

	handlerBundle := &handlers.HandlerBundle{
		BusinessInfoHandler: businessHandler.GetBusinessInfoHandler,
		StatsHandler:        businessHandler.GetStatsHandler,
		HealthHandler:       handlers.HealthHandler,

		CheckAvailabilityHandler: appointmentHandler.CheckAvailabilityHandler,
		ListAvailabilityHandler:  appointmentHandler.ListAvailabilityHandler,

		BookAppointmentHandler:   appointmentHandler.BookAppointmentHandler,
		ListAppointmentsHandler:  appointmentHandler.ListAppointmentsHandler,
		GetAppointmentHandler:    appointmentHandler.GetAppointmentHandler,
		CancelAppointmentHandler: appointmentHandler.CancelAppointmentHandler,

		StartCallHandler:    callHandler.StartCallHandler,
		CallTurnHandler:     callHandler.CallTurnHandler,
		CallAudioHandler:    callHandler.CallAudioHandler,
		CallSnapshotHandler: callHandler.CallSnapshotHandler,
		EndCallHandler:      callHandler.EndCallHandler,
		CallSignalsHandler:  callHandler.CallSignalsHandler,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin))
	routes.RegisterRoutes(router, handlerBundle)

	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting %s voice booking server on %s...", cal.Name, srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	calls.Shutdown(ctx)
	resolver.Wait()
	if worker != nil {
		worker.Shutdown()
	}
	stopRoot()

	logger.Sugar().Info("main: server stopped gracefully")
}
