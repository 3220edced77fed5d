package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homework_reminder_bot/internal/app"
	domainprovider "homework_reminder_bot/internal/domain/provider"
	"homework_reminder_bot/internal/infra/config"
	idb "homework_reminder_bot/internal/infra/database"
	"homework_reminder_bot/internal/infra/logger"
	"homework_reminder_bot/internal/infra/provider"
	"homework_reminder_bot/internal/infra/scheduler"
	"homework_reminder_bot/internal/infra/storage"
	"homework_reminder_bot/internal/infra/telegram"
	"homework_reminder_bot/internal/infra/whatsapp"

	"homework_reminder_bot/internal/domain/delivery"

	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Homework Reminder Bot starting...")

	mainLogger := log.New(os.Stdout, "MAIN: ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger.Printf("INFO: Configuration loaded. LogLevel: %s, Environment: %s, Timezone: %s", cfg.LogLevel, cfg.Environment, cfg.Timezone)

	location := cfg.Location()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Println("INFO: Database connection established successfully.")

	// Initialize Repositories
	homeworkRepo := idb.NewPostgresHomeworkRepository(db)
	reminderRepo := idb.NewPostgresReminderRepository(db)
	messageLogRepo := idb.NewPostgresMessageLogRepository(db)
	userRepo := idb.NewPostgresUserRepository(db)
	mainLogger.Println("INFO: Repositories initialized.")

	// Initialize OCR providers. Tesseract is always on; the cloud vision
	// engines join only when their keys are configured.
	extractors := []domainprovider.TextExtractor{provider.NewTesseractExtractor(cfg.OCRLanguages)}
	if cfg.TogetherAPIKey != "" {
		extractors = append(extractors, provider.NewTogetherVision(cfg.TogetherAPIKey, cfg.TogetherModel))
		mainLogger.Println("INFO: Together vision provider enabled.")
	}

	var (
		visionFallback domainprovider.TextExtractor
		structurer     domainprovider.Structurer
	)
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := provider.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			mainLogger.Fatalf("FATAL: Could not create Gemini client: %v", err)
		}
		defer geminiClient.Close()
		visionFallback = geminiClient.Vision()
		structurer = geminiClient.Structurer()
		mainLogger.Println("INFO: Gemini vision fallback and structurer enabled.")
	} else {
		mainLogger.Println("WARN: GEMINI_API_KEY not set; running without vision fallback, rule-based structuring only.")
	}

	ensembleCfg := app.EnsembleConfig{
		ConfidenceFloor:     cfg.ConfidenceFloor,
		SimilarityThreshold: cfg.SimilarityThreshold,
		ProviderTimeout:     cfg.ProviderTimeout,
		FallbackTimeout:     cfg.FallbackTimeout,
	}
	ensembleLogger := log.New(os.Stdout, "ENSEMBLE: ", log.LstdFlags|log.Lshortfile)
	ensemble := app.NewOCREnsemble(extractors, visionFallback, ensembleCfg, ensembleLogger)

	agentLogger := log.New(os.Stdout, "STRUCTURING: ", log.LstdFlags|log.Lshortfile)
	agent := app.NewStructuringAgent(structurer, app.NewRuleExtractor(location), location, agentLogger)

	extractionLogger := log.New(os.Stdout, "EXTRACTION: ", log.LstdFlags|log.Lshortfile)
	extractionService := app.NewExtractionService(ensemble, agent, storage.NewLoader(), homeworkRepo, extractionLogger)

	homeworkLogger := log.New(os.Stdout, "HOMEWORK: ", log.LstdFlags|log.Lshortfile)
	homeworkService := app.NewHomeworkService(homeworkRepo, homeworkLogger)

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			log.Printf("ERROR (telebot): %v", err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				log.Printf("ERROR (telebot context): Message: %s, Sender: %d, Chat: %d", c.Text(), c.Sender().ID, c.Chat().ID)
			}
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}

	// Initialize delivery channels
	senders := []delivery.Sender{telegram.NewSender(bot)}
	if cfg.WhatsAppToken != "" && cfg.WhatsAppPhoneID != "" {
		senders = append(senders, whatsapp.NewSender(cfg.WhatsAppToken, cfg.WhatsAppPhoneID, cfg.WhatsAppCostPerMsg))
		mainLogger.Println("INFO: WhatsApp channel enabled.")
	}
	dispatchLogger := log.New(os.Stdout, "DISPATCH: ", log.LstdFlags|log.Lshortfile)
	dispatcher := app.NewDispatcherImpl(senders, messageLogRepo, reminderRepo, userRepo, dispatchLogger)

	reminderLogger := log.New(os.Stdout, "REMINDER: ", log.LstdFlags|log.Lshortfile)
	reminderService := app.NewReminderService(
		homeworkRepo,
		reminderRepo,
		userRepo,
		messageLogRepo,
		dispatcher,
		func(err error) bool { return errors.Is(err, idb.ErrDuplicateReminderTier) },
		app.SchedulerConfig{
			Lookback:        time.Duration(cfg.ReminderLookbackDays) * 24 * time.Hour,
			Lookahead:       time.Duration(cfg.ReminderLookaheadHrs) * time.Hour,
			MaxSendAttempts: cfg.MaxSendAttempts,
		},
		reminderLogger,
	)

	// Initialize ReminderScheduler
	schedulerLogger := log.New(os.Stdout, "SCHEDULER: ", log.LstdFlags|log.Lshortfile)
	remScheduler := scheduler.NewReminderScheduler(
		reminderService,
		schedulerLogger,
		location,
		cfg.CronSpecReminderTick,
		cfg.CronSpecOverdueSweep,
	)
	remScheduler.Start() // Start the cron jobs

	// Register Handlers
	botCtx, cancelBotCtx := context.WithCancel(context.Background())
	defer cancelBotCtx()
	telegram.RegisterBotCommands(botCtx, bot, userRepo, extractionService, homeworkService, logger.Get().WithField("component", "telegram"))
	mainLogger.Println("INFO: Bot command handlers registered.")

	mainLogger.Println("INFO: Application setup complete. Bot and Scheduler are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Println("INFO: Shutting down application...")
	remScheduler.Stop()
	cancelBotCtx()
	bot.Stop()
	mainLogger.Println("INFO: Application shut down gracefully.")
}
