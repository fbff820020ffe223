package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/viewer360/viewer360/config"
	"github.com/viewer360/viewer360/database"
	"github.com/viewer360/viewer360/logger"
	"github.com/viewer360/viewer360/web"
	"github.com/viewer360/viewer360/web/cache"
	"github.com/viewer360/viewer360/web/service"

	"github.com/op/go-logging"
	"github.com/spf13/cobra"
)

func initLogger() {
	switch config.GetLogLevel() {
	case config.Debug:
		logger.InitLogger(logging.DEBUG)
	case config.Info:
		logger.InitLogger(logging.INFO)
	case config.Notice:
		logger.InitLogger(logging.NOTICE)
	case config.Warn:
		logger.InitLogger(logging.WARNING)
	case config.Error:
		logger.InitLogger(logging.ERROR)
	default:
		log.Fatal("unknown log level:", config.GetLogLevel())
	}
}

func initDB() error {
	return database.InitDBWithConfig(config.GetDatabaseConfigFromEnv())
}

func runWebServer() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())
	initLogger()
	defer logger.CloseLogger()

	if err := initDB(); err != nil {
		log.Fatal(err)
	}
	defer database.CloseDB()

	if err := cache.InitRedis(config.GetRedisAddr()); err != nil {
		logger.Warning("redis unavailable, rate limiting and stats caching disabled:", err)
	} else if cache.IsEmbedded() && config.UseRedisSessions() {
		logger.Warning("sessions are kept in the embedded redis and are lost on restart")
	}
	defer cache.Close()

	server := web.NewServer()
	if err := server.Start(); err != nil {
		log.Println(err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			server = web.NewServer()
			if err := server.Start(); err != nil {
				log.Println(err)
				return
			}
		default:
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			return
		}
	}
}

func migrateDb() {
	if err := initDB(); err != nil {
		log.Fatal(err)
	}
	defer database.CloseDB()

	fmt.Println("Start migrating database...")
	markerService := service.MarkerService{}
	changed, err := markerService.Normalize()
	if err != nil {
		fmt.Println("normalize markers failed:", err)
		return
	}
	fmt.Printf("Migration done! %d marker(s) normalized\n", changed)
}

func promoteAdmin(id int) {
	if id <= 0 {
		fmt.Println("a user id is required")
		return
	}
	if err := initDB(); err != nil {
		fmt.Println(err)
		return
	}
	defer database.CloseDB()

	userService := service.UserService{}
	user, err := userService.GetUserById(id)
	if err != nil {
		fmt.Printf("user %d not found: %v\n", id, err)
		return
	}
	if user.IsAdmin() {
		fmt.Printf("%s is already an admin\n", user.Username)
		return
	}
	moderationService := service.ModerationService{}
	if err := moderationService.PromoteToAdmin(id); err != nil {
		fmt.Println("promote failed:", err)
		return
	}
	fmt.Printf("%s has been promoted to admin\n", user.Username)
}

func cleanupOrphans() {
	if err := initDB(); err != nil {
		fmt.Println(err)
		return
	}
	defer database.CloseDB()

	moderationService := service.ModerationService{}
	result, err := moderationService.SweepOrphans()
	if err != nil {
		fmt.Println("cleanup failed:", err)
		return
	}
	for _, f := range result.OrphanFiles {
		fmt.Printf("removed %s (%s)\n", f.Name, f.SizeFormatted)
	}
	fmt.Printf("%d file(s) removed, %s freed\n", result.DeletedCount, result.FreedSpaceFormatted)
}

func resetSetting() {
	if err := initDB(); err != nil {
		fmt.Println(err)
		return
	}
	defer database.CloseDB()

	settingService := service.SettingService{}
	if err := settingService.ResetSettings(); err != nil {
		fmt.Println("reset setting failed:", err)
	} else {
		fmt.Println("reset setting success")
	}
}

func showSetting() {
	if err := initDB(); err != nil {
		fmt.Println(err)
		return
	}
	defer database.CloseDB()

	settingService := service.SettingService{}
	allSetting, err := settingService.GetAllSetting()
	if err != nil {
		fmt.Println("get current settings failed, error info:", err)
		return
	}
	fmt.Println("current panel settings as follows:")
	fmt.Println("listen:", allSetting.WebListen)
	fmt.Println("port:", allSetting.WebPort)
	fmt.Println("webBasePath:", allSetting.WebBasePath)
	fmt.Println("sessionMaxAge:", allSetting.SessionMaxAge)
	fmt.Println("orphanCleanupCron:", allSetting.OrphanCleanupCron)
	fmt.Println("rateLimitPerMinute:", allSetting.RateLimitPerMinute)
	fmt.Println("registrationOpen:", allSetting.RegistrationOpen)
	fmt.Println("uploadDir:", config.GetUploadDir())
}

func updateSetting(port int, listen string, basePath string) {
	if err := initDB(); err != nil {
		fmt.Println(err)
		return
	}
	defer database.CloseDB()

	settingService := service.SettingService{}

	if port > 0 {
		if err := settingService.SetPort(port); err != nil {
			fmt.Println("set port failed:", err)
		} else {
			fmt.Printf("set port %v success\n", port)
		}
	}
	if listen != "" {
		if err := settingService.SetListen(listen); err != nil {
			fmt.Println("set listen failed:", err)
		} else {
			fmt.Printf("set listen %v success\n", listen)
		}
	}
	if basePath != "" {
		if err := settingService.SetBasePath(basePath); err != nil {
			fmt.Println("set base path failed:", err)
		} else {
			fmt.Printf("set base path %v success\n", basePath)
		}
	}
}

func main() {
	config.LoadEnv()

	var rootCmd = &cobra.Command{
		Use:     "viewer360",
		Version: config.GetVersion(),
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	}

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database schema and repair legacy rows",
		Run: func(cmd *cobra.Command, args []string) {
			migrateDb()
		},
	}

	var adminCmd = &cobra.Command{
		Use:   "admin",
		Short: "Administrative tasks",
	}

	var promoteCmd = &cobra.Command{
		Use:   "promote",
		Short: "Grant the admin role to a user",
		Run: func(cmd *cobra.Command, args []string) {
			id, _ := cmd.Flags().GetInt("id")
			promoteAdmin(id)
		},
	}
	promoteCmd.Flags().Int("id", 0, "user id to promote")

	var cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Remove uploaded files that nothing references",
		Run: func(cmd *cobra.Command, args []string) {
			cleanupOrphans()
		},
	}

	adminCmd.AddCommand(promoteCmd, cleanupCmd)

	var settingCmd = &cobra.Command{
		Use:   "setting",
		Short: "Set settings",
	}

	var resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Reset all settings",
		Run: func(cmd *cobra.Command, args []string) {
			resetSetting()
		},
	}

	var showCmd = &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		Run: func(cmd *cobra.Command, args []string) {
			showSetting()
		},
	}

	var updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Update settings",
		Run: func(cmd *cobra.Command, args []string) {
			port, _ := cmd.Flags().GetInt("port")
			listen, _ := cmd.Flags().GetString("listen")
			basePath, _ := cmd.Flags().GetString("webBasePath")
			updateSetting(port, listen, basePath)
		},
	}

	updateCmd.Flags().Int("port", 0, "set panel port")
	updateCmd.Flags().String("listen", "", "set listen IP")
	updateCmd.Flags().String("webBasePath", "", "set base path")

	settingCmd.AddCommand(resetCmd, showCmd, updateCmd)

	rootCmd.AddCommand(runCmd, migrateCmd, adminCmd, settingCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
