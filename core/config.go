package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	serverConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
	}

	databaseConfig struct {
		Engine        string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
	}

	queueConfig struct {
		Backend            string // postgres | bolt
		BoltPath           string
		Workers            int
		PollInterval       time.Duration
		DailyReminderEvery time.Duration
		MonthlyReportEvery time.Duration
	}

	storageConfig struct {
		Backend      string // local | b2
		UploadDir    string
		ExportDir    string
		B2AccountID  string
		B2AppKey     string
		B2BucketName string
	}

	Config struct {
		AppName          string
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		SecretKey        string
		WorkDir          string
		LogLevel         string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SentryDSN        string
		SendgridApiKey   string

		Server   serverConfig
		Database databaseConfig
		Queue    queueConfig
		Storage  storageConfig
	}
)

func (db databaseConfig) Address() string {
	return db.Host + ":" + db.Port
}

func NewConfig() *Config {
	conf := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", env == "DEV")
	conf.SetDefault("testMode", env == "TEST")
	conf.SetDefault("appName", "Quizhub")
	conf.SetDefault("build", "develop")
	conf.SetDefault("secretKey", "k3o9-vzq)enb$+12=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2quz")
	conf.SetDefault("logLevel", "info")
	conf.SetDefault("frontendBaseURL", "http://localhost:8000")
	conf.SetDefault("defaultFromName", "Quizhub")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sentryDSN", "")
	conf.SetDefault("sendgridApiKey", "")

	conf.SetDefault("server.host", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.passwordResetTimeoutDelta", 3*24*time.Hour)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.user", "quizhub")
	conf.SetDefault("database.password", "quizhub")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "postgres")
	conf.SetDefault("database.name", "quizhub")
	conf.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")

	conf.SetDefault("queue.backend", "postgres")
	conf.SetDefault("queue.boltPath", filepath.Join(wd, "var", "jobs.db"))
	conf.SetDefault("queue.workers", 2)
	conf.SetDefault("queue.pollInterval", time.Second)
	conf.SetDefault("queue.dailyReminderEvery", 24*time.Hour)
	conf.SetDefault("queue.monthlyReportEvery", 30*24*time.Hour)

	conf.SetDefault("storage.backend", "local")
	conf.SetDefault("storage.uploadDir", filepath.Join(wd, "var", "uploads", "materials"))
	conf.SetDefault("storage.exportDir", filepath.Join(wd, "var", "exports"))
	conf.SetDefault("storage.b2AccountID", "")
	conf.SetDefault("storage.b2AppKey", "")
	conf.SetDefault("storage.b2BucketName", "")

	conf.AutomaticEnv()

	return &Config{
		AppName:         conf.GetString("appName"),
		Debug:           conf.GetBool("debug"),
		TestMode:        conf.GetBool("testMode"),
		Env:             env,
		Build:           conf.GetString("build"),
		SecretKey:       conf.GetString("secretKey"),
		WorkDir:         wd,
		LogLevel:        conf.GetString("logLevel"),
		FrontendBaseURL: conf.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{
			Name:    conf.GetString("defaultFromName"),
			Address: conf.GetString("defaultFromEmail"),
		},
		RollbarToken:   conf.GetString("rollbarToken"),
		SentryDSN:      conf.GetString("sentryDSN"),
		SendgridApiKey: conf.GetString("sendgridApiKey"),
		Server: serverConfig{
			Host:                      conf.GetString("server.host"),
			DebugHost:                 conf.GetString("server.debugHost"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
			PasswordResetTimeoutDelta: conf.GetDuration("server.passwordResetTimeoutDelta"),
		},
		Database: databaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			Name:          conf.GetString("database.name"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Queue: queueConfig{
			Backend:            conf.GetString("queue.backend"),
			BoltPath:           conf.GetString("queue.boltPath"),
			Workers:            conf.GetInt("queue.workers"),
			PollInterval:       conf.GetDuration("queue.pollInterval"),
			DailyReminderEvery: conf.GetDuration("queue.dailyReminderEvery"),
			MonthlyReportEvery: conf.GetDuration("queue.monthlyReportEvery"),
		},
		Storage: storageConfig{
			Backend:      conf.GetString("storage.backend"),
			UploadDir:    conf.GetString("storage.uploadDir"),
			ExportDir:    conf.GetString("storage.exportDir"),
			B2AccountID:  conf.GetString("storage.b2AccountID"),
			B2AppKey:     conf.GetString("storage.b2AppKey"),
			B2BucketName: conf.GetString("storage.b2BucketName"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: TEST mode with a throwaway work dir.
func NewTestConfig(workDir string) *Config {
	return &Config{
		AppName:          "Quizhub",
		TestMode:         true,
		Env:              "TEST",
		Build:            "test",
		SecretKey:        "test-secret-key",
		WorkDir:          workDir,
		LogLevel:         "error",
		FrontendBaseURL:  "http://localhost:8000",
		DefaultFromEmail: mail.Address{Name: "Quizhub", Address: "noreply@localhost"},
		Server: serverConfig{
			Host:                      ":0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		},
		Queue: queueConfig{
			Backend:      "bolt",
			BoltPath:     filepath.Join(workDir, "jobs.db"),
			Workers:      1,
			PollInterval: 10 * time.Millisecond,
		},
		Storage: storageConfig{
			Backend:   "local",
			UploadDir: filepath.Join(workDir, "uploads"),
			ExportDir: filepath.Join(workDir, "exports"),
		},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s[%s] env=%s debug=%v", c.AppName, c.Build, c.Env, c.Debug)
}
