package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
		RateLimit                 float64 // requests per second, per client
		RateBurst                 int
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	JournalConfig struct {
		Name         string
		Abbreviation string
		ISSN         string
		EISSN        string
		Publisher    string
		BaseURL      string
		DOIPrefix    string
		ContactEmail string
		SubjectAreas []string
	}

	RegistrarConfig struct {
		URL      string
		Username string
		Password string
		Enabled  bool
	}

	StorageConfig struct {
		Dir           string
		MaxUploadSize int64
	}

	ReviewConfig struct {
		DueDays               int
		MaxActiveAssignments  int
		CoauthorLookbackYears int
		ReminderSchedule      string
		ReminderLeadDays      int
	}

	LogConfig struct {
		File       string
		MaxSizeMB  int
		MaxBackups int
		Level      string
	}

	Config struct {
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		PasswordResetTimeoutDelta time.Duration
		RollbarToken              string
		SendgridAPIKey            string

		Server    ServerConfig
		Database  DatabaseConfig
		Journal   JournalConfig
		Registrar RegistrarConfig
		Storage   StorageConfig
		Review    ReviewConfig
		Log       LogConfig
	}
)

// Address returns the database "host:port".
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig loads the application configuration from the environment (and `config/.env.<env>` if it exists).
// Env vars are prefixed by the current ENV, eg: DEV_DEBUG=false, PROD_DATABASE_HOST=db
func NewConfig() *Config {
	conf := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", env == "DEV")
	conf.SetDefault("testMode", env == "TEST")
	conf.SetDefault("appName", "Jarida")
	conf.SetDefault("secretKey", "k3e!o2w#q9v*n5l&j@h8x^dz4r(c7m)t-y1u+s6f0")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridAPIKey", "")

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.jwtExpirationDelta", 15*time.Minute)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.rateLimit", 1.0)
	conf.SetDefault("server.rateBurst", 5)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "jarida")
	conf.SetDefault("database.user", "jarida")
	conf.SetDefault("database.password", "jarida")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "postgres")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("journal.name", "Jarida Journal of Science")
	conf.SetDefault("journal.abbreviation", "JJS")
	conf.SetDefault("journal.issn", "")
	conf.SetDefault("journal.eissn", "")
	conf.SetDefault("journal.publisher", "Jarida")
	conf.SetDefault("journal.baseURL", "http://localhost:3000")
	conf.SetDefault("journal.doiPrefix", "10.5555")
	conf.SetDefault("journal.contactEmail", "editorial@localhost")
	conf.SetDefault("journal.subjectAreas", "biology,chemistry,computer_science,earth_science,engineering,mathematics,medicine,physics,social_science")

	conf.SetDefault("registrar.url", "https://test.crossref.org/servlet/deposit")
	conf.SetDefault("registrar.username", "")
	conf.SetDefault("registrar.password", "")
	conf.SetDefault("registrar.enabled", false)

	conf.SetDefault("storage.dir", filepath.Join(os.TempDir(), "jarida"))
	conf.SetDefault("storage.maxUploadSize", int64(50<<20))

	conf.SetDefault("review.dueDays", 21)
	conf.SetDefault("review.maxActiveAssignments", 3)
	conf.SetDefault("review.coauthorLookbackYears", 5)
	conf.SetDefault("review.reminderSchedule", "@daily")
	conf.SetDefault("review.reminderLeadDays", 3)

	conf.SetDefault("log.file", "")
	conf.SetDefault("log.maxSizeMB", 10)
	conf.SetDefault("log.maxBackups", 5)
	conf.SetDefault("log.level", "info")

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}

	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	fromEmail, err := mail.ParseAddress(conf.GetString("defaultFromEmail"))
	if err != nil {
		fromEmail = &mail.Address{Address: conf.GetString("defaultFromEmail")}
	}
	if fromEmail.Name == "" {
		fromEmail.Name = conf.GetString("appName")
	}

	return &Config{
		Env:                       env,
		Build:                     conf.GetString("build"),
		Debug:                     conf.GetBool("debug"),
		TestMode:                  conf.GetBool("testMode"),
		AppName:                   conf.GetString("appName"),
		SecretKey:                 conf.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimSuffix(conf.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail:          *fromEmail,
		PasswordResetTimeoutDelta: conf.GetDuration("passwordResetTimeoutDelta"),
		RollbarToken:              conf.GetString("rollbarToken"),
		SendgridAPIKey:            conf.GetString("sendgridAPIKey"),
		Server: ServerConfig{
			Host:                      conf.GetString("server.host"),
			Address:                   conf.GetString("server.address"),
			DebugHost:                 conf.GetString("server.debugHost"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
			RateLimit:                 conf.GetFloat64("server.rateLimit"),
			RateBurst:                 conf.GetInt("server.rateBurst"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Journal: JournalConfig{
			Name:         conf.GetString("journal.name"),
			Abbreviation: conf.GetString("journal.abbreviation"),
			ISSN:         conf.GetString("journal.issn"),
			EISSN:        conf.GetString("journal.eissn"),
			Publisher:    conf.GetString("journal.publisher"),
			BaseURL:      strings.TrimSuffix(conf.GetString("journal.baseURL"), "/"),
			DOIPrefix:    conf.GetString("journal.doiPrefix"),
			ContactEmail: conf.GetString("journal.contactEmail"),
			SubjectAreas: splitList(conf.GetString("journal.subjectAreas")),
		},
		Registrar: RegistrarConfig{
			URL:      conf.GetString("registrar.url"),
			Username: conf.GetString("registrar.username"),
			Password: conf.GetString("registrar.password"),
			Enabled:  conf.GetBool("registrar.enabled"),
		},
		Storage: StorageConfig{
			Dir:           conf.GetString("storage.dir"),
			MaxUploadSize: conf.GetInt64("storage.maxUploadSize"),
		},
		Review: ReviewConfig{
			DueDays:               conf.GetInt("review.dueDays"),
			MaxActiveAssignments:  conf.GetInt("review.maxActiveAssignments"),
			CoauthorLookbackYears: conf.GetInt("review.coauthorLookbackYears"),
			ReminderSchedule:      conf.GetString("review.reminderSchedule"),
			ReminderLeadDays:      conf.GetInt("review.reminderLeadDays"),
		},
		Log: LogConfig{
			File:       conf.GetString("log.file"),
			MaxSizeMB:  conf.GetInt("log.maxSizeMB"),
			MaxBackups: conf.GetInt("log.maxBackups"),
			Level:      conf.GetString("log.level"),
		},
	}
}

// NewTestConfig returns the configuration used by tests; it never touches the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		AppName:                   "Jarida",
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "Jarida", Address: "noreply@localhost"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: ServerConfig{
			Host:                      "localhost",
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			ShutdownTimeout:           time.Second,
			RateLimit:                 100,
			RateBurst:                 100,
		},
		Journal: JournalConfig{
			Name:         "Jarida Journal of Science",
			Abbreviation: "JJS",
			ISSN:         "1234-5679",
			Publisher:    "Jarida",
			BaseURL:      "https://journal.test",
			DOIPrefix:    "10.5555",
			ContactEmail: "editorial@journal.test",
			SubjectAreas: []string{"biology", "chemistry", "computer_science", "mathematics", "physics"},
		},
		Storage: StorageConfig{MaxUploadSize: 1 << 20},
		Review: ReviewConfig{
			DueDays:               21,
			MaxActiveAssignments:  3,
			CoauthorLookbackYears: 5,
			ReminderSchedule:      "@daily",
			ReminderLeadDays:      3,
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = CleanString(item, true /* lower */); item != "" {
			out = append(out, item)
		}
	}
	return out
}
