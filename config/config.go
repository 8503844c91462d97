package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"voicebook/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid business calendar config")

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Business calendar.
	BusinessName        string `mapstructure:"BUSINESS_NAME"`
	BusinessHours       string `mapstructure:"BUSINESS_HOURS"`
	AppointmentDuration int    `mapstructure:"APPOINTMENT_DURATION"`
	BusinessTimezone    string `mapstructure:"BUSINESS_TIMEZONE"`
	BusinessDays        string `mapstructure:"BUSINESS_DAYS"`
	ServiceTypes        string `mapstructure:"SERVICE_TYPES"`
	DefaultLanguage     string `mapstructure:"DEFAULT_LANGUAGE"`

	// Calendar storage.
	CalendarBackend string `mapstructure:"CALENDAR_BACKEND"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	DatabaseName    string `mapstructure:"DATABASE_NAME"`

	// Redis configuration.
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	RedisPassword     string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB    int    `mapstructure:"REDIS_SESSION_DB"`
	RedisLockDB       int    `mapstructure:"REDIS_LOCK_DB"`
	RedisQueueDB      int    `mapstructure:"REDIS_QUEUE_DB"`
	SessionTTLMinutes int    `mapstructure:"SESSION_TTL_MINUTES"`

	// Google collaborators.
	GeminiAPIKey             string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel              string `mapstructure:"GEMINI_MODEL"`
	GoogleServiceAccountFile string `mapstructure:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	FirebaseCredentialsFile  string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	FirebaseTopic            string `mapstructure:"FIREBASE_TOPIC"`

	ReminderLeadHours int `mapstructure:"REMINDER_LEAD_HOURS"`
	TurnSampleMs      int `mapstructure:"TURN_SAMPLE_MS"`
	MaxFieldRetries   int `mapstructure:"MAX_FIELD_RETRIES"`
}

var AppConfig Config

func LoadConfig() {
	// A .env file is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 100)

	v.SetDefault("BUSINESS_NAME", "Cabinet du Dr Martin")
	v.SetDefault("BUSINESS_HOURS", "09:00-17:00")
	v.SetDefault("APPOINTMENT_DURATION", 30)
	v.SetDefault("BUSINESS_TIMEZONE", "Europe/Paris")
	v.SetDefault("BUSINESS_DAYS", "mon,tue,wed,thu,fri")
	v.SetDefault("SERVICE_TYPES", "consultation|consult|rendez-vous,follow-up|suivi|controle|contrôle,check-up|checkup|bilan")
	v.SetDefault("DEFAULT_LANGUAGE", "fr")

	v.SetDefault("CALENDAR_BACKEND", "mongo")
	v.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	v.SetDefault("DATABASE_NAME", "voicebook")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_SESSION_DB", 0)
	v.SetDefault("REDIS_LOCK_DB", 1)
	v.SetDefault("REDIS_QUEUE_DB", 2)
	v.SetDefault("SESSION_TTL_MINUTES", 30)

	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "models/gemini-1.5-flash")
	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	v.SetDefault("FIREBASE_TOPIC", "bookings")

	v.SetDefault("REMINDER_LEAD_HOURS", 24)
	v.SetDefault("TURN_SAMPLE_MS", 100)
	v.SetDefault("MAX_FIELD_RETRIES", 3)
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c Config) TurnSampleInterval() time.Duration {
	return time.Duration(c.TurnSampleMs) * time.Millisecond
}

func (c Config) ReminderLead() time.Duration {
	return time.Duration(c.ReminderLeadHours) * time.Hour
}

// BusinessCalendar validates the raw business keys. Errors wrap ErrInvalidConfig.
func (c Config) BusinessCalendar() (models.BusinessCalendarConfig, error) {
	openMin, closeMin, err := parseHours(c.BusinessHours)
	if err != nil {
		return models.BusinessCalendarConfig{}, err
	}
	if c.AppointmentDuration <= 0 {
		return models.BusinessCalendarConfig{}, fmt.Errorf("%w: appointment duration %d must be positive", ErrInvalidConfig, c.AppointmentDuration)
	}
	if openMin >= closeMin {
		return models.BusinessCalendarConfig{}, fmt.Errorf("%w: opening %s is not before closing", ErrInvalidConfig, c.BusinessHours)
	}

	loc := time.UTC
	if c.BusinessTimezone != "" {
		loc, err = time.LoadLocation(c.BusinessTimezone)
		if err != nil {
			return models.BusinessCalendarConfig{}, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.BusinessTimezone, err)
		}
	}

	days, err := parseDays(c.BusinessDays)
	if err != nil {
		return models.BusinessCalendarConfig{}, err
	}

	return models.BusinessCalendarConfig{
		Name:         c.BusinessName,
		OpenMinute:   openMin,
		CloseMinute:  closeMin,
		Duration:     time.Duration(c.AppointmentDuration) * time.Minute,
		Location:     loc,
		OpenDays:     days,
		ServiceTypes: parseServiceTypes(c.ServiceTypes),
		Languages:    []models.Language{models.LanguageFrench, models.LanguageEnglish},
	}, nil
}

// parseHours reads "HH:MM-HH:MM".
func parseHours(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: business hours %q must look like 09:00-17:00", ErrInvalidConfig, s)
	}
	openMin, err := parseClock(parts[0])
	if err != nil {
		return 0, 0, err
	}
	closeMin, err := parseClock(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return openMin, closeMin, nil
}

func parseClock(s string) (int, error) {
	hm := strings.Split(strings.TrimSpace(s), ":")
	if len(hm) != 2 {
		return 0, fmt.Errorf("%w: bad time of day %q", ErrInvalidConfig, s)
	}
	h, err1 := strconv.Atoi(hm[0])
	m, err2 := strconv.Atoi(hm[1])
	if err1 != nil || err2 != nil || h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: bad time of day %q", ErrInvalidConfig, s)
	}
	return h*60 + m, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseDays(s string) (map[time.Weekday]bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	out := make(map[time.Weekday]bool)
	for _, d := range strings.Split(s, ",") {
		key := strings.ToLower(strings.TrimSpace(d))
		if len(key) > 3 {
			key = key[:3]
		}
		wd, ok := weekdays[key]
		if !ok {
			return nil, fmt.Errorf("%w: unknown business day %q", ErrInvalidConfig, d)
		}
		out[wd] = true
	}
	return out, nil
}

// parseServiceTypes reads "id|alias|alias,id2|alias".
func parseServiceTypes(s string) []models.ServiceType {
	var out []models.ServiceType
	for _, entry := range strings.Split(s, ",") {
		names := strings.Split(entry, "|")
		id := strings.TrimSpace(names[0])
		if id == "" {
			continue
		}
		st := models.ServiceType{ID: id}
		for _, a := range names[1:] {
			if a = strings.TrimSpace(a); a != "" {
				st.Aliases = append(st.Aliases, a)
			}
		}
		out = append(out, st)
	}
	return out
}
