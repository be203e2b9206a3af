package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr string

	// Host chat application
	HostBaseURL string
	HostToken   string

	// Redis document cache in front of host chat fetches
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ChatDocTTL    time.Duration

	// Local settings store (preview-chat registry)
	SettingsDBPath string

	// Browse sessions
	SessionTTL       time.Duration
	FavoritesPerPage int

	// Active-chat autosave debounce window
	AutosaveDelay time.Duration
}

func Load() Config {
	listen := os.Getenv("LISTEN_ADDR")
	if listen == "" {
		listen = ":8189"
	}

	hostBaseURL := os.Getenv("HOST_BASE_URL")
	if hostBaseURL == "" {
		hostBaseURL = "http://127.0.0.1:8000"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	docTTL := 5 * time.Minute
	if v := os.Getenv("CHAT_DOC_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			docTTL = time.Duration(n) * time.Second
		}
	}

	settingsPath := os.Getenv("SETTINGS_DB_PATH")
	if settingsPath == "" {
		settingsPath = "favpanel.db"
	}

	sessionTTL := 30 * time.Minute
	if v := os.Getenv("SESSION_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			sessionTTL = time.Duration(n) * time.Minute
		}
	}

	perPage := 5
	if v := os.Getenv("FAVORITES_PER_PAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			perPage = n
		}
	}

	autosaveDelay := time.Second
	if v := os.Getenv("AUTOSAVE_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			autosaveDelay = time.Duration(n) * time.Millisecond
		}
	}

	return Config{
		ListenAddr: listen,

		HostBaseURL: hostBaseURL,
		HostToken:   os.Getenv("HOST_TOKEN"),

		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		ChatDocTTL:    docTTL,

		SettingsDBPath: settingsPath,

		SessionTTL:       sessionTTL,
		FavoritesPerPage: perPage,

		AutosaveDelay: autosaveDelay,
	}
}
