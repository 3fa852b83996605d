// Package config handles process configuration and user settings
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/resultcap/platform/internal/geometry"
)

// DefaultWindows maps each game to the window title its client uses.
var DefaultWindows = map[geometry.Game]string{
	geometry.GameRespectV:   "DJMAX RESPECT V",
	geometry.GamePlatinaLab: "PLATINA :: LAB",
}

type Config struct {
	HTTPAddr          string
	OCRAddr           string
	BackendURL        string
	AppName           string
	PicturesDir       string
	SettingsFile      string
	GeometryFile      string
	HistoryDB         string
	OCRTimeout        time.Duration
	UploadTimeout     time.Duration
	UserID            string
	UserToken         string
	Games             []geometry.Game
	Windows           map[geometry.Game]string
	SkipSimilarFrames bool
	MaxHashDistance   int
}

// Load reads the environment, after applying an optional .env file
// (ENV_FILE, default ".env"). Variables already set win over the file.
func Load() *Config {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load env file", "path", envFile, "error", err)
	}

	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", "127.0.0.1:8000"),
		OCRAddr:           getEnv("OCR_ADDR", "localhost:50051"),
		BackendURL:        strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8080"), "/"),
		AppName:           getEnv("APP_NAME", "ResultCapture"),
		PicturesDir:       getEnv("PICTURES_DIR", defaultPicturesDir()),
		SettingsFile:      getEnv("SETTINGS_FILE", "settings.ini"),
		GeometryFile:      getEnv("GEOMETRY_FILE", ""),
		HistoryDB:         getEnv("HISTORY_DB", "history.db"),
		OCRTimeout:        getEnvDuration("OCR_TIMEOUT", 5*time.Second),
		UploadTimeout:     getEnvDuration("UPLOAD_TIMEOUT", 30*time.Second),
		UserID:            getEnv("RESULT_USER_ID", ""),
		UserToken:         getEnv("RESULT_USER_TOKEN", ""),
		Games:             parseGames(getEnvList("GAMES", []string{string(geometry.GameRespectV), string(geometry.GamePlatinaLab)})),
		Windows:           parseWindows(getEnv("GAME_WINDOWS", "")),
		SkipSimilarFrames: getEnvBool("SKIP_SIMILAR_FRAMES", true),
		MaxHashDistance:   getEnvInt("MAX_HASH_DISTANCE", 4),
	}
}

// Window returns the window title to capture for game.
func (c *Config) Window(game geometry.Game) string {
	if w, ok := c.Windows[game]; ok {
		return w
	}
	return DefaultWindows[game]
}

func defaultPicturesDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Pictures")
}

func parseGames(names []string) []geometry.Game {
	games := make([]geometry.Game, 0, len(names))
	for _, n := range names {
		games = append(games, geometry.Game(strings.ToLower(n)))
	}
	return games
}

// parseWindows reads "game=title;game=title". Titles may contain commas.
func parseWindows(v string) map[geometry.Game]string {
	out := make(map[geometry.Game]string)
	for _, pair := range strings.Split(v, ";") {
		game, title, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		game = strings.ToLower(strings.TrimSpace(game))
		title = strings.TrimSpace(title)
		if game != "" && title != "" {
			out[geometry.Game(game)] = title
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("750ms") or whole seconds ("5").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if s, err := strconv.Atoi(v); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
