package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	LogLevel    string
	DBPath      string
	OutputDir   string
	RulesFile   string
	ContractRef string

	WorkbookPath string
	DataSheet    string
	PriceSheet   string
	TemplateDir  string

	TrelloAPIBaseURL      string
	TrelloAPIKey          string
	TrelloToken           string
	TrelloBoardID         string
	TrelloRateLimitRPS    int
	TrelloTimeoutMs       int
	TrelloIncludeArchived bool

	RowStore              string
	SheetsSpreadsheetID   string
	SheetsEndpoint        string
	CloudProvider         string
	CloudRemoteName       string
	CloudLocalDir         string
	CloudFolderID         string
	GoogleCredentialsFile string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleRefreshToken string

	MailProvider  string
	MailFrom      string
	MailTo        string
	MailOutboxDir string

	IMAPHost          string
	IMAPPort          int
	IMAPSecure        bool
	IMAPUser          string
	IMAPPassword      string
	IMAPDraftsMailbox string

	ListenerIntervalSec int
	ListenerUpload      bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		DBPath:      getEnv("DB_PATH", filepath.Join(cwd, "data", "history.db")),
		OutputDir:   getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		RulesFile:   getEnv("RULES_FILE", ""),
		ContractRef: getEnv("CONTRACT_REF", ""),

		WorkbookPath: getEnv("WORKBOOK_PATH", filepath.Join(cwd, "data", "works.xlsx")),
		DataSheet:    getEnv("DATA_SHEET", "Работы"),
		PriceSheet:   getEnv("PRICE_SHEET", "расценки"),
		TemplateDir:  getEnv("DOC_TEMPLATE_DIR", filepath.Join(cwd, "templates")),

		TrelloAPIBaseURL:      getEnv("TRELLO_API_BASE_URL", "https://api.trello.com/1"),
		TrelloAPIKey:          getEnv("TRELLO_API_KEY", ""),
		TrelloToken:           getEnv("TRELLO_TOKEN", ""),
		TrelloBoardID:         getEnv("TRELLO_BOARD_ID", ""),
		TrelloRateLimitRPS:    getEnvInt("TRELLO_RATE_LIMIT_RPS", 5),
		TrelloTimeoutMs:       getEnvInt("TRELLO_TIMEOUT_MS", 30000),
		TrelloIncludeArchived: getEnvBool("TRELLO_INCLUDE_ARCHIVED", true),

		RowStore:              strings.ToLower(getEnv("ROW_STORE", "xlsx")),
		SheetsSpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsEndpoint:        getEnv("SHEETS_ENDPOINT", ""),
		CloudProvider:         strings.ToLower(getEnv("CLOUD_PROVIDER", "none")),
		CloudRemoteName:       getEnv("CLOUD_REMOTE_NAME", "works.xlsx"),
		CloudLocalDir:         getEnv("CLOUD_LOCAL_DIR", filepath.Join(cwd, "data", "remote")),
		CloudFolderID:         getEnv("CLOUD_FOLDER_ID", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),

		MailProvider:  strings.ToLower(getEnv("MAIL_PROVIDER", "file")),
		MailFrom:      getEnv("MAIL_FROM", ""),
		MailTo:        getEnv("MAIL_TO", ""),
		MailOutboxDir: getEnv("MAIL_OUTBOX_DIR", filepath.Join(cwd, "out", "mail")),

		IMAPHost:          getEnv("IMAP_HOST", ""),
		IMAPPort:          getEnvInt("IMAP_PORT", 993),
		IMAPSecure:        getEnvBool("IMAP_SECURE", true),
		IMAPUser:          getEnv("IMAP_USER", ""),
		IMAPPassword:      getEnv("IMAP_PASSWORD", ""),
		IMAPDraftsMailbox: getEnv("IMAP_DRAFTS_MAILBOX", "Drafts"),

		ListenerIntervalSec: getEnvInt("LISTENER_INTERVAL_SEC", 300),
		ListenerUpload:      getEnvBool("LISTENER_UPLOAD", true),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
