package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервиса.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	PGDSN     string `envconfig:"PG_DSN"`

	CharacterFile string `envconfig:"CHARACTER_FILE"`

	OpenAI struct {
		APIKey     string `envconfig:"OPENAI_API_KEY"`
		BaseURL    string `envconfig:"OPENAI_BASE_URL"`
		Model      string `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		TimeoutSec int    `envconfig:"OPENAI_TIMEOUT_SEC" default:"60"`
	} `envconfig:""`

	Twitter struct {
		Username          string `envconfig:"TWITTER_USERNAME"`
		APIKey            string `envconfig:"TWITTER_API_KEY"`
		APISecret         string `envconfig:"TWITTER_API_SECRET"`
		AccessToken       string `envconfig:"TWITTER_ACCESS_TOKEN"`
		AccessTokenSecret string `envconfig:"TWITTER_ACCESS_TOKEN_SECRET"`
		DryRun            bool   `envconfig:"TWITTER_DRY_RUN" default:"false"`
		MaxTweetLength    int    `envconfig:"MAX_TWEET_LENGTH" default:"280"`
		PostIntervalMin   int    `envconfig:"POST_INTERVAL_MIN" default:"90"`
		PostIntervalMax   int    `envconfig:"POST_INTERVAL_MAX" default:"180"`
		EnableGeneration  bool   `envconfig:"ENABLE_TWITTER_POST_GENERATION" default:"true"`
		PostImmediately   bool   `envconfig:"POST_IMMEDIATELY" default:"false"`
	} `envconfig:""`

	Approval struct {
		Enabled          bool   `envconfig:"TWITTER_APPROVAL_ENABLED" default:"false"`
		Provider         string `envconfig:"TWITTER_APPROVAL_PROVIDER" default:"RAIINMAKER"`
		CheckIntervalSec int    `envconfig:"TWITTER_APPROVAL_CHECK_INTERVAL" default:"300"`

		Discord struct {
			BotToken  string `envconfig:"TWITTER_APPROVAL_DISCORD_BOT_TOKEN"`
			ChannelID string `envconfig:"TWITTER_APPROVAL_DISCORD_CHANNEL_ID"`
		} `envconfig:""`

		Raiinmaker struct {
			BaseURL string `envconfig:"RAIINMAKER_BASE_URL"`
			AppID   string `envconfig:"RAIINMAKER_APP_ID"`
			APIKey  string `envconfig:"RAIINMAKER_API_KEY"`
		} `envconfig:""`
	} `envconfig:""`

	Media struct {
		Enabled     bool   `envconfig:"ENABLE_MEDIA_POSTING" default:"false"`
		FolderPath  string `envconfig:"MEDIA_FOLDER_PATH" default:"./media"`
		IntervalMin int    `envconfig:"MEDIA_POST_INTERVAL_MIN" default:"120"`
		IntervalMax int    `envconfig:"MEDIA_POST_INTERVAL_MAX" default:"240"`
	} `envconfig:""`

	Notify struct {
		TGToken  string `envconfig:"NOTIFY_TG_BOT_TOKEN"`
		TGChatID int64  `envconfig:"NOTIFY_TG_CHAT_ID"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
