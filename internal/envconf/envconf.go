package envconf

import (
	"time"

	"github.com/isafetyrobo/safety-agent/pkg/httpclient"
)

type FeedConf struct {
	ViolationsURL string        `env:"FEED_VIOLATIONS_URL,default=https://isafetyrobo.binarysemantics.org/api/violations"`
	PageSize      int           `env:"FEED_PAGE_SIZE,default=10000"`
	PollInterval  time.Duration `env:"FEED_POLL_INTERVAL,default=5s"`
	Autostart     bool          `env:"FEED_AUTOSTART,default=true"`
}

type VisionConf struct {
	BaseURL        string        `env:"VISION_BASE_URL,default=https://devvisionapi.binarysemantics.com/v1/vision/generic"`
	Token          string        `env:"VISION_TOKEN"`
	AccountIDs     []string      `env:"VISION_ACCOUNT_IDS,default=1;2"`
	WebSocketURL   string        `env:"VISION_WS_URL,default=wss://devvisionapi.binarysemantics.com/ws"`
	ReconnectDelay time.Duration `env:"VISION_WS_RECONNECT_DELAY,default=5s"`
}

type DBConf struct {
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT,default=5432"`
	Username string `env:"DB_USER,default=postgres"`
	Password string `env:"DB_PASS"`
	DbName   string `env:"DB_NAME,default=safety"`

	SQLLite     bool   `env:"SQL_LITE,default=true"`
	SQLLitePath string `env:"SQL_LITE_PATH,default=./safety-agent.db"`
}

type RedisConf struct {
	Host     string        `env:"REDIS_HOST,default=localhost"`
	Port     string        `env:"REDIS_PORT,default=6379"`
	Username string        `env:"REDIS_USER"`
	Password string        `env:"REDIS_PASS"`
	DB       int           `env:"REDIS_DB,default=0"`
	TTL      time.Duration `env:"REDIS_SNAPSHOT_TTL,default=24h"`
}

type LogStoreConf struct {
	LogStoreDir string `env:"LOG_STORE_DIR,default=/var/tmp/safety-agent"`
}

type AlertConf struct {
	WebhookURL string `env:"ALERT_WEBHOOK_URL"`
}

type EnvDecoderConf struct {
	Debug      bool   `env:"DEBUG,default=true"`
	ServerPort uint   `env:"SERVER_PORT,default=10001"`
	CacheKind  string `env:"CACHE_KIND,default=db"`

	FeedConf       FeedConf
	VisionConf     VisionConf
	DBConf         DBConf
	RedisConf      RedisConf
	LogStoreConf   LogStoreConf
	AlertConf      AlertConf
	HTTPClientConf httpclient.HTTPClientConf
}
