package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"dahlia-pipeline"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"dahlia"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis (job queues, locks, DLQ)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Stage queues. Each stage is its own stream + consumer group; worker
	// counts are independent so the costly generator stays narrow and the
	// index writer stays serialized.
	QueueStreamPrefix       string        `env:"QUEUE_STREAM_PREFIX" env-default:"dahlia"`
	QueueConsumerGroup      string        `env:"QUEUE_CONSUMER_GROUP" env-default:"dahlia-workers"`
	QueueMaxAttempts        int           `env:"QUEUE_MAX_ATTEMPTS" env-default:"5"`
	QueueClaimInterval      time.Duration `env:"QUEUE_CLAIM_INTERVAL" env-default:"30s"`
	QueueClaimMinIdle       time.Duration `env:"QUEUE_CLAIM_MIN_IDLE" env-default:"60s"`
	QueueDLQStream          string        `env:"QUEUE_DLQ_STREAM" env-default:"dahlia:dlq"`
	PromptSynthWorkerCount  int           `env:"PROMPT_SYNTH_WORKER_COUNT" env-default:"4"`
	AssetGenWorkerCount     int           `env:"ASSET_GEN_WORKER_COUNT" env-default:"2"`
	LocalizationWorkerCount int           `env:"LOCALIZATION_WORKER_COUNT" env-default:"4"`
	LinkIndexWorkerCount    int           `env:"LINK_INDEX_WORKER_COUNT" env-default:"1"`
	RemediationWorkerCount  int           `env:"REMEDIATION_WORKER_COUNT" env-default:"2"`

	// Kafka producer (lifecycle events for downstream readers)
	KafkaBrokers        []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaEventsTopic    string   `env:"KAFKA_EVENTS_TOPIC" env-default:"asset-events"`
	KafkaEventsEnabled  bool     `env:"KAFKA_EVENTS_ENABLED" env-default:"true"`
	KafkaBatchSize      int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeoutMS int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks   int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`

	// Generation quotas
	GenerationEnabled    bool    `env:"GENERATION_ENABLED" env-default:"true"`
	GlobalDailyCap       int     `env:"GLOBAL_DAILY_CAP" env-default:"200"`
	QuotaMultiplier      float64 `env:"QUOTA_MULTIPLIER" env-default:"1.0"`
	GeneratorMaxAttempts int     `env:"GENERATOR_MAX_ATTEMPTS" env-default:"3"`

	// Scheduler
	GovernorInterval    time.Duration `env:"GOVERNOR_INTERVAL" env-default:"1h"`
	RemediationInterval time.Duration `env:"REMEDIATION_INTERVAL" env-default:"6h"`
	RemediationLimit    int           `env:"REMEDIATION_LIMIT" env-default:"50"`
	SchedulerLockTTL    time.Duration `env:"SCHEDULER_LOCK_TTL" env-default:"10m"`

	// Localization
	DefaultLocale        string   `env:"DEFAULT_LOCALE" env-default:"en"`
	SupportedLocales     []string `env:"SUPPORTED_LOCALES" env-default:"en,de,fr,es,it,pt,nl,pl,sv,da,fi,no"`
	TranslationBatchSize int      `env:"TRANSLATION_BATCH_SIZE" env-default:"6"`

	// Related links
	RelatedLinkLimit     int `env:"RELATED_LINK_LIMIT" env-default:"12"`
	RelatedLinkOverfetch int `env:"RELATED_LINK_OVERFETCH" env-default:"3"`

	// Thin content
	MinDescriptionLength int `env:"MIN_DESCRIPTION_LENGTH" env-default:"120"`

	// Blob store (S3 compatible)
	S3Endpoint  string `env:"S3_ENDPOINT" env-default:""`
	S3Region    string `env:"S3_REGION" env-default:"us-east-1"`
	S3AccessKey string `env:"S3_ACCESS_KEY" env-default:""`
	S3SecretKey string `env:"S3_SECRET_KEY" env-default:""`
	S3Bucket    string `env:"S3_BUCKET" env-default:"dahlia-assets"`
	S3PublicURL string `env:"S3_PUBLIC_URL" env-default:""`

	// Collaborator endpoints (model gateway)
	AIGatewayBaseURL           string        `env:"AI_GATEWAY_BASE_URL" env-default:"http://localhost:8300"`
	AIGatewayAPIKey            string        `env:"AI_GATEWAY_API_KEY" env-default:""`
	AIGatewayTimeout           time.Duration `env:"AI_GATEWAY_TIMEOUT" env-default:"120s"`
	AIGatewayRequestsPerMinute int64         `env:"AI_GATEWAY_REQUESTS_PER_MINUTE" env-default:"60"`

	// Tracing
	TracingEnabled      bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4318"`
}
