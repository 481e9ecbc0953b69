package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// IndexConfig 定义了 Milvus 集合中索引的配置。
type IndexConfig struct {
	IndexType string                 `yaml:"indexType"` // 索引类型 (例如: "IVF_FLAT", "HNSW", "AUTOINDEX")
	Params    map[string]interface{} `yaml:"params"`    // 索引参数 (例如: {"nlist": 128})
}

// MilvusConfig 定义了 Milvus 数据库的连接和集合配置。
// 集合的字段是固定的 (chunk_id, document_id, subject, embedding)，维度取自 embedding.dimension。
type MilvusConfig struct {
	Address        string      `yaml:"address"`        // Milvus 服务地址
	CollectionName string      `yaml:"collectionName"` // 集合名称
	Description    string      `yaml:"description"`    // 集合描述
	Index          IndexConfig `yaml:"index"`          // 向量索引配置
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
	PoolSize int    `yaml:"poolSize"` // 连接池大小，0 使用驱动默认值
	Timeout  string `yaml:"timeout"`  // 连接与读写超时
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// PostgresConfig 定义了 PostgreSQL (pgvector) 数据库的连接配置。
type PostgresConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	SSLMode         string `yaml:"sslMode"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 秒
}

// DSN 返回 pgx 可识别的连接串。
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 上传文件所在的存储桶
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// KafkaConfig 定义了 Kafka 的连接配置。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topics  []string `yaml:"topics"`  // 启动时需要确保存在的主题
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	Driver   string         `yaml:"driver"`   // 关系型存储: "postgres", "mysql", "memory"
	Postgres PostgresConfig `yaml:"postgres"` // PostgreSQL 配置
	MySQL    MySQLConfig    `yaml:"mysql"`    // MySQL 数据库配置
	Milvus   MilvusConfig   `yaml:"milvus"`   // Milvus 数据库配置
	Redis    RedisConfig    `yaml:"redis"`    // Redis 数据库配置
	MinIO    MinIOConfig    `yaml:"minio"`    // MinIO 对象存储配置
	Kafka    KafkaConfig    `yaml:"kafka"`    // Kafka 消息队列配置
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// ServerConfig 定义了 HTTP 服务的配置。
type ServerConfig struct {
	Address         string           `yaml:"address"`         // 监听地址，默认 ":8080"
	ShutdownTimeout string           `yaml:"shutdownTimeout"` // 优雅关闭的等待时间
	Middleware      MiddlewareConfig `yaml:"middleware"`      // 中间件配置
}

// VectorStoreConfig 选择向量检索后端。
type VectorStoreConfig struct {
	Provider string `yaml:"provider"` // "pgvector", "milvus", "memory"
}

// HuggingFaceConfig 包含 HuggingFace feature-extraction 接口的配置。
type HuggingFaceConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseURL"`
}

// OpenAIConfig 包含 OpenAI 兼容接口的配置。
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseURL"` // 为空时使用官方地址
}

// OllamaConfig 包含本地 Ollama 服务的配置。
type OllamaConfig struct {
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

// GeminiConfig 包含了 Gemini 模型的配置。
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"` // Gemini API 密钥
	Model  string `yaml:"model"`  // Gemini 模型名称
}

// EmbeddingConfig 包含了不同Embedding提供商的配置。
type EmbeddingConfig struct {
	Provider       string               `yaml:"provider"`       // "huggingface", "ollama", "openai", "gemini"
	Dimension      int                  `yaml:"dimension"`      // 系统统一的向量维度 D
	MaxInputChars  int                  `yaml:"maxInputChars"`  // 发送前截断的最大字符数
	Timeout        string               `yaml:"timeout"`        // 单次请求超时
	HuggingFace    HuggingFaceConfig    `yaml:"huggingface"`    // HuggingFace 配置
	Ollama         OllamaConfig         `yaml:"ollama"`         // Ollama 配置
	OpenAI         OpenAIConfig         `yaml:"openai"`         // OpenAI 配置
	Gemini         GeminiConfig         `yaml:"gemini"`         // Gemini 配置
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"` // 出站请求熔断器
}

// LLMConfig 包含了不同LLM提供商的配置。
type LLMConfig struct {
	Provider       string               `yaml:"provider"`       // "openai", "gemini", "ollama", "huggingface"
	Timeout        string               `yaml:"timeout"`        // 单次请求超时
	MaxTokens      int                  `yaml:"maxTokens"`      // 默认最大输出 token 数
	Temperature    float32              `yaml:"temperature"`    // 默认温度
	OpenAI         OpenAIConfig         `yaml:"openai"`         // OpenAI 配置
	Gemini         GeminiConfig         `yaml:"gemini"`         // Gemini 模型配置
	Ollama         OllamaConfig         `yaml:"ollama"`         // Ollama 配置
	HuggingFace    HuggingFaceConfig    `yaml:"huggingface"`    // HuggingFace 文本生成配置
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"` // HuggingFace 出站请求熔断器
}

// WatchConfig 定义了监听目录自动入库的配置。
type WatchConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Dir            string `yaml:"dir"`
	DefaultSubject string `yaml:"defaultSubject"` // 文件位于根目录时使用的科目
	Settle         string `yaml:"settle"`         // 文件最后一次写入后等待的时间
}

// IngestionConfig 定义了文档入库流水线的配置。
type IngestionConfig struct {
	ChunkSize        int         `yaml:"chunkSize"`        // 每个分块的单词数
	ChunkOverlap     int         `yaml:"chunkOverlap"`     // 相邻分块的重叠单词数
	MaxPages         int         `yaml:"maxPages"`         // PDF 逐页渲染的页数上限
	MaxUploadBytes   int64       `yaml:"maxUploadBytes"`   // 上传文件大小上限
	EmbedConcurrency int         `yaml:"embedConcurrency"` // 分块向量化并发度，1 表示顺序执行
	DocxLicenseKey   string      `yaml:"docxLicenseKey"`   // unioffice 计量许可证
	Watch            WatchConfig `yaml:"watch"`
}

// StorageConfig 定义了上传原文件的存储位置。
type StorageConfig struct {
	Provider string `yaml:"provider"` // "local" 或 "minio"
	LocalDir string `yaml:"localDir"`
}

// LockConfig 定义了会话级互斥锁。
type LockConfig struct {
	Provider string `yaml:"provider"` // "local" 或 "redis"
	TTL      string `yaml:"ttl"`      // redis 锁的过期时间
	Wait     string `yaml:"wait"`     // 获取锁的最长等待时间
}

// ChatConfig 定义了多轮对话的配置。
type ChatConfig struct {
	HistoryLimit     int        `yaml:"historyLimit"`     // 历史消息条数上限 N
	MaxContextTokens int        `yaml:"maxContextTokens"` // 历史消息 token 预算，0 表示不启用
	Encoding         string     `yaml:"encoding"`         // tiktoken 编码名
	SystemPrompt     string     `yaml:"systemPrompt"`     // 默认系统提示词
	MaxTokens        int        `yaml:"maxTokens"`
	Temperature      *float32   `yaml:"temperature"` // 未设置时为 0.7，显式 0 表示确定性输出
	Lock             LockConfig `yaml:"lock"`
}

// QuizConfig 定义了测验生成的配置。
type QuizConfig struct {
	MaxContentChars int      `yaml:"maxContentChars"` // 送入模型的文档内容上限
	MaxTokens       int      `yaml:"maxTokens"`
	Temperature     *float32 `yaml:"temperature"` // 未设置时为 0.4
}

// RetrievalConfig 定义了语义检索的配置。
type RetrievalConfig struct {
	DefaultTopK int    `yaml:"defaultTopK"`
	MaxTopK     int    `yaml:"maxTopK"`
	CacheSize   int    `yaml:"cacheSize"` // 查询向量缓存条数，0 表示关闭
	CacheTTL    string `yaml:"cacheTTL"`
}

// EventsConfig 定义了入库完成事件的发布配置。
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Topic   string `yaml:"topic"`
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App         AppInfo           `yaml:"app"`
	Logger      LoggerConfig      `yaml:"logger"`
	Server      ServerConfig      `yaml:"server"`
	Databases   DatabaseConfigs   `yaml:"databases"`
	VectorStore VectorStoreConfig `yaml:"vectorStore"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	Storage     StorageConfig     `yaml:"storage"`
	Chat        ChatConfig        `yaml:"chat"`
	Quiz        QuizConfig        `yaml:"quiz"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Events      EventsConfig      `yaml:"events"`
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了令牌桶限流器的配置。
type RateLimiterConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Rate      float64 `yaml:"rate"`      // 每秒生成的令牌数
	Capacity  int     `yaml:"capacity"`  // 桶容量 (突发上限)
	PerClient bool    `yaml:"perClient"` // 按客户端 IP 分桶
	MaxKeys   int     `yaml:"maxKeys"`   // 按客户端分桶时最多保留的桶数
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// DefaultSystemPrompt 是调用方未提供系统提示词时使用的辅导角色设定。
const DefaultSystemPrompt = "You are a patient, knowledgeable study tutor. Explain concepts clearly, " +
	"check the student's understanding, and keep answers focused on the material being studied."

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
// 文件中的 ${VAR} 引用会先用环境变量展开，随后填充默认值并校验。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析后的应用程序配置结构体。
//	error: 如果文件读取、解析或校验失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	return Parse(yamlFile)
}

// Parse 解析内存中的 YAML 配置。
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回只包含默认值的配置，内存存储，无外部依赖。
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *AppConfig) applyDefaults() {
	setString(&c.App.Name, "athena")
	setString(&c.Logger.Level, "info")
	setString(&c.Server.Address, ":8080")
	setString(&c.Server.ShutdownTimeout, "10s")

	setString(&c.Databases.Driver, "memory")
	setString(&c.Databases.Postgres.Host, "localhost")
	setInt(&c.Databases.Postgres.Port, 5432)
	setString(&c.Databases.Postgres.SSLMode, "disable")
	setString(&c.Databases.Redis.Timeout, "5s")
	setString(&c.Databases.Milvus.CollectionName, "document_chunks")
	setString(&c.Databases.Milvus.Index.IndexType, "HNSW")

	if c.VectorStore.Provider == "" {
		switch c.Databases.Driver {
		case "postgres":
			c.VectorStore.Provider = "pgvector"
		case "memory":
			c.VectorStore.Provider = "memory"
		default:
			c.VectorStore.Provider = "milvus"
		}
	}

	setString(&c.Embedding.Provider, "huggingface")
	setInt(&c.Embedding.Dimension, 384)
	setInt(&c.Embedding.MaxInputChars, 2000)
	setString(&c.Embedding.Timeout, "30s")
	setString(&c.Embedding.HuggingFace.Model, "sentence-transformers/all-MiniLM-L6-v2")
	setString(&c.Embedding.Ollama.Model, "nomic-embed-text")
	setString(&c.Embedding.OpenAI.Model, "text-embedding-3-small")
	setString(&c.Embedding.Gemini.Model, "text-embedding-004")

	setString(&c.LLM.Provider, "openai")
	setString(&c.LLM.Timeout, "60s")
	setInt(&c.LLM.MaxTokens, 1024)
	setString(&c.LLM.OpenAI.Model, "gpt-4o-mini")
	setString(&c.LLM.Gemini.Model, "gemini-1.5-flash")
	setString(&c.LLM.Ollama.Model, "llama3")
	setString(&c.LLM.HuggingFace.Model, "mistralai/Mistral-7B-Instruct-v0.3")

	setInt(&c.Ingestion.ChunkSize, 500)
	if c.Ingestion.ChunkOverlap == 0 && c.Ingestion.ChunkSize > 50 {
		c.Ingestion.ChunkOverlap = 50
	}
	setInt(&c.Ingestion.MaxPages, 200)
	if c.Ingestion.MaxUploadBytes == 0 {
		c.Ingestion.MaxUploadBytes = 50 << 20
	}
	setInt(&c.Ingestion.EmbedConcurrency, 1)
	setString(&c.Ingestion.Watch.DefaultSubject, "General")
	setString(&c.Ingestion.Watch.Settle, "2s")

	setString(&c.Storage.Provider, "local")
	setString(&c.Storage.LocalDir, "data/uploads")

	setInt(&c.Chat.HistoryLimit, 20)
	setString(&c.Chat.Encoding, "cl100k_base")
	setString(&c.Chat.SystemPrompt, DefaultSystemPrompt)
	setInt(&c.Chat.MaxTokens, 1024)
	setFloat32(&c.Chat.Temperature, 0.7)
	setString(&c.Chat.Lock.Provider, "local")
	setString(&c.Chat.Lock.TTL, "2m")
	setString(&c.Chat.Lock.Wait, "30s")

	setInt(&c.Quiz.MaxContentChars, 12000)
	setInt(&c.Quiz.MaxTokens, 4096)
	setFloat32(&c.Quiz.Temperature, 0.4)

	setInt(&c.Retrieval.DefaultTopK, 5)
	setInt(&c.Retrieval.MaxTopK, 50)
	setString(&c.Retrieval.CacheTTL, "10m")

	setString(&c.Events.Topic, "document_ingested")

	rl := &c.Server.Middleware.RateLimiter
	if rl.Rate == 0 {
		rl.Rate = 20
	}
	setInt(&rl.Capacity, 40)
	setInt(&rl.MaxKeys, 10000)
	for _, cb := range []*CircuitBreakerConfig{&c.Server.Middleware.CircuitBreaker, &c.Embedding.CircuitBreaker, &c.LLM.CircuitBreaker} {
		if cb.FailureThreshold == 0 {
			cb.FailureThreshold = 5
		}
		if cb.SuccessThreshold == 0 {
			cb.SuccessThreshold = 1
		}
		setString(&cb.Timeout, "30s")
	}
}

// Validate 检查配置中相互约束的字段。
func (c *AppConfig) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension 必须大于 0")
	}
	if c.Ingestion.ChunkSize <= 0 {
		return fmt.Errorf("ingestion.chunkSize 必须大于 0")
	}
	if c.Ingestion.ChunkOverlap < 0 || c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf("ingestion.chunkOverlap 必须满足 0 <= overlap < chunkSize")
	}
	if c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("chat.historyLimit 必须大于 0")
	}
	switch c.Databases.Driver {
	case "postgres", "mysql", "memory":
	default:
		return fmt.Errorf("不支持的 databases.driver: %s", c.Databases.Driver)
	}
	switch c.VectorStore.Provider {
	case "pgvector":
		if c.Databases.Driver != "postgres" {
			return fmt.Errorf("vectorStore.provider=pgvector 需要 databases.driver=postgres")
		}
	case "milvus":
		if c.Databases.Driver == "memory" {
			return fmt.Errorf("vectorStore.provider=milvus 需要关系型数据库存放分块文本")
		}
	case "memory":
		if c.Databases.Driver != "memory" {
			return fmt.Errorf("vectorStore.provider=memory 只能与 databases.driver=memory 搭配")
		}
	default:
		return fmt.Errorf("不支持的 vectorStore.provider: %s", c.VectorStore.Provider)
	}
	durations := map[string]string{
		"server.shutdownTimeout": c.Server.ShutdownTimeout,
		"embedding.timeout":      c.Embedding.Timeout,
		"llm.timeout":            c.LLM.Timeout,
		"chat.lock.ttl":          c.Chat.Lock.TTL,
		"chat.lock.wait":         c.Chat.Lock.Wait,
		"retrieval.cacheTTL":     c.Retrieval.CacheTTL,
		"ingestion.watch.settle": c.Ingestion.Watch.Settle,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s 不是有效的时长: %w", key, err)
		}
	}
	return nil
}

// Duration 解析已经过校验的时长字符串，解析失败时返回 fallback。
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func setString(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}

// setFloat32 只在字段缺失时填充默认值，显式写出的 0 会被保留。
func setFloat32(field **float32, value float32) {
	if *field == nil {
		*field = &value
	}
}
