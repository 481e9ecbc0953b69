package milvus

import (
	"Athena/backend/go/internal/config"
	"Athena/backend/go/pkg/logger"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// 分块集合的固定字段。
const (
	FieldChunkID    = "chunk_id"
	FieldDocumentID = "document_id"
	FieldSubject    = "subject"
	FieldEmbedding  = "embedding"

	idMaxLength      = 64
	subjectMaxLength = 256
)

var (
	instance *MilvusClient
	once     sync.Once
	initErr  error
	log      = logger.New("milvus")
)

// MilvusClient 包含了 Milvus 客户端实例和相关配置。
type MilvusClient struct {
	Client client.Client        // Milvus 客户端实例。
	Config *config.MilvusConfig // Milvus 配置。
}

// Hit 是一条搜索结果，Score 为余弦相似度。
type Hit struct {
	ChunkID string
	Score   float32
}

// GetClient 使用单例模式创建并返回一个 Milvus 客户端实例。
func GetClient(ctx context.Context, cfg *config.MilvusConfig) (*MilvusClient, error) {
	once.Do(func() {
		c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
		if err != nil {
			initErr = fmt.Errorf("无法连接到 Milvus: %w", err)
			return
		}
		log.With("address", cfg.Address).Info("✅ 成功连接到 Milvus!")
		instance = &MilvusClient{Client: c, Config: cfg}
	})
	return instance, initErr
}

// Close 刷新集合后关闭与 Milvus 的连接。
func (c *MilvusClient) Close(ctx context.Context) {
	if c.Client == nil {
		return
	}
	if err := c.FlushCollection(ctx); err != nil {
		log.WithErr(err).Warn("关闭前刷新集合失败")
	}
	c.Client.Close()
	log.Info("已安全关闭 Milvus 连接。")
}

// HealthCheck 检查 Milvus 连接的健康状况。
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("Milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("Milvus health check failed: %w", err)
	}
	return nil
}

// EnsureCollection 确保分块集合存在 (不存在时按 dim 维建表并建索引)，然后加载集合。
func (c *MilvusClient) EnsureCollection(ctx context.Context, dim int) error {
	collName := c.Config.CollectionName
	exists, err := c.Client.HasCollection(ctx, collName)
	if err != nil {
		return fmt.Errorf("检查集合是否存在时出错: %w", err)
	}
	if !exists {
		schema := entity.NewSchema().
			WithName(collName).
			WithDescription(c.Config.Description).
			WithField(entity.NewField().WithName(FieldChunkID).WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(idMaxLength).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(FieldDocumentID).WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(idMaxLength)).
			WithField(entity.NewField().WithName(FieldSubject).WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(subjectMaxLength)).
			WithField(entity.NewField().WithName(FieldEmbedding).WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(dim)))

		if err := c.Client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("创建集合失败: %w", err)
		}
		idx, err := buildIndexFromConfig(c.Config.Index)
		if err != nil {
			return err
		}
		if err := c.Client.CreateIndex(ctx, collName, FieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("为字段 '%s' 创建索引失败: %w", FieldEmbedding, err)
		}
		log.WithFields(map[string]interface{}{"collection": collName, "dim": dim}).Info("✅ 已创建 Milvus 集合")
	}

	if err := c.Client.LoadCollection(ctx, collName, false); err != nil {
		return fmt.Errorf("加载 Milvus 集合 '%s' 失败: %w", collName, err)
	}
	return nil
}

// Insert 写入单个分块的向量。
func (c *MilvusClient) Insert(ctx context.Context, chunkID, documentID, subject string, vector []float32) error {
	_, err := c.Client.Insert(ctx, c.Config.CollectionName, "",
		entity.NewColumnVarChar(FieldChunkID, []string{chunkID}),
		entity.NewColumnVarChar(FieldDocumentID, []string{documentID}),
		entity.NewColumnVarChar(FieldSubject, []string{subject}),
		entity.NewColumnFloatVector(FieldEmbedding, len(vector), [][]float32{vector}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert data into Milvus: %w", err)
	}
	return nil
}

// Search 执行向量相似度搜索。subject 非空时先按学科过滤再排序。
func (c *MilvusClient) Search(ctx context.Context, vector []float32, topK int, subject string) ([]Hit, error) {
	sp, err := buildSearchParam(c.Config.Index, topK)
	if err != nil {
		return nil, err
	}
	results, err := c.Client.Search(
		ctx,
		c.Config.CollectionName,
		nil,
		SubjectFilter(subject),
		[]string{FieldChunkID},
		[]entity.Vector{entity.FloatVector(vector)},
		FieldEmbedding,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus 搜索失败: %w", err)
	}

	var hits []Hit
	for _, r := range results {
		idCol, ok := r.IDs.(*entity.ColumnVarChar)
		if !ok {
			return nil, fmt.Errorf("搜索结果主键类型错误: %T", r.IDs)
		}
		ids := idCol.Data()
		for i := 0; i < r.ResultCount && i < len(ids); i++ {
			hits = append(hits, Hit{ChunkID: ids[i], Score: r.Scores[i]})
		}
	}
	return hits, nil
}

// DeleteDocument 删除文档的全部分块向量。
func (c *MilvusClient) DeleteDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf("%s == %s", FieldDocumentID, quote(documentID))
	if err := c.Client.Delete(ctx, c.Config.CollectionName, "", expr); err != nil {
		return fmt.Errorf("failed to delete data from Milvus: %w", err)
	}
	return nil
}

// DeleteChunk 删除单个分块向量。
func (c *MilvusClient) DeleteChunk(ctx context.Context, chunkID string) error {
	expr := fmt.Sprintf("%s == %s", FieldChunkID, quote(chunkID))
	if err := c.Client.Delete(ctx, c.Config.CollectionName, "", expr); err != nil {
		return fmt.Errorf("failed to delete data from Milvus: %w", err)
	}
	return nil
}

// FlushCollection 手动触发一次刷新操作，将内存中的数据写入磁盘。
func (c *MilvusClient) FlushCollection(ctx context.Context) error {
	collName := c.Config.CollectionName
	if err := c.Client.Flush(ctx, collName, false); err != nil {
		return fmt.Errorf("刷新集合 '%s' 失败: %w", collName, err)
	}
	return nil
}

// SubjectFilter 返回按学科过滤的布尔表达式，subject 为空时不过滤。
func SubjectFilter(subject string) string {
	if subject == "" {
		return ""
	}
	return fmt.Sprintf("%s == %s", FieldSubject, quote(subject))
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func intParam(params map[string]interface{}, key string, fallback int) int {
	if v, ok := params[key].(int); ok {
		return v
	}
	return fallback
}

// buildIndexFromConfig 从配置构建索引实体，度量固定为 COSINE。
func buildIndexFromConfig(indexCfg config.IndexConfig) (entity.Index, error) {
	metric := entity.COSINE
	switch indexCfg.IndexType {
	case "IVF_FLAT":
		return entity.NewIndexIvfFlat(metric, intParam(indexCfg.Params, "nlist", 128))
	case "HNSW":
		return entity.NewIndexHNSW(metric, intParam(indexCfg.Params, "M", 8), intParam(indexCfg.Params, "efConstruction", 96))
	case "IVF_SQ8":
		return entity.NewIndexIvfSQ8(metric, intParam(indexCfg.Params, "nlist", 128))
	case "", "AUTOINDEX":
		return entity.NewIndexAUTOINDEX(metric)
	default:
		return nil, fmt.Errorf("不支持的索引类型: %s", indexCfg.IndexType)
	}
}

// buildSearchParam 返回与索引类型匹配的搜索参数。
func buildSearchParam(indexCfg config.IndexConfig, topK int) (entity.SearchParam, error) {
	switch indexCfg.IndexType {
	case "IVF_FLAT", "IVF_SQ8":
		return entity.NewIndexIvfFlatSearchParam(intParam(indexCfg.Params, "nprobe", 16))
	case "HNSW":
		ef := intParam(indexCfg.Params, "ef", 64)
		if ef < topK {
			ef = topK
		}
		return entity.NewIndexHNSWSearchParam(ef)
	case "", "AUTOINDEX":
		return entity.NewIndexAUTOINDEXSearchParam(1)
	default:
		return nil, fmt.Errorf("不支持的索引类型: %s", indexCfg.IndexType)
	}
}
