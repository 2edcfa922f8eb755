package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/galaxychat-backend/internal/catalog"
	"github.com/yungbote/galaxychat-backend/internal/llm"
	"github.com/yungbote/galaxychat-backend/internal/llm/gateway"
	"github.com/yungbote/galaxychat-backend/internal/llm/mock"
	"github.com/yungbote/galaxychat-backend/internal/memory"
	"github.com/yungbote/galaxychat-backend/internal/platform/dynamo"
	"github.com/yungbote/galaxychat-backend/internal/platform/gcp"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
	"github.com/yungbote/galaxychat-backend/internal/platform/mem0"
	"github.com/yungbote/galaxychat-backend/internal/services"
)

type Clients struct {
	Model   llm.Model
	Title   llm.Completer
	Memory  memory.Store
	Catalog *catalog.Service
	// Media is nil when no bucket is configured; uploads then fail with 500.
	Media gcp.MediaBucket

	redis *catalog.RedisStore
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	switch cfg.ModelBackend {
	case ModelBackendMock:
		log.Warn("MODEL_BACKEND=mock, replies echo the user message")
		out.Model = mock.Echo()
		out.Title = mock.Completer{}
	default:
		gwCfg := gateway.Config{
			BaseURL:    cfg.Gateway.BaseURL,
			APIKey:     cfg.Gateway.APIKey,
			Timeout:    cfg.Gateway.Timeout,
			MaxRetries: cfg.Gateway.MaxRetries,
		}
		client, err := gateway.New(log, gwCfg)
		if err != nil {
			return Clients{}, fmt.Errorf("init gateway client: %w", err)
		}
		out.Model = client
		out.Title = gateway.NewCompleter(log, gwCfg, client.HTTPClient())
	}

	mem, err := wireMemory(ctx, log, cfg)
	if err != nil {
		return Clients{}, err
	}
	out.Memory = mem

	var store catalog.Store
	if addr := strings.TrimSpace(cfg.Catalog.RedisAddr); addr != "" {
		rs, err := catalog.NewRedisStore(log, addr, 2*cfg.Catalog.TTL)
		if err != nil {
			return Clients{}, fmt.Errorf("init catalog redis store: %w", err)
		}
		out.redis = rs
		store = rs
	}
	out.Catalog = catalog.NewService(
		log,
		catalog.NewHTTPFetcher(cfg.Catalog.URL, 10*time.Second),
		store,
		catalog.Options{TTL: cfg.Catalog.TTL},
	)

	media, err := wireMedia(ctx, log, cfg)
	if err != nil {
		out.Close()
		return Clients{}, err
	}
	out.Media = media
	return out, nil
}

func wireMemory(ctx context.Context, log *logger.Logger, cfg Config) (memory.Store, error) {
	switch cfg.Memory.Backend {
	case MemoryBackendNone:
		log.Info("Memory disabled")
		return memory.Noop{}, nil
	case MemoryBackendDynamo:
		dcfg := dynamo.Config{
			Endpoint: cfg.Memory.DynamoEndpoint,
			Region:   cfg.Memory.DynamoRegion,
			Table:    cfg.Memory.DynamoTable,
		}
		client, err := dynamo.NewClient(ctx, dcfg)
		if err != nil {
			return nil, fmt.Errorf("init dynamodb client: %w", err)
		}
		store := dynamo.NewMemoryStore(log, client, dcfg)
		if err := store.EnsureTable(ctx); err != nil {
			log.Warn("DynamoDB memory table unavailable, memory disabled", "error", err)
			return memory.Noop{}, nil
		}
		return store, nil
	default:
		client := mem0.New(log, mem0.Config{
			APIKey:  cfg.Memory.Mem0APIKey,
			BaseURL: cfg.Memory.Mem0BaseURL,
			Timeout: cfg.Memory.Timeout,
		})
		if client == nil {
			return memory.Noop{}, nil
		}
		return client, nil
	}
}

func wireMedia(ctx context.Context, log *logger.Logger, cfg Config) (gcp.MediaBucket, error) {
	if strings.TrimSpace(cfg.Media.Bucket) == "" {
		log.Warn("GCS_MEDIA_BUCKET not set, media uploads disabled")
		return nil, nil
	}
	storageCfg, err := gcp.ResolveStorageConfig(cfg.Media.StorageMode, cfg.Media.EmulatorHost)
	if err != nil {
		return nil, fmt.Errorf("resolve media storage: %w", err)
	}
	bucket, err := gcp.NewMediaBucket(ctx, log, gcp.MediaConfig{
		Bucket:        cfg.Media.Bucket,
		CDNDomain:     cfg.Media.CDNDomain,
		PublicBaseURL: cfg.Media.PublicBaseURL,
		Credentials:   cfg.Media.Credentials,
		Storage:       storageCfg,
		UploadTimeout: services.DefaultUploadLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("init media bucket: %w", err)
	}
	return bucket, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
}
