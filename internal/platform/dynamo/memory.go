package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/yungbote/galaxychat-backend/internal/memory"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

const DefaultTable = "ChatMemories"

type Config struct {
	Endpoint string
	Region   string
	Table    string
	// Window is how many recent entries Search scores.
	Window int
	TopK   int
}

// API is the subset of the DynamoDB client the store uses.
type API interface {
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// MemoryStore keeps conversation lines per user in one table keyed by
// (UserID, SortKey) and recalls the recent lines that share words with the query.
type MemoryStore struct {
	log    *logger.Logger
	db     API
	table  string
	window int
	topK   int
	now    func() time.Time
}

var _ memory.Store = (*MemoryStore)(nil)

// NewClient builds a DynamoDB client. A custom endpoint (DynamoDB Local) gets static
// dummy credentials.
func NewClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if ep := strings.TrimSpace(cfg.Endpoint); ep != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: ep}, nil
		})
		opts = append(opts,
			config.WithEndpointResolverWithOptions(resolver),
			config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
				Value: aws.Credentials{AccessKeyID: "dummy", SecretAccessKey: "dummy", SessionToken: "dummy"},
			}),
		)
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

func NewMemoryStore(log *logger.Logger, api API, cfg Config) *MemoryStore {
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = DefaultTable
	}
	window := cfg.Window
	if window <= 0 {
		window = 50
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	return &MemoryStore{
		log:    log.With("service", "DynamoMemoryStore"),
		db:     api,
		table:  table,
		window: window,
		topK:   topK,
		now:    time.Now,
	}
}

// EnsureTable creates the table when missing.
func (s *MemoryStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("UserID"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SortKey"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("UserID"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SortKey"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *MemoryStore) Add(ctx context.Context, userID string, entries []memory.Entry) error {
	ts := s.now().UTC()
	for i, e := range entries {
		if strings.TrimSpace(e.Content) == "" {
			continue
		}
		// Entries of one call share a timestamp; the index keeps them ordered.
		sortKey := fmt.Sprintf("%s#%03d#%s", ts.Format(time.RFC3339Nano), i, uuid.New().String())
		_, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.table),
			Item: map[string]types.AttributeValue{
				"UserID":    &types.AttributeValueMemberS{Value: userID},
				"SortKey":   &types.AttributeValueMemberS{Value: sortKey},
				"Role":      &types.AttributeValueMemberS{Value: e.Role},
				"Content":   &types.AttributeValueMemberS{Value: e.Content},
				"Timestamp": &types.AttributeValueMemberS{Value: ts.Format(time.RFC3339)},
			},
		})
		if err != nil {
			return fmt.Errorf("put memory: %w", err)
		}
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, userID, query string) (string, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return "", nil
	}
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("UserID = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(s.window)),
	})
	if err != nil {
		return "", fmt.Errorf("query memories: %w", err)
	}

	type scored struct {
		line  string
		score int
		rank  int
	}
	var hits []scored
	for i, item := range out.Items {
		content := stringAttr(item, "Content")
		score := overlap(terms, tokenize(content))
		if score == 0 {
			continue
		}
		hits = append(hits, scored{line: content, score: score, rank: i})
	}
	// Best match first; among equal scores the newer line wins.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].rank < hits[j].rank
	})
	if len(hits) > s.topK {
		hits = hits[:s.topK]
	}
	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		lines = append(lines, h.line)
	}
	return strings.Join(lines, "\n"), nil
}

func stringAttr(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func tokenize(s string) map[string]bool {
	out := map[string]bool{}
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r == '\'' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	}) {
		if len([]rune(f)) < 3 {
			continue
		}
		out[f] = true
	}
	return out
}

func overlap(a, b map[string]bool) int {
	n := 0
	for t := range a {
		if b[t] {
			n++
		}
	}
	return n
}
