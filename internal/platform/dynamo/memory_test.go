package dynamo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/galaxychat-backend/internal/memory"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

type fakeTable struct {
	mu      sync.Mutex
	items   []map[string]types.AttributeValue
	created int
	exists  bool
}

func (f *fakeTable) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exists {
		return nil, &types.ResourceInUseException{}
	}
	f.exists = true
	f.created++
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeTable) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid := in.ExpressionAttributeValues[":uid"].(*types.AttributeValueMemberS).Value
	var out []map[string]types.AttributeValue
	for _, it := range f.items {
		if stringAttr(it, "UserID") == uid {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return stringAttr(out[i], "SortKey") > stringAttr(out[j], "SortKey") })
	if in.Limit != nil && int(*in.Limit) < len(out) {
		out = out[:*in.Limit]
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

func newStore(t *testing.T, api API) *MemoryStore {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return NewMemoryStore(log, api, Config{TopK: 2})
}

func TestEnsureTableIsIdempotent(t *testing.T) {
	ft := &fakeTable{}
	s := newStore(t, ft)
	require.NoError(t, s.EnsureTable(context.Background()))
	require.NoError(t, s.EnsureTable(context.Background()))
	require.Equal(t, 1, ft.created)
}

func TestSearchRanksByOverlapThenRecency(t *testing.T) {
	ft := &fakeTable{}
	s := newStore(t, ft)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { clock = clock.Add(time.Second); return clock }
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "u1", []memory.Entry{{Role: "user", Content: "I adopted a cat named Miso"}}))
	require.NoError(t, s.Add(ctx, "u1", []memory.Entry{{Role: "user", Content: "My cat Miso likes tuna"}}))
	require.NoError(t, s.Add(ctx, "u1", []memory.Entry{{Role: "user", Content: "The weather is nice"}}))
	require.NoError(t, s.Add(ctx, "u2", []memory.Entry{{Role: "user", Content: "Miso the cat belongs to someone else"}}))

	out, err := s.Search(ctx, "u1", "what does my cat Miso eat? tuna?")
	require.NoError(t, err)
	require.Equal(t, "My cat Miso likes tuna\nI adopted a cat named Miso", out)

	out, err = s.Search(ctx, "u1", "ok")
	require.NoError(t, err)
	require.Empty(t, out)
}

type failingAPI struct{ fakeTable }

func (*failingAPI) Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return nil, errors.New("throttled")
}

func TestSearchPropagatesErrors(t *testing.T) {
	s := newStore(t, &failingAPI{})
	_, err := s.Search(context.Background(), "u1", "anything useful")
	require.Error(t, err)
}
