package paper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

const (
	positionPK = "POSITION"
	balancePK  = "BALANCE"
	balanceSK  = "BALANCE"
	tradePK    = "TRADE"
)

// DynamoRepository stores the paper portfolio in the shared DynamoDB table.
// Trade history is bounded on the read side: queries return the newest
// entries only, older items are left to a table TTL.
type DynamoRepository struct {
	client *dynamodb.Client
	table  string
	log    zerolog.Logger
}

type positionItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`

	Asset         string `dynamodbav:"asset"`
	Quantity      string `dynamodbav:"quantity"`
	AvgEntryPrice string `dynamodbav:"avg_entry_price"`
	TotalCost     string `dynamodbav:"total_cost"`
	CreatedAt     int64  `dynamodbav:"created_at"`
	UpdatedAt     int64  `dynamodbav:"updated_at"`
}

type balanceItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`

	InitialBalance       string `dynamodbav:"initial_balance"`
	CurrentBalance       string `dynamodbav:"current_balance"`
	LastKnownRealBalance string `dynamodbav:"last_known_real_balance"`
	UpdatedAt            int64  `dynamodbav:"updated_at"`
}

type tradeItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`

	Side        string `dynamodbav:"side"`
	Asset       string `dynamodbav:"asset"`
	Quantity    string `dynamodbav:"quantity"`
	Price       string `dynamodbav:"price"`
	RealizedPnL string `dynamodbav:"realized_pnl,omitempty"`
	ExecutedAt  int64  `dynamodbav:"executed_at"`
}

// NewDynamoRepository creates a paper repository backed by DynamoDB
func NewDynamoRepository(client *dynamodb.Client, table string, log zerolog.Logger) *DynamoRepository {
	return &DynamoRepository{
		client: client,
		table:  table,
		log:    log.With().Str("repo", "paper_dynamo").Logger(),
	}
}

func decStr(f float64) string {
	return decimal.NewFromFloat(f).String()
}

func decVal(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// GetPosition returns the asset's position, or nil if none is held
func (r *DynamoRepository) GetPosition(ctx context.Context, asset string) (*domain.PaperPosition, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &r.table,
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: positionPK},
			"sk": &types.AttributeValueMemberS{Value: strings.ToUpper(asset)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get paper position: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item positionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal paper position: %w", err)
	}

	return fromPositionItem(item), nil
}

// GetAllPositions returns every held position
func (r *DynamoRepository) GetAllPositions(ctx context.Context) ([]*domain.PaperPosition, error) {
	var results []*domain.PaperPosition
	var startKey map[string]types.AttributeValue

	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &r.table,
			KeyConditionExpression: awsStr("pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: positionPK},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query paper positions: %w", err)
		}

		for _, raw := range out.Items {
			var item positionItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal paper position: %w", err)
			}
			results = append(results, fromPositionItem(item))
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return results, nil
}

// SavePosition upserts a position
func (r *DynamoRepository) SavePosition(ctx context.Context, p *domain.PaperPosition) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	item := positionItem{
		PK:            positionPK,
		SK:            strings.ToUpper(p.Asset),
		Asset:         strings.ToUpper(p.Asset),
		Quantity:      decStr(p.Quantity),
		AvgEntryPrice: decStr(p.AvgEntryPrice),
		TotalCost:     decStr(p.TotalCost),
		CreatedAt:     createdAt.Unix(),
		UpdatedAt:     time.Now().Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal paper position: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.table,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put paper position: %w", err)
	}

	return nil
}

// DeletePosition removes a fully sold position
func (r *DynamoRepository) DeletePosition(ctx context.Context, asset string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &r.table,
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: positionPK},
			"sk": &types.AttributeValueMemberS{Value: strings.ToUpper(asset)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete paper position: %w", err)
	}

	return nil
}

// AppendTrade records one paper trade
func (r *DynamoRepository) AppendTrade(ctx context.Context, t domain.PaperTrade) error {
	item := tradeItem{
		PK:         tradePK,
		SK:         fmt.Sprintf("%012d#%s", t.ExecutedAt.Unix(), uuid.NewString()[:8]),
		Side:       string(t.Side),
		Asset:      strings.ToUpper(t.Asset),
		Quantity:   decStr(t.Quantity),
		Price:      decStr(t.Price),
		ExecutedAt: t.ExecutedAt.Unix(),
	}
	if t.RealizedPnL != nil {
		item.RealizedPnL = decStr(*t.RealizedPnL)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal paper trade: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.table,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put paper trade: %w", err)
	}

	return nil
}

// GetTradeHistory returns the most recent trades, newest first
func (r *DynamoRepository) GetTradeHistory(ctx context.Context, limit int) ([]domain.PaperTrade, error) {
	if limit <= 0 || limit > tradeHistoryLimit {
		limit = tradeHistoryLimit
	}
	limit32 := int32(limit)
	forward := false

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &r.table,
		KeyConditionExpression: awsStr("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: tradePK},
		},
		ScanIndexForward: &forward,
		Limit:            &limit32,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query paper trade history: %w", err)
	}

	var trades []domain.PaperTrade
	for _, raw := range out.Items {
		var item tradeItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal paper trade: %w", err)
		}

		t := domain.PaperTrade{
			Side:       domain.TradeSide(item.Side),
			Asset:      item.Asset,
			Quantity:   decVal(item.Quantity),
			Price:      decVal(item.Price),
			ExecutedAt: time.Unix(item.ExecutedAt, 0).UTC(),
		}
		if item.RealizedPnL != "" {
			v := decVal(item.RealizedPnL)
			t.RealizedPnL = &v
		}
		trades = append(trades, t)
	}

	return trades, nil
}

// GetBalance returns the balance singleton, or nil if never initialized
func (r *DynamoRepository) GetBalance(ctx context.Context) (*domain.PaperBalance, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &r.table,
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: balancePK},
			"sk": &types.AttributeValueMemberS{Value: balanceSK},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get paper balance: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item balanceItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal paper balance: %w", err)
	}

	return &domain.PaperBalance{
		InitialBalance:       decVal(item.InitialBalance),
		CurrentBalance:       decVal(item.CurrentBalance),
		LastKnownRealBalance: decVal(item.LastKnownRealBalance),
		UpdatedAt:            time.Unix(item.UpdatedAt, 0).UTC(),
	}, nil
}

// SaveBalance upserts the balance singleton
func (r *DynamoRepository) SaveBalance(ctx context.Context, b *domain.PaperBalance) error {
	item := balanceItem{
		PK:                   balancePK,
		SK:                   balanceSK,
		InitialBalance:       decStr(b.InitialBalance),
		CurrentBalance:       decStr(b.CurrentBalance),
		LastKnownRealBalance: decStr(b.LastKnownRealBalance),
		UpdatedAt:            time.Now().Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal paper balance: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.table,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put paper balance: %w", err)
	}

	return nil
}

// ClearAll wipes positions, trade history, and the balance
func (r *DynamoRepository) ClearAll(ctx context.Context) error {
	for _, pk := range []string{positionPK, tradePK} {
		if err := r.deletePartition(ctx, pk); err != nil {
			return err
		}
	}

	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &r.table,
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: balancePK},
			"sk": &types.AttributeValueMemberS{Value: balanceSK},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete paper balance: %w", err)
	}

	r.log.Info().Msg("Paper portfolio cleared")
	return nil
}

func (r *DynamoRepository) deletePartition(ctx context.Context, pk string) error {
	var startKey map[string]types.AttributeValue

	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &r.table,
			KeyConditionExpression: awsStr("pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: pk},
			},
			ProjectionExpression: awsStr("pk, sk"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return fmt.Errorf("failed to query partition %s: %w", pk, err)
		}

		for _, raw := range out.Items {
			_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: &r.table,
				Key: map[string]types.AttributeValue{
					"pk": raw["pk"],
					"sk": raw["sk"],
				},
			})
			if err != nil {
				return fmt.Errorf("failed to delete item in partition %s: %w", pk, err)
			}
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return nil
}

func fromPositionItem(item positionItem) *domain.PaperPosition {
	return &domain.PaperPosition{
		Asset:         item.Asset,
		Quantity:      decVal(item.Quantity),
		AvgEntryPrice: decVal(item.AvgEntryPrice),
		TotalCost:     decVal(item.TotalCost),
		CreatedAt:     time.Unix(item.CreatedAt, 0).UTC(),
		UpdatedAt:     time.Unix(item.UpdatedAt, 0).UTC(),
	}
}

func awsStr(s string) *string {
	return &s
}
