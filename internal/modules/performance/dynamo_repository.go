package performance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

const (
	performancePK = "PERFORMANCE"
	statsPK       = "STATS"
	statsSK       = "STATS"
)

// DynamoRepository stores aggregates in the shared DynamoDB table.
// Performance records live under a single PERFORMANCE partition keyed by
// asset, the portfolio singleton under a fixed STATS key.
type DynamoRepository struct {
	client *dynamodb.Client
	table  string
	log    zerolog.Logger
}

type performanceItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`

	Asset  string `dynamodbav:"asset"`
	Symbol string `dynamodbav:"symbol,omitempty"`

	TotalTrades   int `dynamodbav:"total_trades"`
	WinningTrades int `dynamodbav:"winning_trades"`
	LosingTrades  int `dynamodbav:"losing_trades"`

	TotalRealizedPnL string `dynamodbav:"total_realized_pnl"`
	BestTradePnL     string `dynamodbav:"best_trade_pnl"`
	WorstTradePnL    string `dynamodbav:"worst_trade_pnl"`
	AvgHoldingHours  string `dynamodbav:"avg_holding_hours"`

	UpdatedAt int64 `dynamodbav:"updated_at"`
}

type statsItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`

	TotalTrades   int `dynamodbav:"total_trades"`
	WinningTrades int `dynamodbav:"winning_trades"`
	LosingTrades  int `dynamodbav:"losing_trades"`

	TotalRealizedPnL string `dynamodbav:"total_realized_pnl"`
	LargestWin       string `dynamodbav:"largest_win"`
	LargestLoss      string `dynamodbav:"largest_loss"`

	CurrentStreak    int `dynamodbav:"current_streak"`
	MaxWinningStreak int `dynamodbav:"max_winning_streak"`
	MaxLosingStreak  int `dynamodbav:"max_losing_streak"`

	UniqueAssets int `dynamodbav:"unique_assets"`

	FirstTradeAt int64 `dynamodbav:"first_trade_at,omitempty"`
	LastTradeAt  int64 `dynamodbav:"last_trade_at,omitempty"`

	UpdatedAt int64 `dynamodbav:"updated_at"`
}

// NewDynamoRepository creates a performance repository backed by DynamoDB
func NewDynamoRepository(client *dynamodb.Client, table string, log zerolog.Logger) *DynamoRepository {
	return &DynamoRepository{
		client: client,
		table:  table,
		log:    log.With().Str("repo", "performance_dynamo").Logger(),
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

// GetPerformance returns the asset's record, or nil if none exists
func (r *DynamoRepository) GetPerformance(ctx context.Context, asset string) (*domain.PositionPerformance, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &r.table,
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: performancePK},
			"sk": &types.AttributeValueMemberS{Value: strings.ToUpper(asset)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get performance: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item performanceItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal performance: %w", err)
	}

	return fromPerformanceItem(item), nil
}

// GetAllPerformance returns every asset record
func (r *DynamoRepository) GetAllPerformance(ctx context.Context) ([]*domain.PositionPerformance, error) {
	var results []*domain.PositionPerformance
	var startKey map[string]types.AttributeValue

	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &r.table,
			KeyConditionExpression: awsString("pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: performancePK},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query performance records: %w", err)
		}

		for _, raw := range out.Items {
			var item performanceItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal performance: %w", err)
			}
			results = append(results, fromPerformanceItem(item))
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return results, nil
}

// SavePerformance upserts an asset record
func (r *DynamoRepository) SavePerformance(ctx context.Context, p *domain.PositionPerformance) error {
	item := performanceItem{
		PK:               performancePK,
		SK:               strings.ToUpper(p.Asset),
		Asset:            strings.ToUpper(p.Asset),
		Symbol:           p.Symbol,
		TotalTrades:      p.TotalTrades,
		WinningTrades:    p.WinningTrades,
		LosingTrades:     p.LosingTrades,
		TotalRealizedPnL: decStr(p.TotalRealizedPnL),
		BestTradePnL:     decStr(p.BestTradePnL),
		WorstTradePnL:    decStr(p.WorstTradePnL),
		AvgHoldingHours:  decStr(p.AvgHoldingHours),
		UpdatedAt:        time.Now().Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal performance: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.table,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put performance: %w", err)
	}

	return nil
}

// GetStats returns the portfolio singleton, zero-valued if never saved
func (r *DynamoRepository) GetStats(ctx context.Context) (*domain.PortfolioStats, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &r.table,
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: statsPK},
			"sk": &types.AttributeValueMemberS{Value: statsSK},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio stats: %w", err)
	}
	if out.Item == nil {
		return &domain.PortfolioStats{}, nil
	}

	var item statsItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal portfolio stats: %w", err)
	}

	s := &domain.PortfolioStats{
		TotalTrades:      item.TotalTrades,
		WinningTrades:    item.WinningTrades,
		LosingTrades:     item.LosingTrades,
		TotalRealizedPnL: decVal(item.TotalRealizedPnL),
		LargestWin:       decVal(item.LargestWin),
		LargestLoss:      decVal(item.LargestLoss),
		CurrentStreak:    item.CurrentStreak,
		MaxWinningStreak: item.MaxWinningStreak,
		MaxLosingStreak:  item.MaxLosingStreak,
		UniqueAssets:     item.UniqueAssets,
	}
	if item.FirstTradeAt > 0 {
		t := time.Unix(item.FirstTradeAt, 0).UTC()
		s.FirstTradeAt = &t
	}
	if item.LastTradeAt > 0 {
		t := time.Unix(item.LastTradeAt, 0).UTC()
		s.LastTradeAt = &t
	}

	return s, nil
}

// SaveStats upserts the portfolio singleton
func (r *DynamoRepository) SaveStats(ctx context.Context, s *domain.PortfolioStats) error {
	item := statsItem{
		PK:               statsPK,
		SK:               statsSK,
		TotalTrades:      s.TotalTrades,
		WinningTrades:    s.WinningTrades,
		LosingTrades:     s.LosingTrades,
		TotalRealizedPnL: decStr(s.TotalRealizedPnL),
		LargestWin:       decStr(s.LargestWin),
		LargestLoss:      decStr(s.LargestLoss),
		CurrentStreak:    s.CurrentStreak,
		MaxWinningStreak: s.MaxWinningStreak,
		MaxLosingStreak:  s.MaxLosingStreak,
		UniqueAssets:     s.UniqueAssets,
		UpdatedAt:        time.Now().Unix(),
	}
	if s.FirstTradeAt != nil {
		item.FirstTradeAt = s.FirstTradeAt.Unix()
	}
	if s.LastTradeAt != nil {
		item.LastTradeAt = s.LastTradeAt.Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal portfolio stats: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.table,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put portfolio stats: %w", err)
	}

	return nil
}

// Reset deletes all performance records and the stats singleton
func (r *DynamoRepository) Reset(ctx context.Context) error {
	records, err := r.GetAllPerformance(ctx)
	if err != nil {
		return err
	}

	for _, p := range records {
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: &r.table,
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: performancePK},
				"sk": &types.AttributeValueMemberS{Value: strings.ToUpper(p.Asset)},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete performance record: %w", err)
		}
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &r.table,
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: statsPK},
			"sk": &types.AttributeValueMemberS{Value: statsSK},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete portfolio stats: %w", err)
	}

	r.log.Info().Msg("Performance aggregates reset")
	return nil
}

func fromPerformanceItem(item performanceItem) *domain.PositionPerformance {
	return &domain.PositionPerformance{
		Asset:            item.Asset,
		Symbol:           item.Symbol,
		TotalTrades:      item.TotalTrades,
		WinningTrades:    item.WinningTrades,
		LosingTrades:     item.LosingTrades,
		TotalRealizedPnL: decVal(item.TotalRealizedPnL),
		BestTradePnL:     decVal(item.BestTradePnL),
		WorstTradePnL:    decVal(item.WorstTradePnL),
		AvgHoldingHours:  decVal(item.AvgHoldingHours),
	}
}

func awsString(s string) *string {
	return &s
}
