package outcomes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

// DynamoRepository stores outcome lots in a single DynamoDB table shared by
// all record families.
//
// Key layout:
//
//	pk = OUTCOME#<ASSET>
//	sk = <status>#<entry_unix, zero padded>#<id>
//
// Status lives in the sort key so open lots can be fetched with a prefix
// query. The cost is that a status transition is a delete of the old item
// plus a put of the new one.
type DynamoRepository struct {
	client *dynamodb.Client
	table  string
	log    zerolog.Logger
}

// outcomeItem is the wire shape of a lot. Monetary values are carried as
// decimal strings to avoid binary float drift in the table.
type outcomeItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`

	ID     string `dynamodbav:"id"`
	Symbol string `dynamodbav:"symbol"`
	Asset  string `dynamodbav:"asset"`

	EntryPrice     string `dynamodbav:"entry_price"`
	EntryQuantity  string `dynamodbav:"entry_quantity"`
	EntryAt        int64  `dynamodbav:"entry_at"`
	EntryRationale string `dynamodbav:"entry_rationale,omitempty"`

	ExitPrice     string `dynamodbav:"exit_price,omitempty"`
	ExitQuantity  string `dynamodbav:"exit_quantity,omitempty"`
	ExitAt        int64  `dynamodbav:"exit_at,omitempty"`
	ExitRationale string `dynamodbav:"exit_rationale,omitempty"`

	RealizedPnL    string `dynamodbav:"realized_pnl"`
	RealizedPnLPct string `dynamodbav:"realized_pnl_pct"`
	HoldingHours   string `dynamodbav:"holding_hours"`

	Status            string `dynamodbav:"status"`
	RemainingQuantity string `dynamodbav:"remaining_quantity"`

	// CreatedAt is nanoseconds at lot creation. Entry timestamps only
	// carry second resolution in the sort key, so this is the FIFO
	// tie-break for lots opened within the same second.
	CreatedAt int64 `dynamodbav:"created_at"`
	UpdatedAt int64 `dynamodbav:"updated_at"`
}

// NewDynamoRepository creates an outcome repository backed by DynamoDB
func NewDynamoRepository(client *dynamodb.Client, table string, log zerolog.Logger) *DynamoRepository {
	return &DynamoRepository{
		client: client,
		table:  table,
		log:    log.With().Str("repo", "outcomes_dynamo").Logger(),
	}
}

func outcomePK(asset string) string {
	return "OUTCOME#" + strings.ToUpper(strings.TrimSpace(asset))
}

func outcomeSK(status domain.OutcomeStatus, entryAt time.Time, id string) string {
	return fmt.Sprintf("%s#%012d#%s", status, entryAt.Unix(), id)
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

func toOutcomeItem(o *domain.TradeOutcome) outcomeItem {
	item := outcomeItem{
		PK:                outcomePK(o.Asset),
		SK:                outcomeSK(o.Status, o.EntryAt, o.ID),
		ID:                o.ID,
		Symbol:            o.Symbol,
		Asset:             o.Asset,
		EntryPrice:        decStr(o.EntryPrice),
		EntryQuantity:     decStr(o.EntryQuantity),
		EntryAt:           o.EntryAt.Unix(),
		EntryRationale:    o.EntryRationale,
		ExitRationale:     o.ExitRationale,
		RealizedPnL:       decStr(o.RealizedPnL),
		RealizedPnLPct:    decStr(o.RealizedPnLPct),
		HoldingHours:      decStr(o.HoldingHours),
		Status:            string(o.Status),
		RemainingQuantity: decStr(o.RemainingQuantity),
		CreatedAt:         o.CreatedAt.UnixNano(),
		UpdatedAt:         time.Now().Unix(),
	}
	if o.ExitQuantity > 0 {
		item.ExitPrice = decStr(o.ExitPrice)
		item.ExitQuantity = decStr(o.ExitQuantity)
	}
	if !o.ExitAt.IsZero() {
		item.ExitAt = o.ExitAt.Unix()
	}
	return item
}

func fromOutcomeItem(item outcomeItem) *domain.TradeOutcome {
	o := &domain.TradeOutcome{
		ID:                item.ID,
		Symbol:            item.Symbol,
		Asset:             item.Asset,
		EntryPrice:        decVal(item.EntryPrice),
		EntryQuantity:     decVal(item.EntryQuantity),
		EntryAt:           time.Unix(item.EntryAt, 0).UTC(),
		EntryRationale:    item.EntryRationale,
		ExitPrice:         decVal(item.ExitPrice),
		ExitQuantity:      decVal(item.ExitQuantity),
		ExitRationale:     item.ExitRationale,
		RealizedPnL:       decVal(item.RealizedPnL),
		RealizedPnLPct:    decVal(item.RealizedPnLPct),
		HoldingHours:      decVal(item.HoldingHours),
		Status:            domain.OutcomeStatus(item.Status),
		RemainingQuantity: decVal(item.RemainingQuantity),
		CreatedAt:         time.Unix(0, item.CreatedAt).UTC(),
	}
	if item.ExitAt > 0 {
		o.ExitAt = time.Unix(item.ExitAt, 0).UTC()
	}
	return o
}

// Insert stores a newly opened lot
func (r *DynamoRepository) Insert(ctx context.Context, o *domain.TradeOutcome) error {
	av, err := attributevalue.MarshalMap(toOutcomeItem(o))
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.table,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put outcome: %w", err)
	}

	r.log.Info().
		Str("outcome_id", o.ID).
		Str("asset", o.Asset).
		Msg("Outcome lot opened")

	return nil
}

// Update rewrites the lot under its current status key. Because the status
// is part of the sort key, stale copies under the other statuses are
// deleted first.
func (r *DynamoRepository) Update(ctx context.Context, o *domain.TradeOutcome) error {
	pk := outcomePK(o.Asset)
	for _, status := range []domain.OutcomeStatus{domain.OutcomeOpen, domain.OutcomePartial, domain.OutcomeClosed} {
		if status == o.Status {
			continue
		}
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: &r.table,
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: pk},
				"sk": &types.AttributeValueMemberS{Value: outcomeSK(status, o.EntryAt, o.ID)},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to clear stale outcome key: %w", err)
		}
	}

	av, err := attributevalue.MarshalMap(toOutcomeItem(o))
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.table,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put outcome: %w", err)
	}

	return nil
}

// GetOpen returns open and partial lots for an asset, oldest entry first
func (r *DynamoRepository) GetOpen(ctx context.Context, asset string) ([]*domain.TradeOutcome, error) {
	var results []*domain.TradeOutcome
	for _, prefix := range []string{"open#", "partial#"} {
		batch, err := r.queryByPrefix(ctx, outcomePK(asset), prefix)
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}

	sort.SliceStable(results, byEntryOrder(results))

	return results, nil
}

// GetRecentClosed returns closed lots for an asset, most recent exit first
func (r *DynamoRepository) GetRecentClosed(ctx context.Context, asset string, limit int) ([]*domain.TradeOutcome, error) {
	results, err := r.queryByPrefix(ctx, outcomePK(asset), "closed#")
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ExitAt.After(results[j].ExitAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// GetAllClosedByExitTime returns all closed lots in exit-time ascending order
func (r *DynamoRepository) GetAllClosedByExitTime(ctx context.Context) ([]*domain.TradeOutcome, error) {
	results, err := r.scanByPrefixes(ctx, "OUTCOME#", "closed#")
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if !results[i].ExitAt.Equal(results[j].ExitAt) {
			return results[i].ExitAt.Before(results[j].ExitAt)
		}
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})

	return results, nil
}

// GetAllOpen returns all open and partial lots across assets
func (r *DynamoRepository) GetAllOpen(ctx context.Context) ([]*domain.TradeOutcome, error) {
	open, err := r.scanByPrefixes(ctx, "OUTCOME#", "open#")
	if err != nil {
		return nil, err
	}
	partial, err := r.scanByPrefixes(ctx, "OUTCOME#", "partial#")
	if err != nil {
		return nil, err
	}

	results := append(open, partial...)
	entryOrder := byEntryOrder(results)
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Asset != results[j].Asset {
			return results[i].Asset < results[j].Asset
		}
		return entryOrder(i, j)
	})

	return results, nil
}

// byEntryOrder orders lots by entry time, falling back to creation order
// for lots entered within the same second
func byEntryOrder(results []*domain.TradeOutcome) func(i, j int) bool {
	return func(i, j int) bool {
		if !results[i].EntryAt.Equal(results[j].EntryAt) {
			return results[i].EntryAt.Before(results[j].EntryAt)
		}
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	}
}

func (r *DynamoRepository) queryByPrefix(ctx context.Context, pk, skPrefix string) ([]*domain.TradeOutcome, error) {
	var results []*domain.TradeOutcome
	var startKey map[string]types.AttributeValue

	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &r.table,
			KeyConditionExpression: awsString("pk = :pk AND begins_with(sk, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: pk},
				":prefix": &types.AttributeValueMemberS{Value: skPrefix},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query outcomes: %w", err)
		}

		for _, raw := range out.Items {
			var item outcomeItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal outcome: %w", err)
			}
			results = append(results, fromOutcomeItem(item))
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return results, nil
}

func (r *DynamoRepository) scanByPrefixes(ctx context.Context, pkPrefix, skPrefix string) ([]*domain.TradeOutcome, error) {
	var results []*domain.TradeOutcome
	var startKey map[string]types.AttributeValue

	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        &r.table,
			FilterExpression: awsString("begins_with(pk, :pk) AND begins_with(sk, :sk)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: pkPrefix},
				":sk": &types.AttributeValueMemberS{Value: skPrefix},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcomes: %w", err)
		}

		for _, raw := range out.Items {
			var item outcomeItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal outcome: %w", err)
			}
			results = append(results, fromOutcomeItem(item))
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return results, nil
}

func awsString(s string) *string {
	return &s
}
