package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/fintova/paycore/internal/domain"
)

// DynamoConfig holds the configuration for the DynamoDB-backed store.
type DynamoConfig struct {
	Region    string
	TableName string
	// Endpoint overrides the AWS endpoint, e.g. for local DynamoDB.
	Endpoint string
}

// DynamoStore backs the idempotency cache with a DynamoDB table, for
// deployments where Postgres is not in the path. A conditional put on the
// record key provides the atomic create-if-absent; expiry rides on a
// native TTL attribute with an extra read-side check since DynamoDB TTL
// deletion lags by design.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

type dynamoRecord struct {
	RecordKey     string `dynamodbav:"record_key"`
	OwnerUserID   string `dynamodbav:"owner_user_id"`
	Token         string `dynamodbav:"token"`
	TransactionID string `dynamodbav:"transaction_id"`
	State         string `dynamodbav:"state"`
	CreatedAt     int64  `dynamodbav:"created_at"`
	ExpiresAt     int64  `dynamodbav:"expires_at"`
}

// NewDynamoStore loads AWS configuration and builds a client for the table.
func NewDynamoStore(ctx context.Context, cfg DynamoConfig) (*DynamoStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	var opts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &DynamoStore{
		client:    dynamodb.NewFromConfig(awsCfg, opts...),
		tableName: cfg.TableName,
		now:       time.Now,
	}, nil
}

func (s *DynamoStore) Get(ctx context.Context, ownerID, token string) (*domain.TransactionRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"record_key": &types.AttributeValueMemberS{Value: storeKey(ownerID, token)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem operation failed: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var item dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	if s.now().Unix() >= item.ExpiresAt {
		// TTL deletion has not caught up yet.
		return nil, ErrNotFound
	}

	state := domain.TxState(item.State)
	if !state.Valid() {
		return nil, fmt.Errorf("idempotency record has unknown state %q", item.State)
	}

	return &domain.TransactionRecord{
		OwnerUserID:   item.OwnerUserID,
		Token:         item.Token,
		TransactionID: item.TransactionID,
		State:         state,
		CreatedAt:     time.Unix(item.CreatedAt, 0).UTC(),
	}, nil
}

func (s *DynamoStore) Create(ctx context.Context, ownerID, token, transactionID string) error {
	now := s.now()
	item, err := attributevalue.MarshalMap(dynamoRecord{
		RecordKey:     storeKey(ownerID, token),
		OwnerUserID:   ownerID,
		Token:         token,
		TransactionID: transactionID,
		State:         string(domain.TxPending),
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Add(RetentionWindow).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(record_key) OR expires_at <= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrConflict
		}
		return fmt.Errorf("PutItem operation failed: %w", err)
	}
	return nil
}

func (s *DynamoStore) SetState(ctx context.Context, ownerID, token string, state domain.TxState) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"record_key": &types.AttributeValueMemberS{Value: storeKey(ownerID, token)},
		},
		UpdateExpression:    aws.String("SET #state = :state"),
		ConditionExpression: aws.String("attribute_exists(record_key)"),
		ExpressionAttributeNames: map[string]string{
			"#state": "state",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":state": &types.AttributeValueMemberS{Value: string(state)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrNotFound
		}
		return fmt.Errorf("UpdateItem operation failed: %w", err)
	}
	return nil
}

var _ Store = (*DynamoStore)(nil)
