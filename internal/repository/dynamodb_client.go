package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"kopiloka-assistant/internal/domain"
)

const (
	pkPrefixDay = "DAY#"
	skPrefixEx  = "EX#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL

	// maxReplyLen keeps journal items well under the DynamoDB item limit.
	maxReplyLen = 16 * 1024
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client journals relay exchanges to a DynamoDB table. The journal is
// write-only; nothing in the relay reads it back.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// dayPK partitions exchanges by UTC day.
func dayPK(ts time.Time) string {
	return pkPrefixDay + ts.UTC().Format("2006-01-02")
}

func exchangeSK(ts time.Time, requestID string) string {
	return skPrefixEx + ts.UTC().Format(time.RFC3339Nano) + "#" + requestID
}

// ttlValue returns a Unix timestamp 30 days after ts.
func ttlValue(ts time.Time) int64 {
	return ts.Add(ttlDuration).Unix()
}

// Record persists one exchange. Missing CreatedAt and TTL are filled in.
func (c *Client) Record(ctx context.Context, ex domain.Exchange) error {
	if strings.TrimSpace(ex.RequestID) == "" {
		return errors.New("repository: Record: request id is required")
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = c.now().UTC()
	}
	if ex.TTL == 0 {
		ex.TTL = ttlValue(ex.CreatedAt)
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                exchangeItem(ex),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: Record: %w", err)
	}
	return nil
}

func exchangeItem(ex domain.Exchange) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: dayPK(ex.CreatedAt)},
		"SK":           &types.AttributeValueMemberS{Value: exchangeSK(ex.CreatedAt, ex.RequestID)},
		"requestId":    &types.AttributeValueMemberS{Value: ex.RequestID},
		"provider":     &types.AttributeValueMemberS{Value: ex.Provider},
		"model":        &types.AttributeValueMemberS{Value: ex.Model},
		"turns":        numAttr(int64(ex.Turns)),
		"promptTokens": numAttr(int64(ex.PromptTokens)),
		"reply":        &types.AttributeValueMemberS{Value: truncate(ex.Reply, maxReplyLen)},
		"status":       &types.AttributeValueMemberS{Value: ex.Status},
		"latencyMs":    numAttr(ex.LatencyMs),
		"createdAt":    &types.AttributeValueMemberS{Value: ex.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"ttl":          numAttr(ex.TTL),
	}
}

func numAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

