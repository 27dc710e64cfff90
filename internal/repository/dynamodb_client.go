package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"profile-agent/internal/domain"
)

const (
	skState     = "STATE#"
	skProfile   = "PROFILE#"
	ttlDuration = 7 * 24 * time.Hour // abandoned sessions expire after a week
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client persists one serialized dialogue history per session in a single
// DynamoDB table, and swaps it for the finalized profile record when an
// interview completes.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// ttlValue returns a Unix timestamp one week in the future.
func ttlValue() int64 {
	return time.Now().Add(ttlDuration).Unix()
}

// GetSession loads the serialized history for a session. The second return
// is false when no in-progress session exists under that ID.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.History, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, false, errors.New("repository: GetSession: session ID is required")
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skState},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("repository: GetSession get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, false, nil
	}

	raw, err := strAttr(out.Item, "history")
	if err != nil {
		return nil, false, fmt.Errorf("repository: GetSession: %w", err)
	}
	var history domain.History
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, false, fmt.Errorf("repository: GetSession decode history: %w", err)
	}
	return &history, true, nil
}

// SaveSession writes or replaces the session's serialized history.
func (c *Client) SaveSession(ctx context.Context, sessionID string, history *domain.History) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: SaveSession: session ID is required")
	}
	if history == nil {
		return errors.New("repository: SaveSession: history is required")
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("repository: SaveSession encode history: %w", err)
	}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      stateItem(sessionID, string(raw), history.UserTurns()),
	})
	if err != nil {
		return fmt.Errorf("repository: SaveSession: %w", err)
	}
	return nil
}

// FinalizeSession writes the profile record and deletes the working
// history in one transaction, so a completed interview never leaves a
// resumable half-session behind.
func (c *Client) FinalizeSession(ctx context.Context, sessionID string, record *domain.ProfileRecord) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: FinalizeSession: session ID is required")
	}
	if record == nil {
		return errors.New("repository: FinalizeSession: record is required")
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("repository: FinalizeSession encode record: %w", err)
	}

	_, err = c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                profileItem(sessionID, string(raw)),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Delete: &types.Delete{
					TableName: aws.String(c.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
						"SK": &types.AttributeValueMemberS{Value: skState},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: FinalizeSession: %w", err)
	}
	return nil
}

// GetProfile loads a finalized profile record. The second return is false
// when the session never completed.
func (c *Client) GetProfile(ctx context.Context, sessionID string) (*domain.ProfileRecord, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, false, errors.New("repository: GetProfile: session ID is required")
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skProfile},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("repository: GetProfile get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, false, nil
	}

	raw, err := strAttr(out.Item, "profile")
	if err != nil {
		return nil, false, fmt.Errorf("repository: GetProfile: %w", err)
	}
	var record domain.ProfileRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, false, fmt.Errorf("repository: GetProfile decode record: %w", err)
	}
	return &record, true, nil
}

func stateItem(sessionID, history string, userTurns int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK":        &types.AttributeValueMemberS{Value: skState},
		"sessionId": &types.AttributeValueMemberS{Value: sessionID},
		"history":   &types.AttributeValueMemberS{Value: history},
		"userTurns": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", userTurns)},
		"updatedAt": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue())},
	}
}

func profileItem(sessionID, profile string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK":          &types.AttributeValueMemberS{Value: skProfile},
		"sessionId":   &types.AttributeValueMemberS{Value: sessionID},
		"profile":     &types.AttributeValueMemberS{Value: profile},
		"completedAt": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}
