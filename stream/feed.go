package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/grove/crud"
	"github.com/jacentio/grove/store"
	"github.com/jacentio/grove/uid"
)

// Change is one document change read from the stream.
type Change struct {
	Action crud.Action
	UID    string

	// Document is the new image for create and update, nil for delete.
	Document store.Document
	// Old is the previous image for update and delete, nil for create.
	Old store.Document
}

// Subscriber handles a change.
type Subscriber func(ctx context.Context, c Change) error

type subscription struct {
	pattern *uid.Pattern
	fn      Subscriber
}

// Handler dispatches stream records to subscribers.
type Handler struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger: logger,
	}
}

// Subscribe registers fn for changes to documents whose uid matches pattern.
func (h *Handler) Subscribe(pattern string, fn Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, subscription{pattern: uid.CompileMatch(pattern), fn: fn})
}

// HandleEvent processes a batch of stream records in order.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleEvent(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord decodes a single record and hands it to matching subscribers.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	change, ok, err := decodeRecord(record)
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if !ok {
		return nil
	}

	h.mu.RLock()
	subs := h.subs
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if !sub.pattern.MatchString(change.UID) {
			continue
		}
		if err := sub.fn(ctx, change); err != nil {
			return fmt.Errorf("subscriber %s: %w", sub.pattern, err)
		}
		delivered++
	}

	h.logger.Debug("change dispatched",
		"action", change.Action,
		"uid", change.UID,
		"subscribers", delivered,
	)
	return nil
}

// decodeRecord converts a stream record to a Change. Records of unknown
// event types or without a uid are skipped.
func decodeRecord(record events.DynamoDBEventRecord) (Change, bool, error) {
	var action crud.Action
	switch events.DynamoDBOperationType(record.EventName) {
	case events.DynamoDBOperationTypeInsert:
		action = crud.Create
	case events.DynamoDBOperationTypeModify:
		action = crud.Update
	case events.DynamoDBOperationTypeRemove:
		action = crud.Delete
	default:
		return Change{}, false, nil
	}

	id := getStringAttr(record.Change.Keys, store.FieldUID)
	if id == "" {
		id = getStringAttr(record.Change.NewImage, store.FieldUID)
	}
	if id == "" {
		id = getStringAttr(record.Change.OldImage, store.FieldUID)
	}
	if id == "" {
		return Change{}, false, nil
	}

	c := Change{Action: action, UID: id}
	var err error
	if len(record.Change.NewImage) > 0 && action != crud.Delete {
		if c.Document, err = store.DecodeItem(ConvertImage(record.Change.NewImage)); err != nil {
			return Change{}, false, err
		}
	}
	if len(record.Change.OldImage) > 0 && action != crud.Create {
		if c.Old, err = store.DecodeItem(ConvertImage(record.Change.OldImage)); err != nil {
			return Change{}, false, err
		}
	}
	return c, true, nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// ConvertImage converts a DynamoDB stream image to SDK attribute values.
func ConvertImage(image map[string]events.DynamoDBAttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue, len(image))
	for k, v := range image {
		if av := convertValue(v); av != nil {
			result[k] = av
		}
	}
	return result
}

func convertValue(v events.DynamoDBAttributeValue) types.AttributeValue {
	switch v.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: v.String()}
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: v.Number()}
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: v.Binary()}
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.Boolean()}
	case events.DataTypeNull:
		return &types.AttributeValueMemberNULL{Value: true}
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: v.StringSet()}
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: v.NumberSet()}
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: v.BinarySet()}
	case events.DataTypeList:
		list := v.List()
		out := make([]types.AttributeValue, 0, len(list))
		for _, item := range list {
			if av := convertValue(item); av != nil {
				out = append(out, av)
			}
		}
		return &types.AttributeValueMemberL{Value: out}
	case events.DataTypeMap:
		return &types.AttributeValueMemberM{Value: ConvertImage(v.Map())}
	}
	return nil
}
