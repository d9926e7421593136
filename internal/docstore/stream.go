package docstore

import (
	"strconv"

	"github.com/aws/aws-lambda-go/events"
)

// StreamKey returns the collection and document id of a stream record.
func StreamKey(keys map[string]events.DynamoDBAttributeValue) (collection, id string) {
	if v, ok := keys[partitionAttribute]; ok && v.DataType() == events.DataTypeString {
		collection = v.String()
	}
	if v, ok := keys[sortAttribute]; ok && v.DataType() == events.DataTypeString {
		id = v.String()
	}
	return collection, id
}

// FromStreamImage converts a stream image into a plain document, dropping
// the key attributes. A nil image yields nil.
func FromStreamImage(image map[string]events.DynamoDBAttributeValue) map[string]any {
	if image == nil {
		return nil
	}
	doc := make(map[string]any, len(image))
	for k, v := range image {
		if k == partitionAttribute || k == sortAttribute {
			continue
		}
		doc[k] = plain(v)
	}
	return doc
}

func plain(av events.DynamoDBAttributeValue) any {
	switch av.DataType() {
	case events.DataTypeString:
		return av.String()
	case events.DataTypeNumber:
		if n, err := strconv.ParseInt(av.Number(), 10, 64); err == nil {
			return n
		}
		f, _ := strconv.ParseFloat(av.Number(), 64)
		return f
	case events.DataTypeBoolean:
		return av.Boolean()
	case events.DataTypeBinary:
		return av.Binary()
	case events.DataTypeList:
		list := av.List()
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = plain(item)
		}
		return out
	case events.DataTypeMap:
		m := av.Map()
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[k] = plain(item)
		}
		return out
	case events.DataTypeStringSet:
		return av.StringSet()
	case events.DataTypeNumberSet:
		return av.NumberSet()
	case events.DataTypeBinarySet:
		return av.BinarySet()
	}
	return nil
}
