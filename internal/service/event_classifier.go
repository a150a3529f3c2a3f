package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"payment-webhook-gateway/internal/core/domain"
)

// ParsePayload decodes a webhook body into a generic object.
// Numbers are kept as json.Number so large payment ids are not rounded.
func ParsePayload(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode payload: trailing data after JSON object")
	}
	return payload, nil
}

// extractor returns a candidate value for one field, "" if absent.
type extractor func(payload map[string]any, query url.Values) string

var topicExtractors = []extractor{
	bodyField("type"),
	bodyField("topic"),
	queryField("type"),
	queryField("topic"),
}

// The top-level body "id" is the notification id, not the payment id.
var externalIDExtractors = []extractor{
	bodyField("data", "id"),
	queryField("data.id"),
	queryField("id"),
}

var referenceExtractors = []extractor{
	bodyField("external_reference"),
	bodyField("data", "external_reference"),
	bodyField("data", "metadata", "paymentId"),
	bodyField("data", "metadata", "id"),
	bodyField("metadata", "paymentId"),
}

// ClassifyEvent determines the topic of a delivery and pulls out the fields the
// reconciler needs. payload may be nil (unparseable body); query may be nil.
func ClassifyEvent(payload map[string]any, query url.Values) domain.EventClassification {
	topic := strings.ToLower(firstMatch(topicExtractors, payload, query))

	return domain.EventClassification{
		Topic:               topic,
		Action:              stringify(lookup(payload, "action")),
		IsPayment:           topic == domain.TopicPayment,
		ExternalPaymentID:   firstMatch(externalIDExtractors, payload, query),
		Reference:           firstMatch(referenceExtractors, payload, query),
		PayloadStatus:       stringify(lookup(payload, "data", "status")),
		PayloadStatusDetail: stringify(lookup(payload, "data", "status_detail")),
	}
}

func firstMatch(extractors []extractor, payload map[string]any, query url.Values) string {
	for _, extract := range extractors {
		if v := extract(payload, query); v != "" {
			return v
		}
	}
	return ""
}

func bodyField(path ...string) extractor {
	return func(payload map[string]any, _ url.Values) string {
		return stringify(lookup(payload, path...))
	}
}

func queryField(key string) extractor {
	return func(_ map[string]any, query url.Values) string {
		if query == nil {
			return ""
		}
		return strings.TrimSpace(query.Get(key))
	}
}

func lookup(payload map[string]any, path ...string) any {
	var cur any = payload
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

// stringify renders ids that arrive as either strings or numbers.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
