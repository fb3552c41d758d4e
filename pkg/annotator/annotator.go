// Package annotator derives short human-readable labels for signing requests.
// Labels only feed audit trails; nothing branches on them.
package annotator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
)

const (
	fallbackLabel  = "typed data"
	maxLabelLength = 200
	ellipsis       = "..."
)

// Label summarizes req. It never panics; unrecognized shapes yield a generic label.
func Label(req *types.SigningRequest) (label string) {
	defer func() {
		if r := recover(); r != nil {
			label = fallbackLabel
		}
	}()
	if req == nil {
		return fallbackLabel
	}
	return truncate(describe(req))
}

// truncate caps label at maxLabelLength bytes without splitting a UTF-8 sequence.
func truncate(label string) string {
	if len(label) <= maxLabelLength {
		return label
	}
	cut := maxLabelLength - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(label[cut]) {
		cut--
	}
	return label[:cut] + ellipsis
}

func describe(req *types.SigningRequest) string {
	msg := req.Message
	suffix := ""
	if req.Domain.Name != "" {
		suffix = " on " + req.Domain.Name
	}

	switch {
	case has(msg, "makerAmount") && has(msg, "takerAmount"):
		return fmt.Sprintf("order: maker %s / taker %s%s", str(msg["makerAmount"]), str(msg["takerAmount"]), suffix)
	case has(msg, "side") && (has(msg, "price") || has(msg, "amount") || has(msg, "market")):
		parts := []string{"order:", sideName(msg["side"])}
		if has(msg, "amount") {
			parts = append(parts, str(msg["amount"]))
		}
		if has(msg, "market") {
			parts = append(parts, str(msg["market"]))
		}
		if has(msg, "price") {
			parts = append(parts, "@", str(msg["price"]))
		}
		return strings.Join(parts, " ") + suffix
	case has(msg, "spender") && has(msg, "value"):
		return fmt.Sprintf("permit: %s to %s%s", str(msg["value"]), str(msg["spender"]), suffix)
	case has(msg, "amount") && (has(msg, "token") || has(msg, "to") || has(msg, "recipient") || has(msg, "toAddress")):
		kind := "transfer"
		if strings.Contains(strings.ToLower(req.PrimaryType), "withdraw") {
			kind = "withdrawal"
		}
		label := fmt.Sprintf("%s: %s", kind, str(msg["amount"]))
		if has(msg, "token") {
			label += " " + str(msg["token"])
		}
		for _, k := range []string{"to", "recipient", "toAddress"} {
			if has(msg, k) {
				label += " to " + str(msg[k])
				break
			}
		}
		return label + suffix
	}

	switch {
	case req.PrimaryType != "" && req.Domain.Name != "":
		return fmt.Sprintf("%s for %s", req.PrimaryType, req.Domain.Name)
	case req.Domain.Name != "":
		return fmt.Sprintf("%s for %s", fallbackLabel, req.Domain.Name)
	case req.PrimaryType != "":
		return req.PrimaryType
	}
	return fallbackLabel
}

func has(msg map[string]interface{}, key string) bool {
	v, ok := msg[key]
	return ok && v != nil && str(v) != ""
}

func str(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return t.String()
	case float64:
		return fmt.Sprintf("%v", t)
	case map[string]interface{}, []interface{}:
		return "<" + fmt.Sprintf("%T", t) + ">"
	default:
		return fmt.Sprint(t)
	}
}

// sideName maps the common 0/1 encoding; other values are shown verbatim.
func sideName(v interface{}) string {
	switch strings.ToLower(str(v)) {
	case "0", "buy", "bid":
		return "buy"
	case "1", "sell", "ask":
		return "sell"
	}
	return str(v)
}
