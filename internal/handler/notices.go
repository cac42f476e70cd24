package handler

import (
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"

	"storefront/internal/model"
)

// NoticesHeader carries cart notices queued since the previous response.
// The value is an RFC 9651 List of strings, each with a level token
// parameter:
//
//	Storefront-Notices: "Added Mug to cart";level=success, "Cart cleared";level=info
//
// Messages outside printable ASCII (product names often are) travel as
// byte sequences holding the UTF-8 text.
const NoticesHeader = "Storefront-Notices"

// EncodeNotices serializes notices for the NoticesHeader.
func EncodeNotices(notices []model.Notice) (string, error) {
	list := make(httpsfv.List, 0, len(notices))
	for _, n := range notices {
		var item httpsfv.Item
		if printableASCII(n.Message) {
			item = httpsfv.NewItem(n.Message)
		} else {
			item = httpsfv.NewItem([]byte(n.Message))
		}
		item.Params.Add("level", httpsfv.Token(n.Level))
		list = append(list, item)
	}
	return httpsfv.Marshal(list)
}

func printableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// DecodeNotices parses NoticesHeader values. Plain strings are accepted as
// messages; a missing level defaults to info.
func DecodeNotices(values []string) ([]model.Notice, error) {
	if len(values) == 0 || strings.TrimSpace(strings.Join(values, "")) == "" {
		return nil, nil
	}
	list, err := httpsfv.UnmarshalList(values)
	if err != nil {
		return nil, fmt.Errorf("invalid %s header: %w", NoticesHeader, err)
	}

	notices := make([]model.Notice, 0, len(list))
	for _, member := range list {
		item, ok := member.(httpsfv.Item)
		if !ok {
			return nil, fmt.Errorf("invalid %s header: inner lists are not notices", NoticesHeader)
		}

		var msg string
		switch v := item.Value.(type) {
		case []byte:
			msg = string(v)
		case string:
			msg = v
		default:
			return nil, fmt.Errorf("invalid %s header: notice must be a string", NoticesHeader)
		}

		level := model.NoticeInfo
		if raw, ok := item.Params.Get("level"); ok {
			if tok, ok := raw.(httpsfv.Token); ok {
				level = model.NoticeLevel(tok)
			}
		}
		notices = append(notices, model.Notice{Level: level, Message: msg})
	}
	return notices, nil
}
