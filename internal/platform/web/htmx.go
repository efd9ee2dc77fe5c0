package web

import (
	"encoding/json"
	"net/http"
	"strings"
)

// HTMX request headers.
const (
	HXRequest      = "HX-Request"
	HXBoosted      = "HX-Boosted"
	HXHistoryState = "HX-History-Restore-Request"
)

// HTMX response headers.
const (
	HXPushURL     = "HX-Push-Url"
	HXTriggerResp = "HX-Trigger"
)

// IsHTMX reports whether HTMX issued the request. Boosted navigation and
// history restores want the full page, so they do not count.
func IsHTMX(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get(HXBoosted), "true") ||
		strings.EqualFold(r.Header.Get(HXHistoryState), "true") {
		return false
	}
	return strings.EqualFold(r.Header.Get(HXRequest), "true")
}

// SetHTMXPushURL updates the browser location after a fragment swap.
func SetHTMXPushURL(w http.ResponseWriter, url string) {
	w.Header().Set(HXPushURL, url)
}

// SetHTMXTrigger fires a client-side event, with a detail payload when
// detail is not nil.
func SetHTMXTrigger(w http.ResponseWriter, event string, detail any) {
	if detail == nil {
		w.Header().Set(HXTriggerResp, event)
		return
	}
	payload, err := json.Marshal(map[string]any{event: detail})
	if err != nil {
		w.Header().Set(HXTriggerResp, event)
		return
	}
	w.Header().Set(HXTriggerResp, string(payload))
}
