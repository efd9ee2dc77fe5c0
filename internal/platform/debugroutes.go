package platform

import (
	"encoding/json"
	"net/http"
	"reflect"
	"runtime"

	"github.com/go-chi/chi/v5"
)

// RouteInfo describes one registered route.
type RouteInfo struct {
	Method      string   `json:"method"`
	Pattern     string   `json:"pattern"`
	Middlewares []string `json:"middlewares,omitempty"`
}

// RegisterDebugRoutes exposes GET /debug/routes behind the given guards.
func RegisterDebugRoutes(r chi.Router, enabled bool, guards ...func(http.Handler) http.Handler) {
	if !enabled || r == nil {
		return
	}
	r.With(guards...).Get("/debug/routes", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(EnumerateRoutes(r))
	})
}

// EnumerateRoutes walks the router and lists every method/pattern pair.
func EnumerateRoutes(r chi.Routes) []RouteInfo {
	routes := make([]RouteInfo, 0)
	_ = chi.Walk(r, func(method, route string, _ http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		info := RouteInfo{Method: method, Pattern: route}
		for _, mw := range middlewares {
			info.Middlewares = append(info.Middlewares, funcName(mw))
		}
		routes = append(routes, info)
		return nil
	})
	return routes
}

func funcName(fn any) string {
	if fn == nil {
		return "<nil>"
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "<nil>"
	}
	return runtime.FuncForPC(v.Pointer()).Name()
}
