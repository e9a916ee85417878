package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/engine"
	"github.com/wifx/geoip-rsc/src/internal/log"
	"github.com/wifx/geoip-rsc/src/internal/rsc"
)

// GetCustomScript renders the whole selection into one list.
//
// Query: cc, zone (repeatable or comma-separated), custom, list, family,
// aggregate.
func (h *Handler) GetCustomScript(w http.ResponseWriter, r *http.Request) {
	req, err := parseScriptRequest(r.URL.Query())
	if err != nil {
		WriteInvalidRequest(w, err.Error())
		return
	}
	h.serveScript(w, "combined", func() (*rsc.Script, error) { return h.deps.Engine.Combined(req) })
}

// GetGeoIPScript renders one list per country and zone. Without a selection
// it renders every configured zone.
func (h *Handler) GetGeoIPScript(w http.ResponseWriter, r *http.Request) {
	req, err := parseScriptRequest(r.URL.Query())
	if err != nil {
		WriteInvalidRequest(w, err.Error())
		return
	}
	h.serveScript(w, "per_list", func() (*rsc.Script, error) { return h.deps.Engine.PerList(req) })
}

func (h *Handler) serveScript(w http.ResponseWriter, kind string, render func() (*rsc.Script, error)) {
	script, err := render()
	if err != nil {
		log.Warnf("Script request failed: %v", err)
		WriteDomainError(w, err)
		return
	}
	scriptEntries.WithLabelValues(kind).Observe(float64(script.Entries()))
	writeScript(w, script.String())
}

// GetLoaderScript renders the router-side installer. Without a url parameter
// the installer points at /custom.rsc on this server with the remaining query.
func (h *Handler) GetLoaderScript(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("url")
	if target == "" {
		target = selfURL(r, q)
	} else if u, err := url.Parse(target); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		WriteInvalidRequest(w, "url must be an absolute http(s) URL")
		return
	}

	script, err := h.deps.Engine.Loader(target, q.Get("name"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeScript(w, script)
}

func selfURL(r *http.Request, q url.Values) string {
	rest := url.Values{}
	for k, v := range q {
		if k == "url" || k == "name" {
			continue
		}
		rest[k] = v
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}

	u := url.URL{Scheme: scheme, Host: r.Host, Path: "/custom.rsc", RawQuery: rest.Encode()}
	return u.String()
}

func parseScriptRequest(q url.Values) (engine.Request, error) {
	family, err := config.ParseIPFamily(q.Get("family"))
	if err != nil {
		return engine.Request{}, err
	}

	aggregate := false
	if raw := q.Get("aggregate"); raw != "" {
		if aggregate, err = strconv.ParseBool(raw); err != nil {
			return engine.Request{}, err
		}
	}

	return engine.Request{
		Countries: splitValues(q["cc"]),
		Zones:     splitValues(q["zone"]),
		Custom:    q["custom"],
		Family:    family,
		Aggregate: aggregate,
		ListName:  q.Get("list"),
		Prefix:    q.Get("prefix"),
	}, nil
}

// splitValues flattens repeated and comma-separated parameters.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
