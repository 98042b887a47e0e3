package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// GetByPath reads one setting by its dotted JSON path, e.g.
// "providers.portia.apiBase" or "general.providerOrder.0".
func GetByPath(cfg *Config, path string) (any, error) {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	res := gjson.GetBytes(doc, gjsonPath(path))
	if !res.Exists() {
		return nil, fmt.Errorf("unknown config path: %s", path)
	}
	return res.Value(), nil
}

// SetByPath assigns a value given on the command line. The string is coerced
// to the type the setting already holds; unset settings (new providers,
// omitted temperatures) are inferred from the literal.
func SetByPath(cfg *Config, path string, value string) error {
	keys := strings.Split(path, ".")
	for _, k := range keys {
		if k == "" {
			return fmt.Errorf("invalid config path: %q", path)
		}
	}

	doc, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	typed, err := coerce(gjson.GetBytes(doc, gjsonPath(path)), value)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var tree map[string]any
	if err := json.Unmarshal(doc, &tree); err != nil {
		return err
	}
	node := tree
	for _, k := range keys[:len(keys)-1] {
		switch child := node[k].(type) {
		case map[string]any:
			node = child
		case nil:
			next := make(map[string]any)
			node[k] = next
			node = next
		default:
			return fmt.Errorf("%s: %s is not a section", path, k)
		}
	}
	node[keys[len(keys)-1]] = typed

	updated, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	var next Config
	if err := json.Unmarshal(updated, &next); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	*cfg = next
	return nil
}

func coerce(current gjson.Result, raw string) (any, error) {
	switch current.Type {
	case gjson.True, gjson.False:
		return strconv.ParseBool(raw)
	case gjson.Number:
		return strconv.ParseFloat(raw, 64)
	case gjson.String:
		return raw, nil
	case gjson.JSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("expected a JSON value: %w", err)
		}
		return v, nil
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	return raw, nil
}

// ListPaths flattens the config to path -> value. Lists stay whole.
func ListPaths(cfg *Config) map[string]any {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	var walk func(prefix string, r gjson.Result)
	walk = func(prefix string, r gjson.Result) {
		r.ForEach(func(k, v gjson.Result) bool {
			p := k.String()
			if prefix != "" {
				p = prefix + "." + p
			}
			if v.IsObject() {
				walk(p, v)
			} else {
				out[p] = v.Value()
			}
			return true
		})
	}
	walk("", gjson.ParseBytes(doc))
	return out
}

// gjsonPath escapes path syntax that can appear inside provider names
// and model ids.
func gjsonPath(path string) string {
	r := strings.NewReplacer("*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(path)
}

// Sanitize returns a deep copy with provider and search credentials masked.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.General.ProviderOrder = append([]string(nil), cfg.General.ProviderOrder...)
	out.Providers = make(map[string]ProviderConfig, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		pc.APIKey = maskSecret(pc.APIKey)
		if pc.Temperature != nil {
			t := *pc.Temperature
			pc.Temperature = &t
		}
		if pc.Headers != nil {
			h := make(map[string]string, len(pc.Headers))
			for k, v := range pc.Headers {
				h[k] = v
			}
			pc.Headers = h
		}
		out.Providers[name] = pc
	}
	out.Search.GoogleAPIKey = maskSecret(cfg.Search.GoogleAPIKey)
	return &out
}

// maskSecret keeps a 4-character prefix and suffix of long secrets so they
// stay recognisable; short ones are hidden entirely.
func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}
