package proxy

import (
	"net/http"
	"strings"

	"github.com/iTrooz/dealership-client/internal/cache/httpcache"
	"github.com/iTrooz/dealership-client/internal/config"
)

// Rule interface for matching requests against caching rules
type Rule interface {
	Match(requ *http.Request) bool
}

// ConfigRule implements Rule interface for config-based rules
type ConfigRule struct {
	config.CacheRule
}

// Match checks if a request matches this rule
func (r *ConfigRule) Match(requ *http.Request) bool {
	// Check if URL starts with base URI
	targetURL := httpcache.DescriptorFromRequest(requ).URL
	if !strings.HasPrefix(targetURL, r.BaseURI) {
		return false
	}

	// No methods listed means any method
	if len(r.Methods) == 0 {
		return true
	}
	for _, m := range r.Methods {
		if strings.EqualFold(m, requ.Method) {
			return true
		}
	}
	return false
}

func rulesFromConfig(cfg config.RulesConfig) []Rule {
	rules := make([]Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, &ConfigRule{CacheRule: r})
	}
	return rules
}
