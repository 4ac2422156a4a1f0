package proxy

import (
	"fmt"
	"net/http"

	"github.com/elazarl/goproxy"
	"github.com/sirupsen/logrus"

	"github.com/iTrooz/dealership-client/internal/cache/httpcache"
	"github.com/iTrooz/dealership-client/internal/config"
)

// Server represents the caching proxy server
type Server struct {
	config      *config.Config
	proxy       *goproxy.ProxyHttpServer
	interceptor *httpcache.Interceptor
	cache       *httpcache.Cache
	rules       []Rule
	certs       *certStore
}

// New creates a new proxy server
func New(cfg *config.Config) (*Server, error) {
	cacheTTL, err := cfg.GetCacheTTL()
	if err != nil {
		return nil, fmt.Errorf("invalid cache TTL: %w", err)
	}

	s := &Server{
		config: cfg,
		proxy:  goproxy.NewProxyHttpServer(),
		rules:  rulesFromConfig(cfg.Rules),
		certs:  newCertStore(),
	}
	s.interceptor = httpcache.NewInterceptor(nil, httpcache.Config{
		TTL:    cacheTTL,
		Filter: s.filter,
	})
	s.cache = s.interceptor.Cache()

	s.proxy.Logger = logrus.StandardLogger()
	s.proxy.Verbose = logrus.IsLevelEnabled(logrus.DebugLevel)
	s.proxy.NonproxyHandler = s.adminRouter()

	if cfg.Server.HTTPS.Enabled {
		if err := s.setupHTTPSProxyHandler(); err != nil {
			return nil, fmt.Errorf("setting up TLS interception: %w", err)
		}
	}

	s.proxy.OnRequest().DoFunc(s.handleRequest)
	s.proxy.OnResponse().DoFunc(s.handleResponse)

	return s, nil
}

func (s *Server) filter(requ *http.Request) bool {
	return s.config.Cache.Enabled && s.shouldBeCached(requ)
}

// GetProxy returns the proxy handler
func (s *Server) GetProxy() *goproxy.ProxyHttpServer {
	return s.proxy
}

// Cache returns the namespace of the proxy's cache
func (s *Server) Cache() *httpcache.Cache {
	return s.cache
}

// Addr returns the listen address of the proxy
func (s *Server) Addr() string {
	return fmt.Sprintf(":%d", s.config.Server.Port)
}

// Start starts the proxy server
func (s *Server) Start() error {
	logrus.Infof("Starting caching proxy on port %d", s.config.Server.Port)
	logrus.Infof("Cache TTL: %s", s.config.Cache.TTL)
	logrus.Infof("Rules mode: %s", s.config.Rules.Mode)
	if !s.config.Cache.Enabled {
		logrus.Warnf("Cache disabled, every request is forwarded")
	}

	return http.ListenAndServe(s.Addr(), s.proxy)
}
