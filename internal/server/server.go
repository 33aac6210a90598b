package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"font-metrics/internal/domain"
)

// PublishedPrefix is the URL path under which published font files are served.
const PublishedPrefix = "/_fonts/"

//go:embed pages
var pages embed.FS

// Server owns the HTTP listener for one pipeline. It is not a process-wide
// singleton: the orchestrator creates and stops it.
type Server struct {
	mu        sync.Mutex
	srv       *http.Server
	port      int
	published map[string]string
	listen    func(network, address string) (net.Listener, error)
	abs       func(path string) (string, error)
}

// New constructs a server using the real network stack.
func New() *Server {
	return &Server{
		published: map[string]string{},
		listen:    net.Listen,
		abs:       filepath.Abs,
	}
}

// Start binds cfg.ServerPort and begins serving. Calling Start on a running
// server returns immediately without rebinding.
func (s *Server) Start(ctx context.Context, cfg domain.RunConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		tracer().Debugf("content server already running on port %d", s.port)
		return nil
	}

	router, err := s.router(cfg)
	if err != nil {
		return err
	}

	ln, err := s.listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.ServerPort))
	if err != nil {
		tracer().Errorf("cannot bind port %d: %v", cfg.ServerPort, err)
		return &domain.ServerBindError{Port: cfg.ServerPort, Err: err}
	}

	s.port = cfg.ServerPort
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = addr.Port
	}
	s.srv = &http.Server{Handler: router}

	go func(srv *http.Server, ln net.Listener) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			tracer().Errorf("content server stopped: %v", err)
		}
	}(s.srv, ln)

	tracer().Infof("content server is running on port %d", s.port)
	return nil
}

// Stop closes the listening socket. It is a no-op when the server was never
// started.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return nil
	}

	err := s.srv.Close()
	s.srv = nil
	s.published = map[string]string{}
	tracer().Infof("content server on port %d closed", s.port)
	return err
}

// Running reports whether the server currently listens.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

// URL returns the measurement page URL, or "" when the server is stopped.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return ""
	}
	return fmt.Sprintf("http://127.0.0.1:%d/", s.port)
}

// Publish serves the local file at localPath under a fresh URL path below
// PublishedPrefix and returns that path.
func (s *Server) Publish(localPath string) (string, error) {
	absPath, err := s.abs(localPath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", localPath, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	token := uuid.NewString() + strings.ToLower(filepath.Ext(absPath))
	s.published[token] = absPath
	tracer().Debugf("published %s as %s%s", absPath, PublishedPrefix, token)
	return PublishedPrefix + token, nil
}

// router builds the echo instance serving the page, the mounts and the
// published files.
func (s *Server) router(cfg domain.RunConfig) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET(PublishedPrefix+":token", s.servePublished)

	for _, mount := range cfg.AdditionalMounts {
		root, err := s.abs(mount.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("resolve mount %s: %w", mount.LocalPath, err)
		}
		prefix := MountPrefix(mount.Alias)
		e.Static(prefix, root)
		tracer().Debugf("mounted %s at %s", root, prefix)
	}

	page, err := PageFS(cfg.PageDir)
	if err != nil {
		return nil, err
	}
	e.StaticFS("/", page)

	return e, nil
}

// servePublished streams one published font file.
func (s *Server) servePublished(c echo.Context) error {
	s.mu.Lock()
	file, ok := s.published[c.Param("token")]
	s.mu.Unlock()

	if !ok {
		return echo.ErrNotFound
	}
	return c.File(file)
}

// MountPrefix normalizes a mount alias to the "/name/" form used for routing.
func MountPrefix(alias string) string {
	clean := path.Clean("/" + strings.Trim(strings.TrimSpace(alias), "/"))
	if clean == "/" {
		return clean
	}
	return clean + "/"
}

// PageFS returns the measurement page file system: the embedded page when
// dir is empty, the directory otherwise.
func PageFS(dir string) (fs.FS, error) {
	if strings.TrimSpace(dir) == "" {
		return fs.Sub(pages, "pages")
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("measurement page directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("measurement page directory %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}
