// Package web exposes placed widget instances over HTTP: snapshot JSON,
// an HTML rendering, preview screenshots and the host-side events
// (refresh requests, removals, deferred actions, settings).
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"schedwidget/internal/capture"
	"schedwidget/internal/config"
	"schedwidget/internal/host"
	"schedwidget/internal/instance"
	appLog "schedwidget/internal/log"
	"schedwidget/internal/widget"
)

// Widgets receives host events for widget instances.
type Widgets interface {
	Refresh(id instance.ID)
	Removed(ids ...instance.ID)
}

// CaptureFunc writes a PNG screenshot of a page.
type CaptureFunc func(ctx context.Context, opts capture.Options) error

// Server is the HTTP host surface.
type Server struct {
	cfg     *config.Config
	store   instance.Store
	host    *host.Memory
	widgets Widgets
	router  *mux.Router
	page    *template.Template
	capture CaptureFunc
}

//go:embed templates/widget.html
var templates embed.FS

var pageTemplate = template.Must(template.ParseFS(templates, "templates/widget.html"))

// NewServer constructs a Server. Previews are captured with headless
// Chromium.
func NewServer(cfg *config.Config, store instance.Store, h *host.Memory, widgets Widgets) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		host:    h,
		widgets: widgets,
		router:  mux.NewRouter(),
		page:    pageTemplate,
		capture: capture.WidgetPNG,
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves on cfg.Listen until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="schedwidget", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/widgets").Subrouter()
	api.HandleFunc("/remove", s.handleRemoveMany).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", s.handleRemove).Methods(http.MethodDelete)
	api.HandleFunc("/{id:[0-9]+}/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}/config", s.handleGetConfig).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}/config", s.handlePutConfig).Methods(http.MethodPut)
	api.HandleFunc("/{id:[0-9]+}/actions/{region}", s.handleAction).Methods(http.MethodPost)

	s.router.HandleFunc("/widgets/{id:[0-9]+}", s.handlePage).Methods(http.MethodGet)
	s.router.HandleFunc("/widgets/{id:[0-9]+}/preview.png", s.handlePreview).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// snapshotResponse is the JSON shape of GET /api/widgets/{id}.
type snapshotResponse struct {
	Version  uint64          `json:"version"`
	Snapshot widget.Snapshot `json:"snapshot"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	snap, ok := s.host.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "widget has not been rendered yet")
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Version: s.host.Version(id), Snapshot: snap})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	s.widgets.Refresh(id)
	writeJSON(w, http.StatusAccepted, map[string]any{"instance": id, "status": "refreshing"})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	s.remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// removeRequest is the body of POST /api/widgets/remove.
type removeRequest struct {
	IDs []instance.ID `json:"ids"`
}

func (s *Server) handleRemoveMany(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.remove(req.IDs...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) remove(ids ...instance.ID) {
	s.widgets.Removed(ids...)
	s.host.Forget(ids...)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	cfg, err := s.store.Get(id)
	if err != nil {
		appLog.Error("instance config read failed", err, "instance", id)
		writeError(w, http.StatusInternalServerError, "failed to read widget config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handlePutConfig saves settings for an instance and refreshes it so the
// new settings show immediately.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	var cfg instance.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	cfg.Customized = true
	if err := s.store.Put(id, cfg); err != nil {
		appLog.Error("instance config write failed", err, "instance", id)
		writeError(w, http.StatusInternalServerError, "failed to save widget config")
		return
	}
	saved, err := s.store.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read widget config")
		return
	}
	appLog.Info("widget settings saved", "instance", id, "group", saved.Group, "day", saved.Day, "theme", saved.Theme)
	s.widgets.Refresh(id)
	writeJSON(w, http.StatusOK, saved)
}

// handleAction runs the deferred action bound to a region, as a tap on
// the widget would.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	region := mux.Vars(r)["region"]
	a, err := s.host.Action(id, region)
	if err != nil {
		if errors.Is(err, host.ErrNoAction) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to look up action")
		return
	}

	switch a.Kind {
	case widget.ActionRefresh:
		s.widgets.Refresh(a.Instance)
		writeJSON(w, http.StatusAccepted, map[string]any{"instance": a.Instance, "status": "refreshing"})
	case widget.ActionOpenApp:
		http.Redirect(w, r, s.cfg.AppURL, http.StatusSeeOther)
	default:
		writeError(w, http.StatusNotImplemented, "unsupported action "+string(a.Kind))
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	// Unrendered instances show a pending page until the host asks for a
	// refresh; viewing never places an instance.
	snap, ok := s.host.Snapshot(id)
	data := pageData{Instance: id, Ready: ok}
	if ok {
		data.Template = snap.Template
		data.Root = s.viewTree(id, snap.Root, snap.Actions)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		appLog.Error("widget page render failed", err, "instance", id)
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	if _, ok := s.host.Snapshot(id); !ok {
		writeError(w, http.StatusNotFound, "widget has not been rendered yet")
		return
	}

	out := filepath.Join(s.cfg.PreviewDir(), id.String()+".png")
	opts := capture.Options{
		URL:        s.selfURL("/widgets/" + id.String()),
		OutputPath: out,
		Width:      s.cfg.Capture.Width,
		Height:     s.cfg.Capture.Height,
		Timeout:    s.cfg.Capture.Timeout,
	}
	if err := s.capture(r.Context(), opts); err != nil {
		appLog.Error("widget preview capture failed", err, "instance", id)
		writeError(w, http.StatusBadGateway, "failed to capture preview")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, out)
}

// selfURL points the capture browser back at this server.
func (s *Server) selfURL(path string) string {
	hostPort := s.cfg.Listen
	if h, p, err := net.SplitHostPort(hostPort); err == nil && (h == "" || h == "0.0.0.0" || h == "::") {
		hostPort = net.JoinHostPort("127.0.0.1", p)
	}
	u := url.URL{Scheme: "http", Host: hostPort, Path: path}
	if s.basicAuthEnabled() {
		u.User = url.UserPassword(s.cfg.BasicAuth.Username, s.cfg.BasicAuth.Password)
	}
	return u.String()
}

// pageData feeds templates/widget.html.
type pageData struct {
	Instance instance.ID
	Ready    bool
	Template widget.Variant
	Root     viewNode
}

// viewNode is a Node with the URL of its bound action, if any.
type viewNode struct {
	widget.Node
	Action   string
	Children []viewNode
}

func (s *Server) viewTree(id instance.ID, n widget.Node, actions []widget.Action) viewNode {
	v := viewNode{Node: n}
	for _, a := range actions {
		if a.Region == n.ID {
			v.Action = "/api/widgets/" + id.String() + "/actions/" + url.PathEscape(a.Region)
			break
		}
	}
	for _, c := range n.Children {
		v.Children = append(v.Children, s.viewTree(id, c, actions))
	}
	return v
}

func instanceID(w http.ResponseWriter, r *http.Request) (instance.ID, bool) {
	id, err := instance.ParseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid widget id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
