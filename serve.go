package concordion

import (
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"

	"github.com/concordion-go/concordion/cspec"
)

// wsUpgrader is the package-level gorilla/websocket upgrader for the
// live-reload socket.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the dev server (C13): it lists the specification documents
// under a Runner's root, runs them on demand against a supplied fixture,
// and serves the embedded resource bundle, following the same
// Handler-with-injected-logger shape as the teacher's HTTP page server.
type Server struct {
	Runner *Runner
	Logger *slog.Logger

	mu      sync.Mutex
	docMu   map[string]*sync.Mutex
	last    map[string]*cspec.Result
	watcher *fsnotify.Watcher
	sockets map[*websocket.Conn]struct{}
	sockMu  sync.Mutex
}

// NewServer returns a Server for runner. It starts watching runner.Root for
// changes immediately so a browser tab connected to /ws gets a reload
// notice the moment a file directly in runner.Root is written, created,
// removed or renamed. Subdirectories are not watched.
func NewServer(runner *Runner, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("start file watcher: %w", err)
	}
	if err := watcher.Add(runner.Root); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", runner.Root, err)
	}

	s := &Server{
		Runner:  runner,
		Logger:  log,
		docMu:   make(map[string]*sync.Mutex),
		last:    make(map[string]*cspec.Result),
		watcher: watcher,
		sockets: make(map[*websocket.Conn]struct{}),
	}
	go s.watchLoop()
	return s, nil
}

// Close stops the file watcher and closes any open websocket connections.
func (s *Server) Close() error {
	s.sockMu.Lock()
	for conn := range s.sockets {
		_ = conn.Close()
	}
	s.sockMu.Unlock()
	return s.watcher.Close()
}

func (s *Server) watchLoop() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.Logger.Debug("spec directory changed", "event", ev.String())
			s.broadcastReload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.Logger.Warn("file watcher error", "error", err)
		}
	}
}

func (s *Server) broadcastReload() {
	s.sockMu.Lock()
	defer s.sockMu.Unlock()
	for conn := range s.sockets {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("reload")); err != nil {
			_ = conn.Close()
			delete(s.sockets, conn)
		}
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/":
		s.listDocuments(w, r)
	case r.URL.Path == "/ws":
		s.serveWebSocket(w, r)
	case strings.HasPrefix(r.URL.Path, "/_assets/"):
		s.serveAsset(w, r)
	case strings.HasSuffix(r.URL.Path, ".html"):
		s.runDocument(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.findDocuments()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sort.Strings(docs)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><ul>")
	s.mu.Lock()
	for _, d := range docs {
		summary := ""
		if res, ok := s.last[d]; ok {
			summary = fmt.Sprintf(" (%d success, %d failure, %d missing, %d exception)", res.SuccessCount, res.FailureCount, res.MissingCount, res.ExceptionCount)
		}
		fmt.Fprintf(w, "<li><a href=\"/%s\">%s</a>%s</li>", html.EscapeString(d), html.EscapeString(d), html.EscapeString(summary))
	}
	s.mu.Unlock()
	fmt.Fprint(w, "</ul></body></html>")
}

func (s *Server) findDocuments() ([]string, error) {
	var docs []string
	err := fs.WalkDir(os.DirFS(s.Runner.Root), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".html") {
			docs = append(docs, p)
		}
		return nil
	})
	return docs, err
}

func (s *Server) runDocument(w http.ResponseWriter, r *http.Request) {
	relPath := strings.TrimPrefix(r.URL.Path, "/")
	if s.Runner.Resolver == nil {
		http.Error(w, "no fixture resolver configured", http.StatusInternalServerError)
		return
	}

	mu := s.docMutex(relPath)
	mu.Lock()
	defer mu.Unlock()

	stem := strings.TrimSuffix(relPath, ".html")
	fixture, err := s.Runner.Resolver(stem)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	b, result, err := s.Runner.Render(relPath, fixture)
	if err != nil {
		s.Logger.Error("run document", "path", relPath, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.last[relPath] = result
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

func (s *Server) docMutex(relPath string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.docMu[relPath]
	if !ok {
		mu = &sync.Mutex{}
		s.docMu[relPath] = mu
	}
	return mu
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	if s.Runner.Resources == nil {
		http.NotFound(w, r)
		return
	}
	sub, err := s.Runner.Resources.FS()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/_assets/")
	http.ServeFileFS(w, r, sub, path.Clean(name))
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("websocket upgrade", "error", err)
		return
	}
	s.sockMu.Lock()
	s.sockets[conn] = struct{}{}
	s.sockMu.Unlock()

	// drain incoming messages (none expected) until the client disconnects,
	// at which point the read loop's error lets us clean up the socket.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.sockMu.Lock()
			delete(s.sockets, conn)
			s.sockMu.Unlock()
			_ = conn.Close()
			return
		}
	}
}
