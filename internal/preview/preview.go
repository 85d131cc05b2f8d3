// Package preview mirrors the panel to web browsers over a websocket.
package preview

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/ivlev/pihat/internal/surface"
	"github.com/ivlev/pihat/internal/system"
)

// Frames queued per client. A slow client loses frames rather than
// holding up the display.
const clientQueue = 2

const writeWait = 2 * time.Second

// Server is a Surface whose frames are streamed as JPEG to every
// connected browser.
type Server struct {
	fb      *surface.Framebuffer
	quality int
	log     log.FieldLogger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewServer creates a w x h preview surface. quality is the JPEG quality,
// 1 to 100.
func NewServer(w, h, quality int) *Server {
	s := &Server{
		fb:      surface.NewFramebuffer(w, h),
		quality: quality,
		log:     log.StandardLogger(),
		clients: make(map[*client]struct{}),
	}
	s.fb.OnDraw(func(image.Rectangle) { s.broadcast() })
	return s
}

func (s *Server) Bounds() image.Rectangle { return s.fb.Bounds() }

func (s *Server) Draw(frame image.Image, at image.Point) error {
	return s.fb.Draw(frame, at)
}

// Framebuffer exposes the mirrored panel memory.
func (s *Server) Framebuffer() *surface.Framebuffer { return s.fb }

// Clients counts connected browsers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Handler serves the viewer page on / and the frame stream on /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(viewerHTML))
	})
	mux.HandleFunc("/ws", s.serveWS)
	return mux
}

// ListenAndServe serves Handler on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("preview listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close disconnects every client.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		c.close()
	}
	return nil
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("preview upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientQueue)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	if s.last != nil {
		c.send <- s.last
	}
	s.mu.Unlock()
	s.log.WithField("remote", r.RemoteAddr).Debug("preview client connected")

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop discards client messages and notices disconnects.
func (s *Server) readLoop(c *client) {
	defer s.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			s.drop(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
}

func (s *Server) broadcast() {
	snap := s.fb.Snapshot()
	var buf bytes.Buffer
	err := jpeg.Encode(&buf, snap, &jpeg.Options{Quality: s.quality})
	system.PutImage(snap)
	if err != nil {
		s.log.WithError(err).Warn("preview encode failed")
		return
	}
	frame := buf.Bytes()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = frame
	for c := range s.clients {
		select {
		case c.send <- frame:
		default:
		}
	}
}

const viewerHTML = `<!doctype html>
<html>
<head><title>pihat preview</title>
<style>body{background:#111;margin:0;display:flex;height:100vh;align-items:center;justify-content:center}
img{image-rendering:pixelated;width:min(100vw,133vh)}</style>
</head>
<body><img id="panel" alt="panel">
<script>
const img = document.getElementById("panel");
function connect() {
  const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.binaryType = "blob";
  ws.onmessage = (ev) => {
    const url = URL.createObjectURL(ev.data);
    img.onload = () => URL.revokeObjectURL(url);
    img.src = url;
  };
  ws.onclose = () => setTimeout(connect, 1000);
}
connect();
</script>
</body>
</html>
`
