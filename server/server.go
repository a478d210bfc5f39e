// Package server exposes explorer sessions over a websocket and one shot renders over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"fractalexplorer/coordinator"
	"fractalexplorer/explorer"
	"fractalexplorer/export"
	"fractalexplorer/favourites"
	"fractalexplorer/fractal"

	"github.com/BrugadaSyndrome/bslogger"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

type Server struct {
	connections atomic.Uint64
	generator   *coordinator.Generator
	logger      bslogger.Logger
	mutex       sync.Mutex
	settings    explorer.Settings
	store       *favourites.Store
}

func NewServer(settings explorer.Settings, generator *coordinator.Generator, store *favourites.Store) (*Server, error) {
	if err := settings.Verify(); err != nil {
		return nil, err
	}
	if store == nil {
		var err error
		if store, err = favourites.Load(settings.FavouritesFile); err != nil {
			return nil, err
		}
	}
	return &Server{
		generator: generator,
		logger:    bslogger.NewLogger("Server", bslogger.Normal, nil),
		settings:  settings,
		store:     store,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/render.png", s.handleRender)
	return mux
}

// ListenAndServe serves until the context is done
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	s.logf("Listening on http://%s", address)

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logf(format string, values ...interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.logger.Infof(format, values...)
}

func (s *Server) warnf(format string, values ...interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.logger.Warningf(format, values...)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.warnf("Websocket accept: %s", err)
		return
	}
	defer c.CloseNow()

	name := fmt.Sprintf("ws-%d", s.connections.Add(1))
	session, err := explorer.NewSession(name, s.settings, s.generator, s.store)
	if err != nil {
		_ = c.Close(websocket.StatusInternalError, err.Error())
		return
	}
	s.logf("Viewer %s connected from %s", name, r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	v := &viewer{
		conn:    c,
		ctx:     ctx,
		server:  s,
		session: session,
	}
	err = v.serve()
	cancel()
	v.renders.Wait()

	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		s.logf("Viewer %s disconnected", name)
		_ = c.Close(websocket.StatusNormalClosure, "")
		return
	}
	s.warnf("Viewer %s: %s", name, err)
}

// handleRender renders one image from query parameters. Missing parameters fall back to the server settings.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	request, err := s.requestFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stream := fmt.Sprintf("http-%d", s.connections.Add(1))
	img, err := s.generator.Render(r.Context(), stream, request)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	var b bytes.Buffer
	if err := export.Encode(&b, img, export.PNG); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(b.Bytes())
}

func (s *Server) requestFromQuery(r *http.Request) (fractal.RenderRequest, error) {
	q := r.URL.Query()
	defaults, err := s.settings.Viewport()
	if err != nil {
		return fractal.RenderRequest{}, err
	}
	constant, err := s.settings.Constant()
	if err != nil {
		return fractal.RenderRequest{}, err
	}

	floatParam := func(name string, fallback float64) (float64, error) {
		if q.Get(name) == "" {
			return fallback, nil
		}
		return strconv.ParseFloat(q.Get(name), 64)
	}
	intParam := func(name string, fallback int) (int, error) {
		if q.Get(name) == "" {
			return fallback, nil
		}
		return strconv.Atoi(q.Get(name))
	}

	mode := fractal.Mandelbrot
	if q.Get("mode") != "" {
		if mode, err = fractal.ParseMode(q.Get("mode")); err != nil {
			return fractal.RenderRequest{}, err
		}
	}
	request := fractal.RenderRequest{Mode: mode, Constant: constant, Viewport: defaults}
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"realStart", &request.Viewport.RealStart},
		{"realEnd", &request.Viewport.RealEnd},
		{"imagStart", &request.Viewport.ImagStart},
		{"imagEnd", &request.Viewport.ImagEnd},
		{"real", &request.Constant.Real},
		{"imag", &request.Constant.Imag},
	} {
		if *p.dst, err = floatParam(p.name, *p.dst); err != nil {
			return fractal.RenderRequest{}, fmt.Errorf("%s: %w", p.name, err)
		}
	}
	if request.Viewport.Width, err = intParam("width", defaults.Width); err != nil {
		return fractal.RenderRequest{}, fmt.Errorf("width: %w", err)
	}
	if request.Viewport.Height, err = intParam("height", defaults.Height); err != nil {
		return fractal.RenderRequest{}, fmt.Errorf("height: %w", err)
	}
	if request.MaxIterations, err = intParam("maxIterations", s.settings.MaxIterations); err != nil {
		return fractal.RenderRequest{}, fmt.Errorf("maxIterations: %w", err)
	}
	if err := s.settings.CheckSize(request.Viewport.Width, request.Viewport.Height); err != nil {
		return fractal.RenderRequest{}, err
	}
	if request.MaxIterations > explorer.MaxIterationsLimit {
		return fractal.RenderRequest{}, fmt.Errorf("%w: %d is above %d", fractal.ErrInvalidIterationCount, request.MaxIterations, explorer.MaxIterationsLimit)
	}
	return request, request.Validate()
}

type viewer struct {
	conn    *websocket.Conn
	ctx     context.Context
	renders sync.WaitGroup
	server  *Server
	session *explorer.Session
}

func (v *viewer) serve() error {
	v.render(PanelMandelbrot)
	v.render(PanelJulia)

	for {
		var command Command
		if err := wsjson.Read(v.ctx, v.conn, &command); err != nil {
			return err
		}
		v.handle(command)
	}
}

func (v *viewer) send(reply Reply) {
	if err := wsjson.Write(v.ctx, v.conn, reply); err != nil && v.ctx.Err() == nil {
		v.server.warnf("Writing %s reply: %s", reply.Type, err)
	}
}

func (v *viewer) state() Reply {
	return Reply{
		Type:          ReplyState,
		Constant:      v.session.Constant().String(),
		LiveUpdates:   v.session.LiveUpdates(),
		MaxIterations: v.session.Mandelbrot().MaxIterations,
	}
}

// render starts a render of the panel. A render that gets superseded by a newer one sends nothing.
func (v *viewer) render(panel string) {
	v.renders.Add(1)
	go func() {
		defer v.renders.Done()

		var img *image.RGBA
		var request fractal.RenderRequest
		var err error
		if panel == PanelJulia {
			request = v.session.Julia()
			img, err = v.session.RenderJulia(v.ctx)
		} else {
			request = v.session.Mandelbrot()
			img, err = v.session.RenderMandelbrot(v.ctx)
		}
		if errors.Is(err, coordinator.ErrSuperseded) || errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			v.send(errorReply("render", err))
			return
		}

		var b bytes.Buffer
		if err := export.Encode(&b, img, export.PNG); err != nil {
			v.send(errorReply("render", err))
			return
		}
		v.send(Reply{Type: ReplyImage, Panel: panel, Image: b.Bytes(), Request: request.String()})
	}()
}

func (v *viewer) handle(command Command) {
	switch command.Type {
	case "render":
		v.render(PanelMandelbrot)
		v.render(PanelJulia)

	case "axes":
		if err := v.session.UpdateAxes(command.RealStart, command.RealEnd, command.ImagStart, command.ImagEnd, command.MaxIterations); err != nil {
			v.send(errorReply(command.Type, err))
			return
		}
		v.render(PanelMandelbrot)
		v.render(PanelJulia)

	case "zoom":
		if err := v.session.Zoom(command.Selection()); err != nil {
			v.send(errorReply(command.Type, err))
			return
		}
		v.render(PanelMandelbrot)

	case "reset":
		v.session.Reset()
		v.send(v.state())
		v.render(PanelMandelbrot)
		v.render(PanelJulia)

	case "click":
		v.session.Click(command.X, command.Y)
		v.send(v.state())
		v.render(PanelJulia)

	case "hover":
		if _, changed := v.session.Hover(command.X, command.Y); changed {
			v.send(v.state())
			v.render(PanelJulia)
		}

	case "constant":
		if err := v.session.SetConstant(fractal.Complex{Real: command.Real, Imag: command.Imag}); err != nil {
			v.send(errorReply(command.Type, err))
			return
		}
		v.send(v.state())
		v.render(PanelJulia)

	case "favourite":
		if err := v.session.AddFavourite(); err != nil {
			v.send(errorReply(command.Type, err))
			return
		}
		v.send(Reply{Type: ReplyFavourites, Favourites: constantStrings(v.session.Favourites())})

	case "favourites":
		v.send(Reply{Type: ReplyFavourites, Favourites: constantStrings(v.session.Favourites())})

	case "select":
		if _, err := v.session.SelectFavourite(command.Index); err != nil {
			v.send(errorReply(command.Type, err))
			return
		}
		v.send(v.state())
		v.render(PanelJulia)

	case "export":
		// runs in the background so a long render does not block the read loop
		v.renders.Add(1)
		go func() {
			defer v.renders.Done()
			path, err := v.session.ExportJulia(v.ctx)
			if err != nil {
				if !errors.Is(err, coordinator.ErrSuperseded) {
					v.send(errorReply(command.Type, err))
				}
				return
			}
			v.send(Reply{Type: ReplyExported, Path: path})
		}()

	case "state":
		v.send(v.state())

	default:
		v.send(errorReply(command.Type, errors.New("unknown command")))
	}
}
