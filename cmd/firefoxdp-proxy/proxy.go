package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	incomingBufferSize = 10 * 1024 * 1024
	outgoingBufferSize = 25 * 1024 * 1024
)

var wsUpgrader = &websocket.Upgrader{
	ReadBufferSize:  incomingBufferSize,
	WriteBufferSize: outgoingBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var wsDialer = &websocket.Dialer{
	ReadBufferSize:  outgoingBufferSize,
	WriteBufferSize: incomingBufferSize,
}

// proxy forwards BiDi sessions to remote.
type proxy struct {
	remote  string
	noLog   bool
	logMask string

	// out receives the log of every connection.
	out io.Writer

	conns atomic.Int64
}

func (p *proxy) handler() http.Handler {
	mux := http.NewServeMux()
	simplep := httputil.NewSingleHostReverseProxy(&url.URL{Scheme: "http", Host: p.remote})
	mux.Handle("/", simplep)
	mux.HandleFunc("/session", p.serveSession)
	mux.HandleFunc("/session/", p.serveSession)
	return mux
}

func (p *proxy) serveSession(res http.ResponseWriter, req *http.Request) {
	id := p.conns.Add(1)
	f, logger, err := p.createLog(id)
	if err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	if f != nil {
		defer f.Close()
	}
	logger.Infof("---------- connection from %s ----------", req.RemoteAddr)

	endpoint := "ws://" + p.remote + req.URL.Path

	// connect outgoing websocket
	logger.Infof("connecting to %s", endpoint)
	out, pres, err := wsDialer.Dial(endpoint, nil)
	if err != nil {
		msg := fmt.Sprintf("could not connect to %s, got: %v", endpoint, err)
		logger.Error(msg)
		http.Error(res, msg, http.StatusBadGateway)
		return
	}
	defer pres.Body.Close()
	defer out.Close()

	logger.Infof("connected to %s", endpoint)

	// connect incoming websocket
	logger.Infof("upgrading connection on %s", req.RemoteAddr)
	in, err := wsUpgrader.Upgrade(res, req, nil)
	if err != nil {
		// Upgrade already replied to the client.
		logger.Errorf("could not upgrade websocket from %s, got: %v", req.RemoteAddr, err)
		return
	}
	defer in.Close()
	logger.Infof("upgraded connection on %s", req.RemoteAddr)

	g, ctx := errgroup.WithContext(req.Context())
	g.Go(func() error { return proxyWS(ctx, logger, "<-", in, out) })
	g.Go(func() error { return proxyWS(ctx, logger, "->", out, in) })
	go func() {
		// unblock the other direction once one side is done
		<-ctx.Done()
		in.Close()
		out.Close()
	}()
	if err := g.Wait(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Debugf("connection ended: %v", err)
	}
	logger.Infof("---------- closing %s ----------", req.RemoteAddr)
}

// proxyWS copies messages from in to out, logging them with prefix.
func proxyWS(ctx context.Context, logger logrus.FieldLogger, prefix string, in, out *websocket.Conn) error {
	for {
		select {
		default:
			mt, buf, err := in.ReadMessage()
			if err != nil {
				return err
			}

			logger.Infof("%s %s", prefix, string(buf))

			if err := out.WriteMessage(mt, buf); err != nil {
				return err
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// createLog returns the logger of connection id, which also writes to a file
// unless file logging is disabled.
func (p *proxy) createLog(id int64) (io.Closer, *logrus.Entry, error) {
	var f io.Closer
	var w io.Writer = os.Stdout
	if p.out != nil {
		w = p.out
	}
	if !p.noLog && p.logMask != "" {
		name := fmt.Sprintf(p.logMask, id)
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			return nil, nil, err
		}
		l, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		f = l
		w = io.MultiWriter(w, l)
	}
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	return f, logger.WithField("conn", id), nil
}
