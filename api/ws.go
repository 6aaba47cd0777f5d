package api

import (
	"io"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream upgrades the request to a websocket connection and streams
// every committed state-change event (wallet updates, order book deltas,
// task transitions) to the client as JSON frames until it disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("upgrading websocket connection: %v", err)
		return
	}
	defer conn.Close()

	log.Debugf("opened event stream to %s", conn.RemoteAddr())
	go discardReads(conn)

	for ev := range s.State.Subscribe() {
		if err := conn.WriteJSON(ev); err != nil {
			if websocket.IsUnexpectedCloseError(err) || err == io.ErrUnexpectedEOF {
				return
			}
			log.Debugf("writing event to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

// discardReads drains and ignores whatever the client sends, since this is
// a server-push-only stream; without a reader, gorilla/websocket never
// notices the peer closing the connection and the write loop above would
// spin forever writing into a dead socket.
func discardReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			conn.Close()
			return
		}
	}
}
