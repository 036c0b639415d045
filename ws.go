package main

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/scribblebotics/goscribble/comms"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// CommandHandler runs the wire command protocol: one JSON Cmd in, one JSON
// Result out, for the life of the connection.
func CommandHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}
	defer conn.Close()

	for {
		var cmd comms.Cmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Println("read:", err)
			}
			return
		}

		res := ENV.Conductor.ProcessCommand(cmd)
		if err := conn.WriteJSON(res); err != nil {
			log.Println("write:", err)
			return
		}
	}
}

// TelemetryHandler registers the client for state frames until it hangs up.
func TelemetryHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}

	ENV.Conductor.AddClient(conn)
	defer func() {
		ENV.Conductor.RemoveClient(conn)
		conn.Close()
	}()

	// frames flow from the conductor; reads only detect the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
