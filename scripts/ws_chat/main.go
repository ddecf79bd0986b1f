package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/campuschat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	username := flag.String("username", "", "account username")
	password := flag.String("password", "", "account password")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	token, err := login(ctx, *server, *username, *password)
	if err != nil {
		return err
	}

	wsURL, err := websocketURL(*server, token)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	fmt.Printf("Connected to %s as %s\n", *server, *username)
	fmt.Println("Type messages and press Enter to send. /who lists participants. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func login(ctx context.Context, server, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed (%d): %s", resp.StatusCode, out.Error)
	}
	return out.Token, nil
}

func websocketURL(server, token string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch status := websocket.CloseStatus(err); status {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			case -1:
				log.Printf("read error: %v", err)
			default:
				log.Printf("connection closed by server: %v", err)
			}
			return
		}

		switch f.Event {
		case proto.EventMessage:
			var msg proto.Message
			if err := json.Unmarshal(f.Data, &msg); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			fmt.Printf("[%s] %s (%s): %s\n", msg.CreatedAt.Local().Format("15:04"), msg.User.Name, msg.User.Role, msg.Content)
		case proto.EventUpdateParticipants:
			var roster []proto.Participant
			if err := json.Unmarshal(f.Data, &roster); err != nil {
				log.Printf("unmarshal participants: %v", err)
				continue
			}
			names := make([]string, 0, len(roster))
			for _, p := range roster {
				names = append(names, p.Name)
			}
			fmt.Printf("online: %s\n", strings.Join(names, ", "))
		case proto.EventUserTyping, proto.EventUserStopTyping:
			var typing proto.TypingData
			if err := json.Unmarshal(f.Data, &typing); err != nil {
				continue
			}
			if f.Event == proto.EventUserTyping {
				fmt.Printf("%s is typing...\n", typing.User)
			}
		case proto.EventError:
			var e proto.Error
			if err := json.Unmarshal(f.Data, &e); err != nil {
				log.Printf("unmarshal error: %v", err)
				continue
			}
			fmt.Printf("error [%s]: %s\n", e.Code, e.Error)
		default:
			fmt.Printf("event=%s data=%s\n", f.Event, f.Data)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			inbound := proto.Inbound{Event: proto.EventMessage}
			if text == "/who" {
				inbound.Event = proto.EventRequestParticipants
			} else {
				payload, err := json.Marshal(proto.MessageData{Content: text})
				if err != nil {
					log.Printf("marshal message: %v", err)
					return
				}
				inbound.Data = payload
			}

			if err := wsjson.Write(ctx, conn, inbound); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
