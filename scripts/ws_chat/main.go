package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wireroom/internal/proto"
)

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	ref := flag.String("ref", "cli-user", "identity reference: join token or username")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	joinPayload, err := json.Marshal(proto.JoinData{IdentityRef: *ref, Protocol: proto.ProtocolVersion})
	if err != nil {
		return fmt.Errorf("marshal join: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeJoin, Data: joinPayload}); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *ref)
	fmt.Println("Type messages and press Enter to send. /who lists users, /leave exits. Ctrl+C to exit.")

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

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if out.Error != nil {
			fmt.Printf("! %s: %s\n", out.Error.Code, out.Error.Msg)
			continue
		}

		switch out.Event {
		case proto.EventNameJoinSuccess:
			var evt proto.EventJoinSuccess
			if unmarshal(out, &evt) {
				fmt.Printf("[%s] joined as %s\n", evt.Room, evt.Identity.DisplayName)
			}
		case proto.EventNameJoinError:
			var evt proto.EventJoinError
			if unmarshal(out, &evt) {
				fmt.Printf("join rejected: %s\n", evt.Reason)
			}
		case proto.EventNameHistory:
			var evt proto.EventHistory
			if unmarshal(out, &evt) {
				for _, ev := range evt.Events {
					printChatEvent(ev, false)
				}
			}
		case proto.EventNameNewMessage:
			var evt proto.EventNewMessage
			if unmarshal(out, &evt) {
				printChatEvent(evt.Event, evt.IsSelf)
			}
		case proto.EventNameUserJoined:
			var evt proto.EventUserJoined
			if unmarshal(out, &evt) {
				fmt.Printf("[%s] %s joined\n", evt.Room, evt.Identity.DisplayName)
			}
		case proto.EventNameUserLeft:
			var evt proto.EventUserLeft
			if unmarshal(out, &evt) {
				fmt.Printf("[%s] %s left\n", evt.Room, evt.Identity.DisplayName)
			}
		case proto.EventNamePresence:
			var evt proto.EventPresence
			if unmarshal(out, &evt) {
				online := make([]string, 0, len(evt.Entries))
				for _, e := range evt.Entries {
					if e.IsOnline {
						online = append(online, e.DisplayName)
					}
				}
				fmt.Printf("online (%d/%d): %s\n", len(online), len(evt.Entries), strings.Join(online, ", "))
			}
		default:
			fmt.Printf("event=%s data=%s\n", out.Event, string(out.Data))
		}
	}
}

func unmarshal(out frame, dst any) bool {
	if err := json.Unmarshal(out.Data, dst); err != nil {
		log.Printf("unmarshal %s: %v", out.Event, err)
		return false
	}
	return true
}

func printChatEvent(ev proto.ChatEvent, self bool) {
	author := ev.DisplayName
	if self {
		author += " (me)"
	}
	fmt.Printf("#%d %s %s: %s\n", ev.SeqID, ev.CreatedAt.Local().Format("15:04:05"), author, ev.Body)
	if len(ev.CommandResult) > 0 {
		fmt.Printf("    [%s] %s\n", ev.Kind, string(ev.CommandResult))
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

			var inbound proto.Inbound
			switch text {
			case "/who":
				inbound = proto.Inbound{Type: proto.InboundTypePresence}
			case "/leave":
				inbound = proto.Inbound{Type: proto.InboundTypeLeave}
			default:
				payload, err := json.Marshal(proto.MessageData{Body: text})
				if err != nil {
					log.Printf("marshal message: %v", err)
					return
				}
				inbound = proto.Inbound{Type: proto.InboundTypeMessage, Data: payload}
			}
			if err := wsjson.Write(ctx, conn, inbound); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
