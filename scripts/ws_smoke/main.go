package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wireroom/internal/proto"
)

// frame is proto.Outbound with the payload kept raw.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	ref := flag.String("ref", "tester", "identity reference: join token or username")
	text := flag.String("text", "hello from smoke test", "message body to send")
	timeout := flag.Duration("timeout", 15*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := sendInbound(ctx, conn, proto.InboundTypeJoin, proto.JoinData{IdentityRef: *ref, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}

	joined := false
	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received outbound: type=%s event=%s\n", out.Type, out.Event)

		if out.Error != nil {
			fmt.Printf("Error: %s %s\n", out.Error.Code, out.Error.Msg)
			continue
		}

		switch out.Event {
		case proto.EventNameJoinError:
			var evt proto.EventJoinError
			_ = json.Unmarshal(out.Data, &evt)
			return fmt.Errorf("join rejected: %s (%s)", evt.Reason, evt.Code)
		case proto.EventNameHistory:
			var evt proto.EventHistory
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				return fmt.Errorf("unmarshal history: %w", err)
			}
			fmt.Printf("History: room=%s events=%d\n", evt.Room, len(evt.Events))
			if !joined {
				joined = true
				if err := sendInbound(ctx, conn, proto.InboundTypeMessage, proto.MessageData{
					Body:            *text,
					ClientTimestamp: time.Now().UnixMilli(),
				}); err != nil {
					return err
				}
			}
		case proto.EventNameNewMessage:
			var evt proto.EventNewMessage
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				fmt.Printf("Raw data: %s\n", string(out.Data))
				return fmt.Errorf("unmarshal new_message: %w", err)
			}
			fmt.Printf("NewMessage: seq=%d author=%s kind=%s body=%q self=%v\n",
				evt.Event.SeqID, evt.Event.DisplayName, evt.Event.Kind, evt.Event.Body, evt.IsSelf)
			if len(evt.Event.CommandResult) > 0 {
				fmt.Printf("CommandResult: %s\n", string(evt.Event.CommandResult))
			}
			if evt.IsSelf {
				return nil
			}
		default:
			// keep looping for our own message
		}
	}
}

func sendInbound(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}
