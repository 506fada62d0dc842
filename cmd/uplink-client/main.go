package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"

	"uplink/pkg/types"
)

var (
	addr  = flag.String("addr", "localhost:8080", "relay address")
	alias = flag.String("alias", "", "alias to join with (empty for server-assigned)")
)

const glyphs = "!@#$%^&*()_+-=[]{}|;:,.<>?/~"

func main() {
	flag.Parse()

	conn := connect()
	defer conn.Close()

	if err := send(conn, types.EventJoin, types.JoinPayload{Alias: *alias}); err != nil {
		color.Red.Printf("join failed: %v\n", err)
		os.Exit(1)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	client := &client{conn: conn}

	done := make(chan struct{})
	go client.readLoop(done)

	color.Gray.Println("Commands: /scan /msg <target> <text> /purge <key> /crypt /quit")
	client.writeLoop(interrupt, done)
}

func connect() *websocket.Conn {
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	color.Gray.Printf("Connecting to %s...\n", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		color.Red.Printf("Connection failed: %v\n", err)
		os.Exit(1)
	}
	return conn
}

type client struct {
	conn  *websocket.Conn
	crypt bool
}

func send(conn *websocket.Conn, event string, data any) error {
	return conn.WriteJSON(map[string]any{"event": event, "data": data})
}

func (c *client) readLoop(done chan struct{}) {
	defer close(done)
	for {
		var ev struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := c.conn.ReadJSON(&ev); err != nil {
			color.Red.Printf("\nConnection lost: %v\n", err)
			return
		}
		c.render(ev.Event, ev.Data)
	}
}

func (c *client) render(event string, data json.RawMessage) {
	switch event {
	case types.EventJoined:
		var sess types.Session
		if json.Unmarshal(data, &sess) == nil {
			color.Green.Printf("Connected as %s (%s)\n", sess.Alias, sess.MaskedAddr)
		}
	case types.EventHistory:
		var msgs []types.Message
		if json.Unmarshal(data, &msgs) == nil {
			for _, m := range msgs {
				c.renderMessage(m)
			}
		}
	case types.EventMessage:
		var m types.Message
		if json.Unmarshal(data, &m) == nil {
			c.renderMessage(m)
		}
	case types.EventRosterResult:
		var roster []types.RosterEntry
		if json.Unmarshal(data, &roster) == nil {
			color.Cyan.Printf("%d node(s) on channel:\n", len(roster))
			for _, e := range roster {
				color.Cyan.Printf("  %s @ %s\n", e.Alias, e.MaskedAddr)
			}
		}
	case types.EventPurgeSignal:
		color.Yellow.Println("*** history purged ***")
	}
}

func (c *client) renderMessage(m types.Message) {
	content := m.Content
	if m.Encrypted && !c.crypt {
		content = scramble(content)
	}
	stamp := m.Timestamp.Format("15:04:05")
	switch m.Kind {
	case types.MessageKindSystem:
		color.Green.Printf("[%s] %s\n", stamp, content)
	case types.MessageKindError:
		color.Red.Printf("[%s] %s\n", stamp, content)
	default:
		if strings.Contains(m.Sender, "[PRIVATE]") || strings.HasPrefix(m.Sender, "To: ") {
			color.Magenta.Printf("[%s] %s: %s\n", stamp, m.Sender, content)
		} else {
			fmt.Printf("[%s] %s: %s\n", stamp, m.Sender, content)
		}
	}
}

func (c *client) writeLoop(interrupt chan os.Signal, done chan struct{}) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			c.close()
			return
		case line, ok := <-lines:
			if !ok {
				c.close()
				return
			}
			if !c.handleLine(strings.TrimSpace(line)) {
				return
			}
		}
	}
}

// handleLine processes one input line. Returns false when the client should
// exit.
func (c *client) handleLine(line string) bool {
	if line == "" {
		return true
	}
	if !strings.HasPrefix(line, "/") {
		c.submit(types.EventMessage, types.MessagePayload{Content: line, Encrypted: c.crypt})
		return true
	}

	cmd, rest, _ := strings.Cut(line[1:], " ")
	switch cmd {
	case "scan":
		c.submit(types.EventScan, nil)
	case "msg":
		target, text, ok := strings.Cut(rest, " ")
		if !ok || target == "" || text == "" {
			color.Red.Println("usage: /msg <target> <text>")
			return true
		}
		c.submit(types.EventDirectMessage, types.DirectMessagePayload{
			Target: target, Content: text, Encrypted: c.crypt,
		})
	case "purge":
		c.submit(types.EventPurge, types.PurgePayload{Key: rest})
	case "crypt":
		c.crypt = !c.crypt
		if c.crypt {
			color.Yellow.Println("crypt mode on")
		} else {
			color.Yellow.Println("crypt mode off")
		}
	case "quit":
		c.close()
		return false
	default:
		color.Red.Printf("unknown command: /%s\n", cmd)
	}
	return true
}

func (c *client) submit(event string, data any) {
	if err := send(c.conn, event, data); err != nil {
		color.Red.Printf("send failed: %v\n", err)
	}
}

func (c *client) close() {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// scramble replaces each visible rune with a random glyph. Display-side
// flavor only; the relay carries the original content.
func scramble(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r != ' ' {
			out[i] = rune(glyphs[rand.Intn(len(glyphs))])
		}
	}
	return string(out)
}
