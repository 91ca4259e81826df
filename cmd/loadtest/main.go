package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/atriumhq/atrium/pkg/protocol"
)

const loremIpsum = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat."

var loremWords = strings.Fields(loremIpsum)

var avatarColors = []string{"#3498db", "#e74c3c", "#2ecc71", "#f1c40f", "#9b59b6", "#1abc9c"}

// Stats tracks aggregate performance across all bots.
type Stats struct {
	sent             atomic.Int64
	received         atomic.Int64
	connectionErrors atomic.Int64
	sendErrors       atomic.Int64
}

func (s *Stats) snapshot() (sent, received, connErrors, sendErrors int64) {
	return s.sent.Load(), s.received.Load(), s.connectionErrors.Load(), s.sendErrors.Load()
}

// Bot is one simulated room participant: it wanders around, chats
// occasionally, and pings to keep the connection warm.
type Bot struct {
	id     int
	userID string
	name   string
	roomID string
	conn   *websocket.Conn
	stats  *Stats

	writeMu sync.Mutex
	x, y    float64
}

func NewBot(id int, serverURL, roomID string, stats *Stats) (*Bot, error) {
	conn, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}
	return &Bot{
		id:     id,
		userID: "bot-" + uuid.NewString(),
		name:   fmt.Sprintf("bot%04d", id),
		roomID: roomID,
		conn:   conn,
		stats:  stats,
		x:      400,
		y:      300,
	}, nil
}

func (b *Bot) send(msgType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(protocol.Envelope{Type: msgType, Payload: body})
	if err != nil {
		return err
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		b.stats.sendErrors.Add(1)
		return err
	}
	b.stats.sent.Add(1)
	return nil
}

// drain counts inbound frames so the server's write buffers never fill.
func (b *Bot) drain() {
	for {
		if _, _, err := b.conn.ReadMessage(); err != nil {
			return
		}
		b.stats.received.Add(1)
	}
}

func (b *Bot) join() error {
	return b.send(protocol.TypeRoomJoin, protocol.RoomJoin{
		RoomID:      b.roomID,
		UserID:      b.userID,
		Name:        b.name,
		AvatarColor: avatarColors[rand.Intn(len(avatarColors))],
	})
}

func (b *Bot) wander() error {
	// Small random step, clamped to a plausible stage.
	b.x += float64(rand.Intn(61) - 30)
	b.y += float64(rand.Intn(61) - 30)
	if b.x < 0 {
		b.x = 0
	}
	if b.x > 800 {
		b.x = 800
	}
	if b.y < 0 {
		b.y = 0
	}
	if b.y > 600 {
		b.y = 600
	}
	return b.send(protocol.TypePlayerMove, protocol.PlayerMove{X: b.x, Y: b.y})
}

func (b *Bot) chat() error {
	wordCount := 3 + rand.Intn(10)
	words := make([]string, wordCount)
	for i := range words {
		words[i] = loremWords[rand.Intn(len(loremWords))]
	}
	return b.send(protocol.TypeChatMessage, protocol.ChatMessage{Text: strings.Join(words, " ")})
}

func (b *Bot) Run(duration, minDelay, maxDelay, shutdownDelay time.Duration) {
	defer b.conn.Close()

	go b.drain()

	if err := b.join(); err != nil {
		b.stats.connectionErrors.Add(1)
		return
	}

	endTime := time.Now().Add(duration)
	iteration := 0
	for time.Now().Before(endTime) {
		iteration++

		// Mostly movement, occasional chat, keepalive every so often.
		switch {
		case iteration%20 == 0:
			b.send(protocol.TypePing, protocol.Ping{Timestamp: time.Now().UnixMilli()})
		case rand.Float32() < 0.1:
			if err := b.chat(); err != nil {
				return
			}
		default:
			if err := b.wander(); err != nil {
				return
			}
		}

		delay := minDelay + time.Duration(rand.Int63n(int64(maxDelay-minDelay)))
		time.Sleep(delay)
	}

	// Stagger shutdown to avoid thundering herd on disconnect.
	if shutdownDelay > 0 {
		time.Sleep(shutdownDelay)
	}
	b.send(protocol.TypeRoomLeave, protocol.RoomLeave{RoomID: b.roomID})
	time.Sleep(100 * time.Millisecond)
}

func main() {
	serverURL := flag.String("server", "ws://localhost:4000/ws", "Server WebSocket URL")
	roomCount := flag.Int("rooms", 4, "Number of rooms to spread bots across")
	numClients := flag.Int("clients", 50, "Number of concurrent bots")
	duration := flag.Duration("duration", 1*time.Minute, "Test duration")
	minDelay := flag.Duration("min-delay", 100*time.Millisecond, "Minimum delay between actions")
	maxDelay := flag.Duration("max-delay", 1*time.Second, "Maximum delay between actions")
	flag.Parse()

	// Ramp up over the first quarter of the run.
	rampUpDuration := *duration / 4
	staggerDelay := rampUpDuration / time.Duration(*numClients)
	if staggerDelay < 1*time.Millisecond {
		staggerDelay = 1 * time.Millisecond
	}

	log.Printf("Starting load test:")
	log.Printf("  Server: %s", *serverURL)
	log.Printf("  Bots: %d across %d rooms", *numClients, *roomCount)
	log.Printf("  Duration: %v", *duration)
	log.Printf("  Ramp-up: %v (%v per bot)", rampUpDuration, staggerDelay)

	stats := &Stats{}
	var wg sync.WaitGroup

	stopStats := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		startTime := time.Now()
		for {
			select {
			case <-ticker.C:
				sent, received, connErrors, sendErrors := stats.snapshot()
				elapsed := time.Since(startTime).Seconds()
				log.Printf("Stats: %d sent (%.1f/s), %d received (%.1f/s), %d conn errors, %d send errors",
					sent, float64(sent)/elapsed, received, float64(received)/elapsed, connErrors, sendErrors)
			case <-stopStats:
				return
			}
		}
	}()

	for i := 0; i < *numClients; i++ {
		wg.Add(1)
		shutdownDelay := staggerDelay * time.Duration(*numClients-i-1)
		roomID := fmt.Sprintf("loadtest-%d", i%*roomCount)

		go func(id int, roomID string, shutdownDelay time.Duration) {
			defer wg.Done()

			bot, err := NewBot(id, *serverURL, roomID, stats)
			if err != nil {
				stats.connectionErrors.Add(1)
				return
			}
			bot.Run(*duration, *minDelay, *maxDelay, shutdownDelay)
		}(i, roomID, shutdownDelay)

		time.Sleep(staggerDelay)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("Shutdown signal received, stopping test...")
		close(stopStats)
	}()

	wg.Wait()
	select {
	case <-stopStats:
	default:
		close(stopStats)
	}

	sent, received, connErrors, sendErrors := stats.snapshot()
	log.Printf("=== Final Results ===")
	log.Printf("Duration: %v", *duration)
	log.Printf("Messages sent: %d (%.1f/s)", sent, float64(sent)/duration.Seconds())
	log.Printf("Events received: %d", received)
	log.Printf("Connection errors: %d", connErrors)
	log.Printf("Send errors: %d", sendErrors)
}
