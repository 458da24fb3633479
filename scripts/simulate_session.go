package main

// Load generator: joins a running session with synthetic players that
// answer randomly and jiggle the swan chase. Point it at a session
// created with `partyquiz seed`.
//
//	go run scripts/simulate_session.go -addr localhost:8080 -code ABC123 -players 20

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	addr    = flag.String("addr", "localhost:8080", "engine address")
	code    = flag.String("code", "", "session code to join")
	players = flag.Int("players", 10, "number of synthetic players")
	runFor  = flag.Duration("run-for", 10*time.Minute, "how long to keep the players connected")
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type itemStarted struct {
	ItemID   string `json:"itemId"`
	Kind     string `json:"kind"`
	Question *struct {
		Type    string `json:"type"`
		Options []struct {
			ID string `json:"id"`
		} `json:"options"`
	} `json:"question"`
}

func main() {
	flag.Parse()
	if *code == "" {
		log.Fatal("-code is required")
	}

	var wg sync.WaitGroup
	for i := 0; i < *players; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := runPlayer(n); err != nil {
				log.Printf("player %d: %v", n, err)
			}
		}(i)
		time.Sleep(50 * time.Millisecond)
	}
	wg.Wait()
}

func runPlayer(n int) error {
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %v", err)
	}
	defer conn.Close()

	name := fmt.Sprintf("bot-%03d", n)
	if err := send(conn, "JOIN_SESSION", map[string]interface{}{
		"code":              *code,
		"name":              name,
		"avatar":            "🤖",
		"deviceFingerprint": fmt.Sprintf("sim-%03d", n),
	}); err != nil {
		return err
	}

	deadline := time.Now().Add(*runFor)
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	frames := make(chan frame, 64)
	errs := make(chan error, 1)
	go func() {
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				errs <- err
				return
			}
			select {
			case frames <- f:
			default:
			}
		}
	}()

	var mu sync.Mutex
	writeJSON := func(t string, payload interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		return sendLocked(conn, t, payload)
	}

	chaseDone := make(chan struct{})
	var chaseOnce sync.Once

	for time.Now().Before(deadline) {
		select {
		case err := <-errs:
			return err
		case <-heartbeat.C:
			if err := writeJSON("HEARTBEAT", nil); err != nil {
				return err
			}
		case f := <-frames:
			switch f.Type {
			case "ITEM_STARTED":
				var item itemStarted
				if err := json.Unmarshal(f.Payload, &item); err != nil {
					continue
				}
				if item.Kind == "QUESTION" && item.Question != nil {
					go answerAfterDelay(writeJSON, item)
				}
			case "SWAN_CHASE_STATE":
				chaseOnce.Do(func() {
					go jiggle(writeJSON, chaseDone)
				})
			case "SWAN_CHASE_ENDED":
				chaseOnce.Do(func() {})
				select {
				case chaseDone <- struct{}{}:
				default:
				}
			case "SESSION_ENDED", "PLAYER_KICKED":
				return nil
			case "ERROR":
				log.Printf("%s: server error: %s", name, string(f.Payload))
			}
		}
	}
	return nil
}

// answerAfterDelay submits a plausible random answer a few seconds in
func answerAfterDelay(writeJSON func(string, interface{}) error, item itemStarted) {
	time.Sleep(time.Duration(1500+rand.Intn(6000)) * time.Millisecond)

	var answer interface{}
	switch item.Question.Type {
	case "TRUE_FALSE":
		answer = rand.Intn(2) == 0
	case "ESTIMATION":
		answer = rand.Float64() * 200
	case "OPEN_TEXT":
		answer = "no idea"
	case "MC_MULTIPLE":
		var picks []string
		for _, o := range item.Question.Options {
			if rand.Intn(2) == 0 {
				picks = append(picks, o.ID)
			}
		}
		if len(picks) == 0 && len(item.Question.Options) > 0 {
			picks = append(picks, item.Question.Options[0].ID)
		}
		answer = picks
	default:
		if len(item.Question.Options) == 0 {
			return
		}
		answer = item.Question.Options[rand.Intn(len(item.Question.Options))].ID
	}

	raw, _ := json.Marshal(answer)
	writeJSON("SUBMIT_ANSWER", map[string]interface{}{
		"itemId": item.ItemID,
		"answer": json.RawMessage(raw),
	})
}

// jiggle streams random direction changes while the chase runs
func jiggle(writeJSON func(string, interface{}) error, done chan struct{}) {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			angle := rand.Float64() * 2 * math.Pi
			writeJSON("SWAN_CHASE_INPUT", map[string]interface{}{
				"dirX": math.Cos(angle),
				"dirY": math.Sin(angle),
			})
		}
	}
}

func send(conn *websocket.Conn, t string, payload interface{}) error {
	return sendLocked(conn, t, payload)
}

func sendLocked(conn *websocket.Conn, t string, payload interface{}) error {
	msg := map[string]interface{}{"type": t, "timestamp": time.Now().UTC()}
	if payload != nil {
		msg["payload"] = payload
	}
	return conn.WriteJSON(msg)
}
